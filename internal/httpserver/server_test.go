package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blackmichael/tumblr-archive/internal/config"
	"github.com/blackmichael/tumblr-archive/internal/domain"
	"github.com/blackmichael/tumblr-archive/internal/sqlite"
	"github.com/blackmichael/tumblr-archive/internal/tumblr"
)

func newTestServer(t *testing.T, source domain.PostSource) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	repo, err := sqlite.NewRepository(context.Background(), filepath.Join(t.TempDir(), "archive.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := domain.NewArchiveService(repo, repo, source, logger)
	srv := httptest.NewServer(NewServer(&config.Config{}, svc, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

const linkPostJSON = `{"id": 5, "blog_name": "staff", "post_url": "https://staff.tumblr.com/post/5",
	"posted": "2021-03-04T05:06:07.008Z", "retrieved": "2021-03-05T00:00:00Z",
	"tags": ["go", "links"], "type": "LINK",
	"content": {"title": "Go", "url": "https://go.dev", "description": "home"}}`

func TestPostLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodPut, srv.URL+"/posts", linkPostJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(1), body["stored"])
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp, body = do(t, http.MethodGet, srv.URL+"/posts/5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "LINK", body["type"])
	require.Equal(t, []any{"go", "links"}, body["tags"])
	posted, err := time.Parse(time.RFC3339Nano, body["posted"].(string))
	require.NoError(t, err)
	require.True(t, posted.Equal(time.Date(2021, 3, 4, 5, 6, 7, 8e6, time.UTC)), "posted %s", posted)
	require.Equal(t, map[string]any{"title": "Go", "url": "https://go.dev", "description": "home"}, body["content"])

	resp, body = do(t, http.MethodGet, srv.URL+"/posts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body["posts"], 1)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/posts/5", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/posts/5", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NotFound", body["error"])

	resp, body = do(t, http.MethodGet, srv.URL+"/posts", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []any{}, body["posts"])
}

func TestPutArray(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodPut, srv.URL+"/posts", `[
		{"id": 1, "type": "TEXT", "content": {"title": "a"}},
		{"id": 2, "type": "CHAT", "content": {"dialogue": [{"name": "x", "label": "x:", "phrase": "hi"}]}}
	]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["stored"])

	_, body = do(t, http.MethodGet, srv.URL+"/posts/2", "")
	require.Equal(t, "CHAT", body["type"])
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/posts/abc", ""},
		{http.MethodDelete, "/posts/1.5", ""},
		{http.MethodPut, "/posts", ""},
		{http.MethodPut, "/posts", `{"id": 1, "type": "REBLOG"}`},
		{http.MethodPut, "/posts", `[{"id": 1}]`},
	} {
		resp, body := do(t, tc.method, srv.URL+tc.path, tc.body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s %s", tc.method, tc.path, tc.body)
		require.Equal(t, "InvalidRequest", body["error"])
	}
}

func TestSyncBlog(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "0" {
			fmt.Fprint(w, `{"response": {"posts": []}}`)
			return
		}
		fmt.Fprint(w, `{"response": {"posts": [
			{"id": 10, "blog_name": "staff", "type": "quote", "text": "q", "source": "s", "timestamp": 1},
			{"id": 11, "blog_name": "staff", "type": "text", "title": "t", "timestamp": 2}
		]}}`)
	}))
	defer api.Close()

	srv := newTestServer(t, tumblr.NewClient(api.URL, "key"))

	resp, body := do(t, http.MethodPost, srv.URL+"/blogs/staff/sync", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(2), body["stored"])

	resp, body = do(t, http.MethodGet, srv.URL+"/posts/10", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "QUOTE", body["type"])
}

func TestSyncWithoutSource(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := do(t, http.MethodPost, srv.URL+"/blogs/staff/sync", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}
