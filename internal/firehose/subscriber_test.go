package firehose

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

type fakeArchive struct {
	mu      sync.Mutex
	posts   map[int64]domain.Post
	deleted []int64
	cursor  int64
}

func (f *fakeArchive) Put(_ context.Context, posts ...domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range posts {
		f.posts[p.ID] = p
	}
	return nil
}

func (f *fakeArchive) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.posts, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeArchive) GetCursor(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor, nil
}

func (f *fakeArchive) UpdateCursor(_ context.Context, _ string, cursor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor = cursor
	return nil
}

var streamMessages = []string{
	`{"seq": 11, "kind": "put", "post": {"id": 1, "blog_name": "staff", "type": "TEXT",
		"posted": "2020-01-01T00:00:00Z", "retrieved": "2020-01-02T00:00:00Z",
		"tags": ["a"], "content": {"title": "hello", "body": "world"}}}`,
	`not json`,
	`{"seq": 12, "kind": "put", "post": {"id": 2, "blog_name": "staff", "type": "QUOTE",
		"content": {"text": "q", "source": "s"}}}`,
	`{"seq": 13, "kind": "delete", "id": 2}`,
	`{"seq": 14, "kind": "like", "id": 1}`,
}

// newStreamServer serves streamMessages to each connection and then closes
// it. It records the query string of every connection.
func newStreamServer(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()
	queries := make(chan string, 10)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case queries <- r.URL.RawQuery:
		default:
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, msg := range streamMessages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
	}))
	t.Cleanup(srv.Close)
	return srv, queries
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeAppliesEvents(t *testing.T) {
	srv, queries := newStreamServer(t)
	archive := &fakeArchive{posts: make(map[int64]domain.Post)}
	s := NewSubscriber(wsURL(srv), archive, slog.New(slog.DiscardHandler))

	err := s.subscribe(context.Background())
	require.Error(t, err)
	require.Empty(t, <-queries)

	archive.mu.Lock()
	defer archive.mu.Unlock()
	require.Len(t, archive.posts, 1)
	post := archive.posts[1]
	require.Equal(t, []string{"a"}, post.Tags)
	require.Equal(t, &domain.TextPost{Title: "hello", Body: "world"}, post.Content)
	require.Equal(t, []int64{2}, archive.deleted)

	// The cursor is flushed when the connection ends.
	require.Equal(t, int64(14), archive.cursor)
}

func TestSubscribeResumesFromCursor(t *testing.T) {
	srv, queries := newStreamServer(t)
	archive := &fakeArchive{posts: make(map[int64]domain.Post), cursor: 10}
	s := NewSubscriber(wsURL(srv), archive, slog.New(slog.DiscardHandler))

	_ = s.subscribe(context.Background())
	require.Equal(t, "cursor=10", <-queries)
}

func TestStartStopsOnCancel(t *testing.T) {
	srv, _ := newStreamServer(t)
	archive := &fakeArchive{posts: make(map[int64]domain.Post)}
	s := NewSubscriber(wsURL(srv), archive, slog.New(slog.DiscardHandler))
	s.reconnectDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		archive.mu.Lock()
		defer archive.mu.Unlock()
		return archive.cursor == 14
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestParseEvent(t *testing.T) {
	_, err := parseEvent([]byte(`{"seq": 1, "kind": "put"}`))
	require.Error(t, err)

	_, err = parseEvent([]byte(`{"seq": 1, "kind": "delete"}`))
	require.Error(t, err)

	event, err := parseEvent([]byte(`{"seq": 5, "kind": "delete", "id": 9}`))
	require.NoError(t, err)
	require.Equal(t, &streamEvent{Seq: 5, Kind: kindDelete, ID: 9}, event)
}
