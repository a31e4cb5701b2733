package tumblr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

const (
	defaultAPI = "https://api.tumblr.com"

	// pageSize is the largest page the posts endpoint serves.
	pageSize = 20
)

// Client is a minimal Tumblr v2 API client for reading a blog's posts. It
// implements domain.PostSource.
type Client struct {
	api        string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new Tumblr API client authenticating with an OAuth
// consumer key. If api is empty, it defaults to https://api.tumblr.com.
func NewClient(api, apiKey string) *Client {
	if api == "" {
		api = defaultAPI
	}
	return &Client{
		api:    api,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// GetPost fetches a single post of a blog.
func (c *Client) GetPost(ctx context.Context, blogName string, id int64) (domain.Post, error) {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(id, 10))

	var resp postsResponse
	if err := c.get(ctx, blogName, q, &resp); err != nil {
		return domain.Post{}, fmt.Errorf("get post %d: %w", id, err)
	}
	if len(resp.Posts) == 0 {
		return domain.Post{}, fmt.Errorf("get post %d: not found", id)
	}
	return resp.Posts[0].toDomain(c.now())
}

// AllPosts yields every post of a blog, newest first, one page at a time.
func (c *Client) AllPosts(ctx context.Context, blogName string) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		for offset := 0; ; offset += pageSize {
			q := url.Values{}
			q.Set("offset", strconv.Itoa(offset))
			q.Set("limit", strconv.Itoa(pageSize))

			var resp postsResponse
			if err := c.get(ctx, blogName, q, &resp); err != nil {
				yield(domain.Post{}, fmt.Errorf("list posts at offset %d: %w", offset, err))
				return
			}

			retrieved := c.now()
			for _, wp := range resp.Posts {
				post, err := wp.toDomain(retrieved)
				if !yield(post, err) || err != nil {
					return
				}
			}
			if len(resp.Posts) < pageSize {
				return
			}
		}
	}
}

func (c *Client) get(ctx context.Context, blogName string, q url.Values, result *postsResponse) error {
	q.Set("api_key", c.apiKey)
	u := fmt.Sprintf("%s/v2/blog/%s/posts?%s", c.api, url.PathEscape(blogName), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Response postsResponse `json:"response"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	*result = envelope.Response
	return nil
}
