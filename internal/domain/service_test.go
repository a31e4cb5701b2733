package domain

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepository struct {
	mu      sync.Mutex
	posts   map[int64]Post
	batches []int
	cursors map[string]int64
	failPut error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{posts: make(map[int64]Post), cursors: make(map[string]int64)}
}

func (m *memoryRepository) Get(_ context.Context, id int64) (Post, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	return p, ok, nil
}

func (m *memoryRepository) GetAll(context.Context) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, p := range m.posts {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepository) Put(_ context.Context, posts ...Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut != nil {
		return m.failPut
	}
	m.batches = append(m.batches, len(posts))
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return nil
}

func (m *memoryRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memoryRepository) GetCursor(_ context.Context, service string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[service], nil
}

func (m *memoryRepository) UpdateCursor(_ context.Context, service string, cursor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cursors[service] = cursor
	return nil
}

type fakeSource struct {
	posts []Post
	err   error // yielded after every post
}

func (f *fakeSource) GetPost(_ context.Context, _ string, id int64) (Post, error) {
	for _, p := range f.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return Post{}, errors.New("not found")
}

func (f *fakeSource) AllPosts(context.Context, string) iter.Seq2[Post, error] {
	return func(yield func(Post, error) bool) {
		for _, p := range f.posts {
			if !yield(p, nil) {
				return
			}
		}
		if f.err != nil {
			yield(Post{}, f.err)
		}
	}
}

func textPosts(n int) []Post {
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{ID: int64(i + 1), BlogName: "staff", Content: &TextPost{}}
	}
	return posts
}

func newTestService(repo *memoryRepository, source PostSource) *ArchiveService {
	return NewArchiveService(repo, repo, source, slog.New(slog.DiscardHandler))
}

func TestSyncBlogBatches(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, &fakeSource{posts: textPosts(250)})

	n, err := svc.SyncBlog(context.Background(), "staff")
	require.NoError(t, err)
	require.Equal(t, 250, n)
	require.Equal(t, []int{100, 100, 50}, repo.batches)
	require.Len(t, repo.posts, 250)
}

func TestSyncBlogKeepsStoredBatchesOnSourceError(t *testing.T) {
	repo := newMemoryRepository()
	boom := errors.New("rate limited")
	svc := newTestService(repo, &fakeSource{posts: textPosts(120), err: boom})

	n, err := svc.SyncBlog(context.Background(), "staff")
	require.ErrorIs(t, err, boom)
	require.Equal(t, 100, n)
	require.Len(t, repo.posts, 100)
}

func TestSyncBlogStoreError(t *testing.T) {
	repo := newMemoryRepository()
	repo.failPut = errors.New("disk full")
	svc := newTestService(repo, &fakeSource{posts: textPosts(3)})

	n, err := svc.SyncBlog(context.Background(), "staff")
	require.ErrorIs(t, err, repo.failPut)
	require.Zero(t, n)
}

func TestWithoutSource(t *testing.T) {
	svc := newTestService(newMemoryRepository(), nil)

	_, err := svc.SyncBlog(context.Background(), "staff")
	require.ErrorIs(t, err, ErrNoSource)
	_, err = svc.ImportPost(context.Background(), "staff", 1)
	require.ErrorIs(t, err, ErrNoSource)
}

func TestImportPost(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepository()
	svc := newTestService(repo, &fakeSource{posts: textPosts(3)})

	post, err := svc.ImportPost(ctx, "staff", 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), post.ID)

	stored, found, err := svc.Get(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, post.Equal(&stored))

	_, err = svc.ImportPost(ctx, "staff", 99)
	require.Error(t, err)
}

func TestPutRejectsMissingContent(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, nil)

	err := svc.Put(context.Background(), textPosts(1)[0], Post{ID: 2})
	require.Error(t, err)
	require.Empty(t, repo.posts)

	err = svc.Put(context.Background(), Post{ID: 3, Content: (*TextPost)(nil)})
	require.ErrorContains(t, err, "post 3 has no content")
	require.Empty(t, repo.posts)
}

func TestStartSyncJobRunsImmediately(t *testing.T) {
	repo := newMemoryRepository()
	svc := newTestService(repo, &fakeSource{posts: textPosts(5)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.StartSyncJob(ctx, time.Hour, []string{"staff"})
		close(done)
	}()

	require.Eventually(t, func() bool {
		all, _ := repo.GetAll(ctx)
		return len(all) == 5
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sync job did not stop")
	}
}

func TestCursorPassthrough(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemoryRepository(), nil)

	require.NoError(t, svc.UpdateCursor(ctx, "stream", 42))
	cursor, err := svc.GetCursor(ctx, "stream")
	require.NoError(t, err)
	require.Equal(t, int64(42), cursor)
}
