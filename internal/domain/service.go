package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// syncBatchSize is the number of fetched posts written per Put while syncing
// a blog.
const syncBatchSize = 100

// ErrNoSource is returned by operations which need a PostSource when the
// service was built without one.
var ErrNoSource = errors.New("no post source configured")

// ArchiveService is the core domain service. It owns the archive's use cases:
// reading and writing stored posts, and pulling posts from a remote source
// into the store.
type ArchiveService struct {
	repo    PostRepository
	cursors CursorRepository
	source  PostSource // nil disables syncing
	logger  *slog.Logger
}

// NewArchiveService creates an ArchiveService. source may be nil.
func NewArchiveService(repo PostRepository, cursors CursorRepository, source PostSource, logger *slog.Logger) *ArchiveService {
	return &ArchiveService{
		repo:    repo,
		cursors: cursors,
		source:  source,
		logger:  logger,
	}
}

// Get retrieves a stored post by id.
func (s *ArchiveService) Get(ctx context.Context, id int64) (Post, bool, error) {
	return s.repo.Get(ctx, id)
}

// GetAll retrieves every stored post.
func (s *ArchiveService) GetAll(ctx context.Context) ([]Post, error) {
	return s.repo.GetAll(ctx)
}

// Put stores posts, replacing any stored post with the same id.
func (s *ArchiveService) Put(ctx context.Context, posts ...Post) error {
	for i := range posts {
		if !posts[i].HasContent() {
			return fmt.Errorf("post %d has no content", posts[i].ID)
		}
	}
	return s.repo.Put(ctx, posts...)
}

// Delete removes a stored post by id.
func (s *ArchiveService) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// GetCursor retrieves the last-processed stream cursor for the given service.
func (s *ArchiveService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the stream cursor for the given service.
func (s *ArchiveService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// ImportPost fetches a single post from the source and stores it.
func (s *ArchiveService) ImportPost(ctx context.Context, blogName string, id int64) (Post, error) {
	if s.source == nil {
		return Post{}, ErrNoSource
	}
	post, err := s.source.GetPost(ctx, blogName, id)
	if err != nil {
		return Post{}, fmt.Errorf("fetch post %d of %s: %w", id, blogName, err)
	}
	if err := s.repo.Put(ctx, post); err != nil {
		return Post{}, fmt.Errorf("store post %d of %s: %w", id, blogName, err)
	}
	return post, nil
}

// SyncBlog fetches every post of a blog and stores them in batches. Posts
// stored before a failure stay stored. Returns the number of posts stored.
func (s *ArchiveService) SyncBlog(ctx context.Context, blogName string) (int, error) {
	if s.source == nil {
		return 0, ErrNoSource
	}

	var (
		stored int
		batch  = make([]Post, 0, syncBatchSize)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.Put(ctx, batch...); err != nil {
			return fmt.Errorf("store %d posts of %s: %w", len(batch), blogName, err)
		}
		stored += len(batch)
		batch = batch[:0]
		return nil
	}

	for post, err := range s.source.AllPosts(ctx, blogName) {
		if err != nil {
			return stored, fmt.Errorf("fetch posts of %s: %w", blogName, err)
		}
		batch = append(batch, post)
		if len(batch) == syncBatchSize {
			if err := flush(); err != nil {
				return stored, err
			}
		}
	}
	if err := flush(); err != nil {
		return stored, err
	}
	return stored, nil
}

// StartSyncJob runs a background loop that syncs every blog in blogs. It
// runs immediately on start and then repeats at the given interval. It
// blocks until ctx is cancelled.
func (s *ArchiveService) StartSyncJob(ctx context.Context, interval time.Duration, blogs []string) {
	s.runSync(ctx, blogs)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSync(ctx, blogs)
		}
	}
}

func (s *ArchiveService) runSync(ctx context.Context, blogs []string) {
	for _, blog := range blogs {
		if ctx.Err() != nil {
			return
		}
		start := time.Now()
		n, err := s.SyncBlog(ctx, blog)
		if err != nil {
			s.logger.Error("blog sync failed", "blog", blog, "stored", n, "error", err)
			continue
		}
		elapsed := time.Since(start)
		s.logger.Info("blog sync complete",
			"blog", blog,
			"stored", humanize.Comma(int64(n)),
			"posts_per_sec", humanize.FtoaWithDigits(float64(n)/max(elapsed.Seconds(), 0.001), 1),
			"elapsed", elapsed,
		)
	}
}
