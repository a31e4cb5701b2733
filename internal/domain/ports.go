package domain

import (
	"context"
	"iter"
)

// PostRepository defines persistence operations for archived posts.
type PostRepository interface {
	// Get retrieves a post by id. found is false if no such post exists.
	Get(ctx context.Context, id int64) (post Post, found bool, err error)

	// GetAll retrieves every stored post, in no particular order.
	GetAll(ctx context.Context) ([]Post, error)

	// Put stores posts, fully replacing any existing post with the same id.
	// The whole batch is written atomically. An empty batch is a no-op.
	Put(ctx context.Context, posts ...Post) error

	// Delete removes a post by id. Deleting a missing post is not an error.
	Delete(ctx context.Context, id int64) error
}

// CursorRepository defines persistence operations for stream cursors.
type CursorRepository interface {
	// GetCursor retrieves the last-processed stream cursor for the given
	// service name. Returns 0 if no cursor has been saved.
	GetCursor(ctx context.Context, service string) (int64, error)

	// UpdateCursor persists the stream cursor so we can resume on restart.
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// PostSource fetches posts from a remote blogging service and converts them
// into the domain model.
type PostSource interface {
	// GetPost fetches a single post of a blog.
	GetPost(ctx context.Context, blogName string, id int64) (Post, error)

	// AllPosts yields every post of a blog, newest first. Iteration stops at
	// the first error.
	AllPosts(ctx context.Context, blogName string) iter.Seq2[Post, error]
}
