package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

// InvariantError reports stored data that violates the archive layout, such
// as a post whose type is unknown or whose variant row is of another type.
type InvariantError struct {
	PostID int64
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("corrupt archive: post %d: %s", e.PostID, e.Reason)
}

// Repository implements domain.PostRepository and domain.CursorRepository
// using a single SQLite database file.
type Repository struct {
	db     *sql.DB
	stmts  *statements
	logger *slog.Logger
}

// NewRepository opens the SQLite database at path, creating it and its
// schema if needed. The caller should call Close when the repository is no
// longer needed.
func NewRepository(ctx context.Context, path string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// Every unit of work runs on one connection, so transactions never
	// contend with each other for the file lock.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping database %s", path)
	}

	if err := inTx(ctx, db, func(tx *sql.Tx) error {
		return createSchema(ctx, tx)
	}); err != nil {
		db.Close()
		return nil, errors.WithMessage(err, "create schema")
	}

	stmts, err := prepareStatements(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("opened archive", "path", path)
	return &Repository{db: db, stmts: stmts, logger: logger}, nil
}

func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	return "file:" + path + "?" + q.Encode()
}

// Close releases the prepared statements and closes the database.
func (r *Repository) Close() error {
	stmtErr := r.stmts.close()
	if err := r.db.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}
	return errors.Wrap(stmtErr, "close statements")
}

// Get retrieves a post by id.
func (r *Repository) Get(ctx context.Context, id int64) (domain.Post, bool, error) {
	var posts []domain.Post
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.StmtContext(ctx, r.stmts.postGet).QueryContext(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "query post %d", id)
		}
		posts, err = readPosts(ctx, tx, rows)
		return err
	})
	if err != nil {
		return domain.Post{}, false, errors.WithMessagef(err, "get post %d", id)
	}
	if len(posts) == 0 {
		return domain.Post{}, false, nil
	}
	return posts[0], true, nil
}

// GetAll retrieves every stored post.
func (r *Repository) GetAll(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.StmtContext(ctx, r.stmts.postsGetAll).QueryContext(ctx)
		if err != nil {
			return errors.Wrap(err, "query posts")
		}
		posts, err = readPosts(ctx, tx, rows)
		return err
	})
	if err != nil {
		return nil, errors.WithMessage(err, "get all posts")
	}
	return posts, nil
}

// Put stores posts atomically, replacing any post with the same id.
func (r *Repository) Put(ctx context.Context, posts ...domain.Post) error {
	if len(posts) == 0 {
		return nil
	}
	start := time.Now()
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		return putPosts(ctx, tx, r.stmts, posts)
	})
	if err != nil {
		return errors.WithMessagef(err, "put %d posts", len(posts))
	}
	r.logger.Debug("put posts", "count", len(posts), "elapsed", time.Since(start))
	return nil
}

// Delete removes a post by id and everything stored for it except its tags.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		return deletePosts(ctx, tx, []int64{id})
	})
	return errors.WithMessagef(err, "delete post %d", id)
}

// GetCursor retrieves the saved stream cursor for a service.
func (r *Repository) GetCursor(ctx context.Context, service string) (int64, error) {
	var cursor int64
	err := r.db.QueryRowContext(ctx,
		`SELECT cursorValue FROM cursors WHERE service = ?`, service,
	).Scan(&cursor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cursor, errors.Wrapf(err, "get cursor for %s", service)
}

// UpdateCursor upserts the stream cursor for a service.
func (r *Repository) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (service, cursorValue, updatedAt)
		VALUES (?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET cursorValue = excluded.cursorValue, updatedAt = excluded.updatedAt`,
		service, cursor, time.Now().UTC().UnixMilli(),
	)
	return errors.Wrapf(err, "update cursor for %s", service)
}
