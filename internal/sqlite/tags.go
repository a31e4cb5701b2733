package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

const (
	tagsByNameSQLTemplate = `SELECT id, tag FROM tags WHERE tag IN (%s)`

	postTagsSQLTemplate = `SELECT postTags.postId, tags.tag FROM postTags
		JOIN tags ON postTags.tagId = tags.id
		WHERE postTags.postId IN (%s)
		ORDER BY postTags.postId, postTags.tagIndex`
)

// distinct returns vals with duplicates removed, keeping first occurrences.
func distinct[T comparable](vals []T) []T {
	seen := make(map[T]struct{}, len(vals))
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// internTags resolves every tag to its id, inserting tags which don't exist
// yet. The returned map has exactly one entry per distinct input tag.
func internTags(ctx context.Context, tx *sql.Tx, insert *sql.Stmt, tags []string) (map[string]int64, error) {
	tags = distinct(tags)
	ids := make(map[string]int64, len(tags))

	err := scanChunks(ctx, tx, tagsByNameSQLTemplate, tags, func(rows *sql.Rows) error {
		var (
			id  int64
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		ids[tag] = id
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "look up tags")
	}

	for _, tag := range tags {
		if _, ok := ids[tag]; ok {
			continue
		}
		res, err := insert.ExecContext(ctx, tag)
		if err != nil {
			return nil, errors.Wrapf(err, "insert tag %q", tag)
		}
		if ids[tag], err = res.LastInsertId(); err != nil {
			return nil, errors.Wrapf(err, "read id of tag %q", tag)
		}
	}
	return ids, nil
}

// putTags interns the tags of every post and records each post's tags in
// order.
func putTags(ctx context.Context, tx *sql.Tx, s *statements, posts []domain.Post) error {
	var all []string
	for _, p := range posts {
		all = append(all, p.Tags...)
	}
	if len(all) == 0 {
		return nil
	}

	ids, err := internTags(ctx, tx, tx.StmtContext(ctx, s.tagInsert), all)
	if err != nil {
		return err
	}

	insert := tx.StmtContext(ctx, s.postTagInsert)
	for _, p := range posts {
		for index, tag := range p.Tags {
			if _, err := insert.ExecContext(ctx, p.ID, ids[tag], index); err != nil {
				return errors.Wrapf(err, "insert tag %q of post %d", tag, p.ID)
			}
		}
	}
	return nil
}

// fetchTags fills in the tags of every post in posts.
func fetchTags(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, postTagsSQLTemplate, ids, func(rows *sql.Rows) error {
		var (
			postID int64
			tag    string
		)
		if err := rows.Scan(&postID, &tag); err != nil {
			return err
		}
		p := posts[postID]
		p.Tags = append(p.Tags, tag)
		return nil
	})
}
