package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const (
	dialogueIDsSQLTemplate  = `SELECT dialogueId FROM chatPostDialogue WHERE postId IN (%s)`
	videoIDsSQLTemplate     = `SELECT videoId FROM videoPostVideos WHERE postId IN (%s)`
	photoIDsSQLTemplate     = `SELECT photoId FROM photoPostPhotos WHERE postId IN (%s)`
	photoSizeIDsSQLTemplate = `SELECT photoSizeId FROM photoPhotoSizes WHERE photoId IN (%s)`
)

// selectIDs collects the single integer column selected by template.
func selectIDs(ctx context.Context, tx *sql.Tx, template string, vals []int64) ([]int64, error) {
	var ids []int64
	err := scanChunks(ctx, tx, template, vals, func(rows *sql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	return ids, err
}

// deletePosts removes every row belonging to the given posts. Substructure
// ids are collected before their junction rows are removed, and tables are
// emptied in foreign key order: junctions, then the rows they reference, then
// variant tables, postTags and finally posts. Tags themselves are kept.
func deletePosts(ctx context.Context, tx *sql.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	dialogueIDs, err := selectIDs(ctx, tx, dialogueIDsSQLTemplate, ids)
	if err != nil {
		return err
	}
	videoIDs, err := selectIDs(ctx, tx, videoIDsSQLTemplate, ids)
	if err != nil {
		return err
	}
	photoIDs, err := selectIDs(ctx, tx, photoIDsSQLTemplate, ids)
	if err != nil {
		return err
	}
	photoSizeIDs, err := selectIDs(ctx, tx, photoSizeIDsSQLTemplate, photoIDs)
	if err != nil {
		return err
	}

	steps := []struct {
		template string
		vals     []int64
	}{
		// Chat posts.
		{`DELETE FROM chatPostDialogue WHERE postId IN (%s)`, ids},
		{`DELETE FROM dialogue WHERE id IN (%s)`, dialogueIDs},
		{`DELETE FROM chatPosts WHERE id IN (%s)`, ids},

		// Video posts.
		{`DELETE FROM videoPostVideos WHERE postId IN (%s)`, ids},
		{`DELETE FROM videos WHERE id IN (%s)`, videoIDs},
		{`DELETE FROM videoPosts WHERE id IN (%s)`, ids},

		// Photo posts, deepest first.
		{`DELETE FROM photoPhotoSizes WHERE photoId IN (%s)`, photoIDs},
		{`DELETE FROM photoSizes WHERE id IN (%s)`, photoSizeIDs},
		{`DELETE FROM photoPostPhotos WHERE postId IN (%s)`, ids},
		{`DELETE FROM photos WHERE id IN (%s)`, photoIDs},
		{`DELETE FROM photoPosts WHERE id IN (%s)`, ids},

		// Flat variants.
		{`DELETE FROM answerPosts WHERE id IN (%s)`, ids},
		{`DELETE FROM audioPosts WHERE id IN (%s)`, ids},
		{`DELETE FROM linkPosts WHERE id IN (%s)`, ids},
		{`DELETE FROM quotePosts WHERE id IN (%s)`, ids},
		{`DELETE FROM textPosts WHERE id IN (%s)`, ids},

		{`DELETE FROM postTags WHERE postId IN (%s)`, ids},
		{`DELETE FROM posts WHERE id IN (%s)`, ids},
	}
	for _, step := range steps {
		if err := execChunks(ctx, tx, step.template, step.vals); err != nil {
			return errors.WithMessage(err, "delete posts")
		}
	}
	return nil
}
