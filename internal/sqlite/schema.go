package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

// schemaStmts creates the archive layout. Every statement is idempotent.
var schemaStmts = []string{
	// Main post tables.
	`CREATE TABLE IF NOT EXISTS postTypes(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT UNIQUE NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS posts(
		id INTEGER PRIMARY KEY,
		blogName TEXT NOT NULL,
		postUrl TEXT NOT NULL,
		postedTimestamp INTEGER NOT NULL,
		retrievedTimestamp INTEGER NOT NULL,
		postTypeId INTEGER NOT NULL REFERENCES postTypes(id))`,
	`CREATE TABLE IF NOT EXISTS textPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		title TEXT NOT NULL,
		body TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS photoPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		caption TEXT NOT NULL,
		width INTEGER,
		height INTEGER)`,
	`CREATE TABLE IF NOT EXISTS quotePosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		text TEXT NOT NULL,
		source TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS linkPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		title TEXT NOT NULL,
		url TEXT NOT NULL,
		description TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS chatPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		title TEXT NOT NULL,
		body TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS audioPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		caption TEXT NOT NULL,
		player TEXT NOT NULL,
		plays INTEGER NOT NULL,
		albumArt TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT NOT NULL,
		trackName TEXT NOT NULL,
		trackNumber INTEGER NOT NULL,
		year INTEGER NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS videoPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		caption TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS answerPosts(
		id INTEGER PRIMARY KEY REFERENCES posts(id),
		askingName TEXT NOT NULL,
		askingUrl TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT NOT NULL)`,

	// Tags. tagIndex is part of the key so a post may repeat a tag. A file
	// whose postTags was created keyed on (postId, tagId) keeps that key, and
	// putting a post that repeats a tag into it fails with a constraint error.
	`CREATE TABLE IF NOT EXISTS tags(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tag TEXT UNIQUE NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS postTags(
		postId INTEGER NOT NULL REFERENCES posts(id),
		tagId INTEGER NOT NULL REFERENCES tags(id),
		tagIndex INTEGER NOT NULL,
		PRIMARY KEY(postId, tagIndex))`,

	// Photo posts.
	`CREATE TABLE IF NOT EXISTS photos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		caption TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS photoSizes(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		url TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS photoPostPhotos(
		postId INTEGER NOT NULL REFERENCES photoPosts(id),
		photoId INTEGER NOT NULL REFERENCES photos(id),
		photoIndex INTEGER NOT NULL,
		PRIMARY KEY(postId, photoId))`,
	`CREATE TABLE IF NOT EXISTS photoPhotoSizes(
		photoId INTEGER NOT NULL REFERENCES photos(id),
		photoSizeId INTEGER NOT NULL REFERENCES photoSizes(id),
		photoSizeIndex INTEGER NOT NULL,
		PRIMARY KEY(photoId, photoSizeId))`,

	// Chat posts.
	`CREATE TABLE IF NOT EXISTS dialogue(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		label TEXT NOT NULL,
		phrase TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS chatPostDialogue(
		postId INTEGER NOT NULL REFERENCES chatPosts(id),
		dialogueId INTEGER NOT NULL REFERENCES dialogue(id),
		dialogueIndex INTEGER NOT NULL,
		PRIMARY KEY(postId, dialogueId))`,

	// Video posts.
	`CREATE TABLE IF NOT EXISTS videos(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		width INTEGER NOT NULL,
		embedCode TEXT NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS videoPostVideos(
		postId INTEGER NOT NULL REFERENCES videoPosts(id),
		videoId INTEGER NOT NULL REFERENCES videos(id),
		videoIndex INTEGER NOT NULL,
		PRIMARY KEY(postId, videoId))`,

	// Stream cursors.
	`CREATE TABLE IF NOT EXISTS cursors(
		service TEXT PRIMARY KEY,
		cursorValue INTEGER NOT NULL,
		updatedAt INTEGER NOT NULL)`,

	// Indexes.
	`CREATE INDEX IF NOT EXISTS postsPostTypeIdIndex ON posts(postTypeId)`,
	`CREATE INDEX IF NOT EXISTS postTagsPostIdIndex ON postTags(postId)`,
	`CREATE INDEX IF NOT EXISTS postTagsTagIdIndex ON postTags(tagId)`,
	`CREATE INDEX IF NOT EXISTS tagsTagIndex ON tags(tag)`,
	`CREATE INDEX IF NOT EXISTS photoPostPhotosPostIdIndex ON photoPostPhotos(postId)`,
	`CREATE INDEX IF NOT EXISTS photoPostPhotosPhotoIdIndex ON photoPostPhotos(photoId)`,
	`CREATE INDEX IF NOT EXISTS photoPhotoSizesPhotoIdIndex ON photoPhotoSizes(photoId)`,
	`CREATE INDEX IF NOT EXISTS photoPhotoSizesPhotoSizeIdIndex ON photoPhotoSizes(photoSizeId)`,
	`CREATE INDEX IF NOT EXISTS chatPostDialoguePostIdIndex ON chatPostDialogue(postId)`,
	`CREATE INDEX IF NOT EXISTS chatPostDialogueDialogueIdIndex ON chatPostDialogue(dialogueId)`,
	`CREATE INDEX IF NOT EXISTS videoPostVideosPostIdIndex ON videoPostVideos(postId)`,
	`CREATE INDEX IF NOT EXISTS videoPostVideosVideoIdIndex ON videoPostVideos(videoId)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS postTypesTypeIndex ON postTypes(type)`,
}

// createSchema creates any missing tables and indexes and seeds the
// postTypes lookup table.
func createSchema(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range schemaStmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec %q", stmt)
		}
	}

	insert, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO postTypes (type) VALUES (?)`)
	if err != nil {
		return errors.Wrap(err, "prepare post type insert")
	}
	defer insert.Close()

	for _, t := range domain.PostTypes {
		if _, err := insert.ExecContext(ctx, t.String()); err != nil {
			return errors.Wrapf(err, "insert post type %s", t)
		}
	}
	return nil
}
