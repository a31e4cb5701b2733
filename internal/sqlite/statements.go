package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

const (
	postGetSQL = `SELECT posts.id, posts.blogName, posts.postUrl, posts.postedTimestamp, posts.retrievedTimestamp, postTypes.type
		FROM posts JOIN postTypes ON posts.postTypeId = postTypes.id
		WHERE posts.id = ?`
	postsGetAllSQL = `SELECT posts.id, posts.blogName, posts.postUrl, posts.postedTimestamp, posts.retrievedTimestamp, postTypes.type
		FROM posts JOIN postTypes ON posts.postTypeId = postTypes.id`
	postInsertSQL = `INSERT INTO posts (id, blogName, postUrl, postedTimestamp, retrievedTimestamp, postTypeId)
		SELECT ?, ?, ?, ?, ?, id FROM postTypes WHERE type = ?`

	tagInsertSQL     = `INSERT INTO tags (tag) VALUES (?)`
	postTagInsertSQL = `INSERT INTO postTags (postId, tagId, tagIndex) VALUES (?, ?, ?)`

	textPostInsertSQL   = `INSERT INTO textPosts (id, title, body) VALUES (?, ?, ?)`
	quotePostInsertSQL  = `INSERT INTO quotePosts (id, text, source) VALUES (?, ?, ?)`
	linkPostInsertSQL   = `INSERT INTO linkPosts (id, title, url, description) VALUES (?, ?, ?, ?)`
	answerPostInsertSQL = `INSERT INTO answerPosts (id, askingName, askingUrl, question, answer) VALUES (?, ?, ?, ?, ?)`
	audioPostInsertSQL  = `INSERT INTO audioPosts (id, caption, player, plays, albumArt, artist, album, trackName, trackNumber, year)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	videoPostInsertSQL      = `INSERT INTO videoPosts (id, caption) VALUES (?, ?)`
	videoInsertSQL          = `INSERT INTO videos (width, embedCode) VALUES (?, ?)`
	videoPostVideoInsertSQL = `INSERT INTO videoPostVideos (postId, videoId, videoIndex) VALUES (?, ?, ?)`

	chatPostInsertSQL         = `INSERT INTO chatPosts (id, title, body) VALUES (?, ?, ?)`
	dialogueInsertSQL         = `INSERT INTO dialogue (name, label, phrase) VALUES (?, ?, ?)`
	chatPostDialogueInsertSQL = `INSERT INTO chatPostDialogue (postId, dialogueId, dialogueIndex) VALUES (?, ?, ?)`

	photoPostInsertSQL      = `INSERT INTO photoPosts (id, caption, width, height) VALUES (?, ?, ?, ?)`
	photoInsertSQL          = `INSERT INTO photos (caption) VALUES (?)`
	photoPostPhotoInsertSQL = `INSERT INTO photoPostPhotos (postId, photoId, photoIndex) VALUES (?, ?, ?)`
	photoSizeInsertSQL      = `INSERT INTO photoSizes (width, height, url) VALUES (?, ?, ?)`
	photoPhotoSizeInsertSQL = `INSERT INTO photoPhotoSizes (photoId, photoSizeId, photoSizeIndex) VALUES (?, ?, ?)`
)

// statements are the fixed-shape statements of a Repository. They're
// prepared once when the repository is opened and bound to each transaction
// with (*sql.Tx).StmtContext.
type statements struct {
	postGet, postsGetAll, postInsert *sql.Stmt

	tagInsert, postTagInsert *sql.Stmt

	textPostInsert, quotePostInsert, linkPostInsert, answerPostInsert, audioPostInsert *sql.Stmt

	videoPostInsert, videoInsert, videoPostVideoInsert *sql.Stmt

	chatPostInsert, dialogueInsert, chatPostDialogueInsert *sql.Stmt

	photoPostInsert, photoInsert, photoPostPhotoInsert, photoSizeInsert, photoPhotoSizeInsert *sql.Stmt
}

type namedStmt struct {
	dst   **sql.Stmt
	query string
}

func (s *statements) all() []namedStmt {
	return []namedStmt{
		{&s.postGet, postGetSQL},
		{&s.postsGetAll, postsGetAllSQL},
		{&s.postInsert, postInsertSQL},
		{&s.tagInsert, tagInsertSQL},
		{&s.postTagInsert, postTagInsertSQL},
		{&s.textPostInsert, textPostInsertSQL},
		{&s.quotePostInsert, quotePostInsertSQL},
		{&s.linkPostInsert, linkPostInsertSQL},
		{&s.answerPostInsert, answerPostInsertSQL},
		{&s.audioPostInsert, audioPostInsertSQL},
		{&s.videoPostInsert, videoPostInsertSQL},
		{&s.videoInsert, videoInsertSQL},
		{&s.videoPostVideoInsert, videoPostVideoInsertSQL},
		{&s.chatPostInsert, chatPostInsertSQL},
		{&s.dialogueInsert, dialogueInsertSQL},
		{&s.chatPostDialogueInsert, chatPostDialogueInsertSQL},
		{&s.photoPostInsert, photoPostInsertSQL},
		{&s.photoInsert, photoInsertSQL},
		{&s.photoPostPhotoInsert, photoPostPhotoInsertSQL},
		{&s.photoSizeInsert, photoSizeInsertSQL},
		{&s.photoPhotoSizeInsert, photoPhotoSizeInsertSQL},
	}
}

func prepareStatements(ctx context.Context, p preparer) (*statements, error) {
	s := new(statements)
	for _, n := range s.all() {
		stmt, err := p.PrepareContext(ctx, n.query)
		if err != nil {
			_ = s.close()
			return nil, errors.Wrapf(err, "prepare %q", n.query)
		}
		*n.dst = stmt
	}
	return s, nil
}

// close closes every prepared statement, returning the first error.
func (s *statements) close() error {
	var first error
	for _, n := range s.all() {
		if *n.dst == nil {
			continue
		}
		if err := (*n.dst).Close(); err != nil && first == nil {
			first = err
		}
		*n.dst = nil
	}
	return first
}
