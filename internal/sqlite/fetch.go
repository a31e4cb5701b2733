package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

const (
	textPostsSQLTemplate   = `SELECT id, title, body FROM textPosts WHERE id IN (%s)`
	quotePostsSQLTemplate  = `SELECT id, text, source FROM quotePosts WHERE id IN (%s)`
	linkPostsSQLTemplate   = `SELECT id, title, url, description FROM linkPosts WHERE id IN (%s)`
	answerPostsSQLTemplate = `SELECT id, askingName, askingUrl, question, answer FROM answerPosts WHERE id IN (%s)`
	audioPostsSQLTemplate  = `SELECT id, caption, player, plays, albumArt, artist, album, trackName, trackNumber, year
		FROM audioPosts WHERE id IN (%s)`

	videoPostsSQLTemplate      = `SELECT id, caption FROM videoPosts WHERE id IN (%s)`
	videoPostVideosSQLTemplate = `SELECT videoPostVideos.postId, videos.width, videos.embedCode FROM videoPostVideos
		JOIN videos ON videos.id = videoPostVideos.videoId
		WHERE videoPostVideos.postId IN (%s)
		ORDER BY videoPostVideos.postId, videoPostVideos.videoIndex`

	chatPostsSQLTemplate        = `SELECT id, title, body FROM chatPosts WHERE id IN (%s)`
	chatPostDialogueSQLTemplate = `SELECT chatPostDialogue.postId, dialogue.name, dialogue.label, dialogue.phrase FROM chatPostDialogue
		JOIN dialogue ON dialogue.id = chatPostDialogue.dialogueId
		WHERE chatPostDialogue.postId IN (%s)
		ORDER BY chatPostDialogue.postId, chatPostDialogue.dialogueIndex`

	photoPostsSQLTemplate = `SELECT id, caption, width, height FROM photoPosts WHERE id IN (%s)`
	photosSQLTemplate     = `SELECT photoPostPhotos.postId, photoPostPhotos.photoId, photos.caption FROM photoPostPhotos
		JOIN photos ON photos.id = photoPostPhotos.photoId
		WHERE photoPostPhotos.postId IN (%s)
		ORDER BY photoPostPhotos.postId, photoPostPhotos.photoIndex`
	photoSizesSQLTemplate = `SELECT photoPhotoSizes.photoId, photoSizes.width, photoSizes.height, photoSizes.url FROM photoPostPhotos
		JOIN photoPhotoSizes ON photoPhotoSizes.photoId = photoPostPhotos.photoId
		JOIN photoSizes ON photoSizes.id = photoPhotoSizes.photoSizeId
		WHERE photoPostPhotos.postId IN (%s)
		ORDER BY photoPhotoSizes.photoId, photoPhotoSizes.photoSizeIndex`
)

// fetcher fills in the variant-specific fields of posts of one type.
type fetcher func(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error

var fetchers = map[domain.PostType]fetcher{
	domain.TypeText:   fetchTextPosts,
	domain.TypeQuote:  fetchQuotePosts,
	domain.TypeLink:   fetchLinkPosts,
	domain.TypeAnswer: fetchAnswerPosts,
	domain.TypeVideo:  fetchVideoPosts,
	domain.TypeAudio:  fetchAudioPosts,
	domain.TypePhoto:  fetchPhotoPosts,
	domain.TypeChat:   fetchChatPosts,
}

// readPosts consumes rows of the posts table (as selected by postGetSQL or
// postsGetAllSQL) and assembles complete posts from them.
func readPosts(ctx context.Context, tx *sql.Tx, rows *sql.Rows) ([]domain.Post, error) {
	var (
		order  []int64
		posts  = make(map[int64]*domain.Post)
		byType = make(map[domain.PostType][]int64)
	)

	for rows.Next() {
		var (
			p                 domain.Post
			posted, retrieved int64
			typeName          string
		)
		if err := rows.Scan(&p.ID, &p.BlogName, &p.PostURL, &posted, &retrieved, &typeName); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan post")
		}

		t, err := domain.ParsePostType(typeName)
		if err != nil {
			rows.Close()
			return nil, &InvariantError{PostID: p.ID, Reason: err.Error()}
		}
		if p.Content, err = domain.NewContent(t); err != nil {
			rows.Close()
			return nil, &InvariantError{PostID: p.ID, Reason: err.Error()}
		}
		p.Posted = time.UnixMilli(posted)
		p.Retrieved = time.UnixMilli(retrieved)

		order = append(order, p.ID)
		posts[p.ID] = &p
		byType[t] = append(byType[t], p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate posts")
	}
	if err := rows.Close(); err != nil {
		return nil, errors.Wrap(err, "close posts")
	}
	if len(order) == 0 {
		return nil, nil
	}

	if err := fetchTags(ctx, tx, order, posts); err != nil {
		return nil, errors.WithMessage(err, "fetch tags")
	}
	for _, t := range domain.PostTypes {
		ids := byType[t]
		if len(ids) == 0 {
			continue
		}
		if err := fetchers[t](ctx, tx, ids, posts); err != nil {
			return nil, errors.WithMessagef(err, "fetch %s posts", t)
		}
	}

	out := make([]domain.Post, len(order))
	for i, id := range order {
		out[i] = *posts[id]
	}
	return out, nil
}

// contentOf returns the typed content of the post with the given id.
func contentOf[T domain.Content](posts map[int64]*domain.Post, id int64) (T, error) {
	var zero T
	p, ok := posts[id]
	if !ok {
		return zero, errors.Errorf("row for unrequested post %d", id)
	}
	c, ok := p.Content.(T)
	if !ok {
		return zero, &InvariantError{PostID: id, Reason: "variant row does not match post type " + p.Type().String()}
	}
	return c, nil
}

func fetchTextPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, textPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var c domain.TextPost
		if err := rows.Scan(&id, &c.Title, &c.Body); err != nil {
			return err
		}
		dst, err := contentOf[*domain.TextPost](posts, id)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	})
}

func fetchQuotePosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, quotePostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var c domain.QuotePost
		if err := rows.Scan(&id, &c.Text, &c.Source); err != nil {
			return err
		}
		dst, err := contentOf[*domain.QuotePost](posts, id)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	})
}

func fetchLinkPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, linkPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var c domain.LinkPost
		if err := rows.Scan(&id, &c.Title, &c.URL, &c.Description); err != nil {
			return err
		}
		dst, err := contentOf[*domain.LinkPost](posts, id)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	})
}

func fetchAnswerPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, answerPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var c domain.AnswerPost
		if err := rows.Scan(&id, &c.AskingName, &c.AskingURL, &c.Question, &c.Answer); err != nil {
			return err
		}
		dst, err := contentOf[*domain.AnswerPost](posts, id)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	})
}

func fetchAudioPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	return scanChunks(ctx, tx, audioPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var c domain.AudioPost
		err := rows.Scan(&id, &c.Caption, &c.Player, &c.Plays, &c.AlbumArt, &c.Artist,
			&c.Album, &c.TrackName, &c.TrackNumber, &c.Year)
		if err != nil {
			return err
		}
		dst, err := contentOf[*domain.AudioPost](posts, id)
		if err != nil {
			return err
		}
		*dst = c
		return nil
	})
}

func fetchVideoPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	err := scanChunks(ctx, tx, videoPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var caption string
		if err := rows.Scan(&id, &caption); err != nil {
			return err
		}
		dst, err := contentOf[*domain.VideoPost](posts, id)
		if err != nil {
			return err
		}
		dst.Caption = caption
		return nil
	})
	if err != nil {
		return err
	}

	return scanChunks(ctx, tx, videoPostVideosSQLTemplate, ids, func(rows *sql.Rows) error {
		var postID int64
		var player domain.Player
		if err := rows.Scan(&postID, &player.Width, &player.EmbedCode); err != nil {
			return err
		}
		dst, err := contentOf[*domain.VideoPost](posts, postID)
		if err != nil {
			return err
		}
		dst.Players = append(dst.Players, player)
		return nil
	})
}

func fetchChatPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	err := scanChunks(ctx, tx, chatPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var title, body string
		if err := rows.Scan(&id, &title, &body); err != nil {
			return err
		}
		dst, err := contentOf[*domain.ChatPost](posts, id)
		if err != nil {
			return err
		}
		dst.Title, dst.Body = title, body
		return nil
	})
	if err != nil {
		return err
	}

	return scanChunks(ctx, tx, chatPostDialogueSQLTemplate, ids, func(rows *sql.Rows) error {
		var postID int64
		var d domain.Dialogue
		if err := rows.Scan(&postID, &d.Name, &d.Label, &d.Phrase); err != nil {
			return err
		}
		dst, err := contentOf[*domain.ChatPost](posts, postID)
		if err != nil {
			return err
		}
		dst.Dialogue = append(dst.Dialogue, d)
		return nil
	})
}

func fetchPhotoPosts(ctx context.Context, tx *sql.Tx, ids []int64, posts map[int64]*domain.Post) error {
	// Sizes first, so photos can be completed as they're read.
	sizesByPhoto := make(map[int64][]domain.PhotoSize)
	err := scanChunks(ctx, tx, photoSizesSQLTemplate, ids, func(rows *sql.Rows) error {
		var photoID int64
		var size domain.PhotoSize
		if err := rows.Scan(&photoID, &size.Width, &size.Height, &size.URL); err != nil {
			return err
		}
		sizesByPhoto[photoID] = append(sizesByPhoto[photoID], size)
		return nil
	})
	if err != nil {
		return err
	}

	err = scanChunks(ctx, tx, photosSQLTemplate, ids, func(rows *sql.Rows) error {
		var postID, photoID int64
		var caption string
		if err := rows.Scan(&postID, &photoID, &caption); err != nil {
			return err
		}
		dst, err := contentOf[*domain.PhotoPost](posts, postID)
		if err != nil {
			return err
		}
		dst.Photos = append(dst.Photos, domain.Photo{Caption: caption, Sizes: sizesByPhoto[photoID]})
		return nil
	})
	if err != nil {
		return err
	}

	return scanChunks(ctx, tx, photoPostsSQLTemplate, ids, func(rows *sql.Rows) error {
		var id int64
		var caption string
		var width, height sql.NullInt64
		if err := rows.Scan(&id, &caption, &width, &height); err != nil {
			return err
		}
		dst, err := contentOf[*domain.PhotoPost](posts, id)
		if err != nil {
			return err
		}
		dst.Caption = caption
		dst.Width = nullableInt(width)
		dst.Height = nullableInt(height)
		return nil
	})
}

func nullableInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
