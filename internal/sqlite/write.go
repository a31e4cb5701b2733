package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

// writer inserts the variant-specific rows of one post.
type writer func(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error

var writers = map[domain.PostType]writer{
	domain.TypeText:   putTextPost,
	domain.TypeQuote:  putQuotePost,
	domain.TypeLink:   putLinkPost,
	domain.TypeAnswer: putAnswerPost,
	domain.TypeVideo:  putVideoPost,
	domain.TypeAudio:  putAudioPost,
	domain.TypePhoto:  putPhotoPost,
	domain.TypeChat:   putChatPost,
}

// putPosts replaces the stored state of every post in posts. If posts holds
// the same id more than once, the last occurrence wins.
func putPosts(ctx context.Context, tx *sql.Tx, s *statements, posts []domain.Post) error {
	posts = lastByID(posts)

	ids := make([]int64, len(posts))
	byType := make(map[domain.PostType][]*domain.Post)
	for i := range posts {
		p := &posts[i]
		if _, ok := writers[p.Type()]; !ok || !p.HasContent() {
			return errors.Errorf("post %d has no content", p.ID)
		}
		ids[i] = p.ID
		byType[p.Type()] = append(byType[p.Type()], p)
	}

	if err := deletePosts(ctx, tx, ids); err != nil {
		return errors.WithMessage(err, "delete existing posts")
	}

	insert := tx.StmtContext(ctx, s.postInsert)
	for _, p := range posts {
		res, err := insert.ExecContext(ctx, p.ID, p.BlogName, p.PostURL,
			p.Posted.UnixMilli(), p.Retrieved.UnixMilli(), p.Type().String())
		if err != nil {
			return errors.Wrapf(err, "insert post %d", p.ID)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.Wrapf(err, "insert post %d", p.ID)
		} else if n != 1 {
			return &InvariantError{PostID: p.ID, Reason: "post type " + p.Type().String() + " missing from postTypes"}
		}
	}

	for _, t := range domain.PostTypes {
		for _, p := range byType[t] {
			if err := writers[t](ctx, tx, s, p); err != nil {
				return errors.WithMessagef(err, "put %s post %d", t, p.ID)
			}
		}
	}

	if err := putTags(ctx, tx, s, posts); err != nil {
		return errors.WithMessage(err, "put tags")
	}
	return nil
}

func lastByID(posts []domain.Post) []domain.Post {
	index := make(map[int64]int, len(posts))
	out := make([]domain.Post, 0, len(posts))
	for _, p := range posts {
		if i, ok := index[p.ID]; ok {
			out[i] = p
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out
}

// insertID executes an insert and returns the generated row id.
func insertID(ctx context.Context, stmt *sql.Stmt, args ...any) (int64, error) {
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func putTextPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.TextPost)
	_, err := tx.StmtContext(ctx, s.textPostInsert).ExecContext(ctx, p.ID, c.Title, c.Body)
	return err
}

func putQuotePost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.QuotePost)
	_, err := tx.StmtContext(ctx, s.quotePostInsert).ExecContext(ctx, p.ID, c.Text, c.Source)
	return err
}

func putLinkPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.LinkPost)
	_, err := tx.StmtContext(ctx, s.linkPostInsert).ExecContext(ctx, p.ID, c.Title, c.URL, c.Description)
	return err
}

func putAnswerPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.AnswerPost)
	_, err := tx.StmtContext(ctx, s.answerPostInsert).ExecContext(ctx,
		p.ID, c.AskingName, c.AskingURL, c.Question, c.Answer)
	return err
}

func putAudioPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.AudioPost)
	_, err := tx.StmtContext(ctx, s.audioPostInsert).ExecContext(ctx,
		p.ID, c.Caption, c.Player, c.Plays, c.AlbumArt, c.Artist, c.Album, c.TrackName, c.TrackNumber, c.Year)
	return err
}

func putVideoPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.VideoPost)
	if _, err := tx.StmtContext(ctx, s.videoPostInsert).ExecContext(ctx, p.ID, c.Caption); err != nil {
		return err
	}

	video := tx.StmtContext(ctx, s.videoInsert)
	junction := tx.StmtContext(ctx, s.videoPostVideoInsert)
	for index, player := range c.Players {
		videoID, err := insertID(ctx, video, player.Width, player.EmbedCode)
		if err != nil {
			return errors.Wrapf(err, "insert player %d", index)
		}
		if _, err := junction.ExecContext(ctx, p.ID, videoID, index); err != nil {
			return errors.Wrapf(err, "link player %d", index)
		}
	}
	return nil
}

func putChatPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.ChatPost)
	if _, err := tx.StmtContext(ctx, s.chatPostInsert).ExecContext(ctx, p.ID, c.Title, c.Body); err != nil {
		return err
	}

	dialogue := tx.StmtContext(ctx, s.dialogueInsert)
	junction := tx.StmtContext(ctx, s.chatPostDialogueInsert)
	for index, d := range c.Dialogue {
		dialogueID, err := insertID(ctx, dialogue, d.Name, d.Label, d.Phrase)
		if err != nil {
			return errors.Wrapf(err, "insert dialogue %d", index)
		}
		if _, err := junction.ExecContext(ctx, p.ID, dialogueID, index); err != nil {
			return errors.Wrapf(err, "link dialogue %d", index)
		}
	}
	return nil
}

func putPhotoPost(ctx context.Context, tx *sql.Tx, s *statements, p *domain.Post) error {
	c := p.Content.(*domain.PhotoPost)
	_, err := tx.StmtContext(ctx, s.photoPostInsert).ExecContext(ctx,
		p.ID, c.Caption, optionalInt(c.Width), optionalInt(c.Height))
	if err != nil {
		return err
	}

	photo := tx.StmtContext(ctx, s.photoInsert)
	photoJunction := tx.StmtContext(ctx, s.photoPostPhotoInsert)
	size := tx.StmtContext(ctx, s.photoSizeInsert)
	sizeJunction := tx.StmtContext(ctx, s.photoPhotoSizeInsert)

	for photoIndex, ph := range c.Photos {
		photoID, err := insertID(ctx, photo, ph.Caption)
		if err != nil {
			return errors.Wrapf(err, "insert photo %d", photoIndex)
		}
		if _, err := photoJunction.ExecContext(ctx, p.ID, photoID, photoIndex); err != nil {
			return errors.Wrapf(err, "link photo %d", photoIndex)
		}

		for sizeIndex, sz := range ph.Sizes {
			sizeID, err := insertID(ctx, size, sz.Width, sz.Height, sz.URL)
			if err != nil {
				return errors.Wrapf(err, "insert size %d of photo %d", sizeIndex, photoIndex)
			}
			if _, err := sizeJunction.ExecContext(ctx, photoID, sizeID, sizeIndex); err != nil {
				return errors.Wrapf(err, "link size %d of photo %d", sizeIndex, photoIndex)
			}
		}
	}
	return nil
}

func optionalInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
