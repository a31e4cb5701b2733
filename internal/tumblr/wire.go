package tumblr

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

type postsResponse struct {
	Posts      []wirePost `json:"posts"`
	TotalPosts int        `json:"total_posts"`
}

// wirePost is the union of the fields the v2 API returns for every legacy
// post type. Fields which a type doesn't use are left empty.
type wirePost struct {
	ID        int64    `json:"id"`
	BlogName  string   `json:"blog_name"`
	PostURL   string   `json:"post_url"`
	Type      string   `json:"type"`
	Timestamp int64    `json:"timestamp"`
	Tags      []string `json:"tags"`

	Title       string `json:"title"`
	Body        string `json:"body"`
	Caption     string `json:"caption"`
	Text        string `json:"text"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Description string `json:"description"`

	AskingName string `json:"asking_name"`
	AskingURL  string `json:"asking_url"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`

	// Player is an HTML string on audio posts and a list of sized embeds on
	// video posts.
	Player json.RawMessage `json:"player"`

	Plays       int    `json:"plays"`
	AlbumArt    string `json:"album_art"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	TrackName   string `json:"track_name"`
	TrackNumber int    `json:"track_number"`
	Year        int    `json:"year"`

	Width  *int        `json:"width"`
	Height *int        `json:"height"`
	Photos []wirePhoto `json:"photos"`

	Dialogue []wireDialogue `json:"dialogue"`
}

type wirePlayer struct {
	Width     int    `json:"width"`
	EmbedCode string `json:"embed_code"`
}

type wirePhoto struct {
	Caption  string          `json:"caption"`
	AltSizes []wirePhotoSize `json:"alt_sizes"`
}

type wirePhotoSize struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

type wireDialogue struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Phrase string `json:"phrase"`
}

// toDomain converts a wire post into the domain model. retrieved is recorded
// as the time the post was fetched.
func (w *wirePost) toDomain(retrieved time.Time) (domain.Post, error) {
	content, err := w.content()
	if err != nil {
		return domain.Post{}, fmt.Errorf("post %d: %w", w.ID, err)
	}
	return domain.Post{
		ID:        w.ID,
		BlogName:  w.BlogName,
		PostURL:   w.PostURL,
		Posted:    time.Unix(w.Timestamp, 0),
		Retrieved: retrieved.Truncate(time.Millisecond),
		Tags:      w.Tags,
		Content:   content,
	}, nil
}

func (w *wirePost) content() (domain.Content, error) {
	t, err := domain.ParsePostType(w.Type)
	if err != nil {
		return nil, err
	}

	switch t {
	case domain.TypeText:
		return &domain.TextPost{Title: w.Title, Body: w.Body}, nil
	case domain.TypeQuote:
		return &domain.QuotePost{Text: w.Text, Source: w.Source}, nil
	case domain.TypeLink:
		return &domain.LinkPost{Title: w.Title, URL: w.URL, Description: w.Description}, nil
	case domain.TypeAnswer:
		return &domain.AnswerPost{
			AskingName: w.AskingName,
			AskingURL:  w.AskingURL,
			Question:   w.Question,
			Answer:     w.Answer,
		}, nil
	case domain.TypeAudio:
		var player string
		if len(w.Player) > 0 {
			if err := json.Unmarshal(w.Player, &player); err != nil {
				return nil, fmt.Errorf("decode audio player: %w", err)
			}
		}
		return &domain.AudioPost{
			Caption:     w.Caption,
			Player:      player,
			Plays:       w.Plays,
			AlbumArt:    w.AlbumArt,
			Artist:      w.Artist,
			Album:       w.Album,
			TrackName:   w.TrackName,
			TrackNumber: w.TrackNumber,
			Year:        w.Year,
		}, nil
	case domain.TypeVideo:
		var players []wirePlayer
		if len(w.Player) > 0 {
			if err := json.Unmarshal(w.Player, &players); err != nil {
				return nil, fmt.Errorf("decode video players: %w", err)
			}
		}
		c := &domain.VideoPost{Caption: w.Caption}
		for _, p := range players {
			c.Players = append(c.Players, domain.Player{Width: p.Width, EmbedCode: p.EmbedCode})
		}
		return c, nil
	case domain.TypePhoto:
		c := &domain.PhotoPost{Caption: w.Caption, Width: w.Width, Height: w.Height}
		for _, p := range w.Photos {
			photo := domain.Photo{Caption: p.Caption}
			for _, s := range p.AltSizes {
				photo.Sizes = append(photo.Sizes, domain.PhotoSize{Width: s.Width, Height: s.Height, URL: s.URL})
			}
			c.Photos = append(c.Photos, photo)
		}
		return c, nil
	case domain.TypeChat:
		c := &domain.ChatPost{Title: w.Title, Body: w.Body}
		for _, d := range w.Dialogue {
			c.Dialogue = append(c.Dialogue, domain.Dialogue{Name: d.Name, Label: d.Label, Phrase: d.Phrase})
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported post type %s", t)
	}
}
