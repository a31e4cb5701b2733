package domain

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"
)

// PostType is the discriminant selecting which Content variant a post carries.
type PostType int

const (
	TypeText PostType = iota + 1
	TypeQuote
	TypeLink
	TypeAnswer
	TypeVideo
	TypeAudio
	TypePhoto
	TypeChat
)

// PostTypes lists every known variant in lookup-table order.
var PostTypes = []PostType{
	TypeText, TypeQuote, TypeLink, TypeAnswer, TypeVideo, TypeAudio, TypePhoto, TypeChat,
}

var postTypeNames = map[PostType]string{
	TypeText:   "TEXT",
	TypeQuote:  "QUOTE",
	TypeLink:   "LINK",
	TypeAnswer: "ANSWER",
	TypeVideo:  "VIDEO",
	TypeAudio:  "AUDIO",
	TypePhoto:  "PHOTO",
	TypeChat:   "CHAT",
}

// String returns the persisted name of the variant (e.g. "TEXT").
func (t PostType) String() string {
	if name, ok := postTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PostType(%d)", int(t))
}

// ParsePostType resolves a variant name, ignoring case.
func ParsePostType(name string) (PostType, error) {
	upper := strings.ToUpper(name)
	for t, n := range postTypeNames {
		if n == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown post type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t PostType) MarshalText() ([]byte, error) {
	if _, ok := postTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown post type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *PostType) UnmarshalText(b []byte) error {
	parsed, err := ParsePostType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Post is an archived post: the metadata every variant shares plus exactly
// one Content payload.
type Post struct {
	// ID is the globally unique post id. It is shared by all variants.
	ID int64

	// BlogName is the name of the blog the post belongs to.
	BlogName string

	// PostURL is the public URL of the post.
	PostURL string

	// Posted is when the post was published. Persisted at millisecond precision.
	Posted time.Time

	// Retrieved is when the post was fetched. Persisted at millisecond precision.
	Retrieved time.Time

	// Tags is ordered. Duplicates are kept.
	Tags []string

	// Content is one of *TextPost, *QuotePost, *LinkPost, *AnswerPost,
	// *VideoPost, *AudioPost, *PhotoPost or *ChatPost.
	Content Content
}

// Type returns the discriminant of the post's content, or zero if it has none.
func (p *Post) Type() PostType {
	if p.Content == nil {
		return 0
	}
	return p.Content.Type()
}

// HasContent reports whether the post carries a non-nil variant payload.
func (p *Post) HasContent() bool {
	return p.Content != nil && !reflect.ValueOf(p.Content).IsNil()
}

// Equal reports whether two posts are equal in every field, comparing
// timestamps as instants.
func (p *Post) Equal(o *Post) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.ID != o.ID ||
		p.BlogName != o.BlogName ||
		p.PostURL != o.PostURL ||
		!p.Posted.Equal(o.Posted) ||
		!p.Retrieved.Equal(o.Retrieved) ||
		!slices.Equal(p.Tags, o.Tags) {
		return false
	}
	if p.Content == nil || o.Content == nil {
		return p.Content == nil && o.Content == nil
	}
	return p.Content.equal(o.Content)
}

// Content is the variant-specific payload of a Post. The set of
// implementations is closed.
type Content interface {
	Type() PostType
	equal(Content) bool
}

// TextPost is a titled body of text.
type TextPost struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (*TextPost) Type() PostType { return TypeText }

func (c *TextPost) equal(o Content) bool {
	other, ok := o.(*TextPost)
	return ok && *c == *other
}

// QuotePost is a quotation and its source.
type QuotePost struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (*QuotePost) Type() PostType { return TypeQuote }

func (c *QuotePost) equal(o Content) bool {
	other, ok := o.(*QuotePost)
	return ok && *c == *other
}

// LinkPost points at an outside URL.
type LinkPost struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (*LinkPost) Type() PostType { return TypeLink }

func (c *LinkPost) equal(o Content) bool {
	other, ok := o.(*LinkPost)
	return ok && *c == *other
}

// AnswerPost is an answered ask.
type AnswerPost struct {
	AskingName string `json:"asking_name"`
	AskingURL  string `json:"asking_url"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

func (*AnswerPost) Type() PostType { return TypeAnswer }

func (c *AnswerPost) equal(o Content) bool {
	other, ok := o.(*AnswerPost)
	return ok && *c == *other
}

// VideoPost carries one embed per player width, in order.
type VideoPost struct {
	Caption string   `json:"caption"`
	Players []Player `json:"players"`
}

// Player is a single embeddable video player.
type Player struct {
	Width     int    `json:"width"`
	EmbedCode string `json:"embed_code"`
}

func (*VideoPost) Type() PostType { return TypeVideo }

func (c *VideoPost) equal(o Content) bool {
	other, ok := o.(*VideoPost)
	return ok && c.Caption == other.Caption && slices.Equal(c.Players, other.Players)
}

// AudioPost is a track with its player markup.
type AudioPost struct {
	Caption     string `json:"caption"`
	Player      string `json:"player"`
	Plays       int    `json:"plays"`
	AlbumArt    string `json:"album_art"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	TrackName   string `json:"track_name"`
	TrackNumber int    `json:"track_number"`
	Year        int    `json:"year"`
}

func (*AudioPost) Type() PostType { return TypeAudio }

func (c *AudioPost) equal(o Content) bool {
	other, ok := o.(*AudioPost)
	return ok && *c == *other
}

// ChatPost is a transcript of dialogue lines, in order.
type ChatPost struct {
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Dialogue []Dialogue `json:"dialogue"`
}

// Dialogue is one line of a chat transcript.
type Dialogue struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Phrase string `json:"phrase"`
}

func (*ChatPost) Type() PostType { return TypeChat }

func (c *ChatPost) equal(o Content) bool {
	other, ok := o.(*ChatPost)
	return ok && c.Title == other.Title && c.Body == other.Body &&
		slices.Equal(c.Dialogue, other.Dialogue)
}

// PhotoPost is a captioned set of photos. Width and Height are optional.
type PhotoPost struct {
	Caption string  `json:"caption"`
	Width   *int    `json:"width,omitempty"`
	Height  *int    `json:"height,omitempty"`
	Photos  []Photo `json:"photos"`
}

// Photo is one image of a photo post, available in several sizes.
type Photo struct {
	Caption string      `json:"caption"`
	Sizes   []PhotoSize `json:"sizes"`
}

// PhotoSize is one rendition of a photo.
type PhotoSize struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url"`
}

func (*PhotoPost) Type() PostType { return TypePhoto }

func (c *PhotoPost) equal(o Content) bool {
	other, ok := o.(*PhotoPost)
	if !ok {
		return false
	}
	return c.Caption == other.Caption &&
		equalOptional(c.Width, other.Width) &&
		equalOptional(c.Height, other.Height) &&
		slices.EqualFunc(c.Photos, other.Photos, func(a, b Photo) bool {
			return a.Caption == b.Caption && slices.Equal(a.Sizes, b.Sizes)
		})
}

func equalOptional(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
