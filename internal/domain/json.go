package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// postJSON is the wire form of a Post. The variant payload is nested under
// "content" and selected by "type".
type postJSON struct {
	ID        int64           `json:"id"`
	BlogName  string          `json:"blog_name"`
	PostURL   string          `json:"post_url"`
	Posted    time.Time       `json:"posted"`
	Retrieved time.Time       `json:"retrieved"`
	Tags      []string        `json:"tags"`
	Type      PostType        `json:"type"`
	Content   json.RawMessage `json:"content"`
}

// MarshalJSON implements json.Marshaler.
func (p Post) MarshalJSON() ([]byte, error) {
	if !p.HasContent() {
		return nil, fmt.Errorf("post %d has no content", p.ID)
	}
	content, err := json.Marshal(p.Content)
	if err != nil {
		return nil, fmt.Errorf("marshal post %d content: %w", p.ID, err)
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(postJSON{
		ID:        p.ID,
		BlogName:  p.BlogName,
		PostURL:   p.PostURL,
		Posted:    p.Posted,
		Retrieved: p.Retrieved,
		Tags:      tags,
		Type:      p.Content.Type(),
		Content:   content,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Post) UnmarshalJSON(data []byte) error {
	var raw postJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	content, err := NewContent(raw.Type)
	if err != nil {
		return fmt.Errorf("post %d: %w", raw.ID, err)
	}
	if len(raw.Content) > 0 {
		if err := json.Unmarshal(raw.Content, content); err != nil {
			return fmt.Errorf("unmarshal post %d content: %w", raw.ID, err)
		}
	}

	*p = Post{
		ID:        raw.ID,
		BlogName:  raw.BlogName,
		PostURL:   raw.PostURL,
		Posted:    raw.Posted,
		Retrieved: raw.Retrieved,
		Tags:      raw.Tags,
		Content:   content,
	}
	return nil
}

// NewContent returns a zero-valued Content for the given variant.
func NewContent(t PostType) (Content, error) {
	switch t {
	case TypeText:
		return &TextPost{}, nil
	case TypeQuote:
		return &QuotePost{}, nil
	case TypeLink:
		return &LinkPost{}, nil
	case TypeAnswer:
		return &AnswerPost{}, nil
	case TypeVideo:
		return &VideoPost{}, nil
	case TypeAudio:
		return &AudioPost{}, nil
	case TypePhoto:
		return &PhotoPost{}, nil
	case TypeChat:
		return &ChatPost{}, nil
	default:
		return nil, fmt.Errorf("unknown post type %d", int(t))
	}
}

// DecodePosts decodes either a single JSON post or an array of posts.
func DecodePosts(data []byte) ([]Post, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty input")
	}

	if trimmed[0] == '[' {
		var posts []Post
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return nil, fmt.Errorf("decode posts: %w", err)
		}
		return posts, nil
	}

	var post Post
	if err := json.Unmarshal(trimmed, &post); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return []Post{post}, nil
}
