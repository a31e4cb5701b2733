package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestParsePostType(t *testing.T) {
	for _, pt := range PostTypes {
		parsed, err := ParsePostType(pt.String())
		require.NoError(t, err)
		require.Equal(t, pt, parsed)
	}

	parsed, err := ParsePostType("photo")
	require.NoError(t, err)
	require.Equal(t, TypePhoto, parsed)

	_, err = ParsePostType("REBLOG")
	require.Error(t, err)
	require.Equal(t, "PostType(99)", PostType(99).String())
}

func TestPostEqual(t *testing.T) {
	base := func() Post {
		return Post{
			ID:        1,
			BlogName:  "staff",
			PostURL:   "https://staff.tumblr.com/post/1",
			Posted:    time.UnixMilli(1000),
			Retrieved: time.UnixMilli(2000),
			Tags:      []string{"a", "b"},
			Content: &PhotoPost{Caption: "c", Width: intPtr(10), Photos: []Photo{
				{Caption: "p", Sizes: []PhotoSize{{Width: 1, Height: 2, URL: "u"}}},
			}},
		}
	}

	a, b := base(), base()
	require.True(t, a.Equal(&b))

	// Same instant in another location is still equal.
	b.Posted = b.Posted.UTC()
	require.True(t, a.Equal(&b))

	b = base()
	b.Content.(*PhotoPost).Caption = "other"
	require.False(t, a.Equal(&b))

	b = base()
	b.Content.(*PhotoPost).Photos[0].Caption = "other"
	require.False(t, a.Equal(&b))

	b = base()
	b.Content.(*PhotoPost).Width = nil
	require.False(t, a.Equal(&b))

	b = base()
	b.Tags = []string{"b", "a"}
	require.False(t, a.Equal(&b))

	b = base()
	b.Content = &TextPost{Title: "c"}
	require.False(t, a.Equal(&b))

	require.False(t, a.Equal(nil))
	require.True(t, (*Post)(nil).Equal(nil))
}

func TestPostJSON(t *testing.T) {
	post := Post{
		ID:        7,
		BlogName:  "staff",
		PostURL:   "https://staff.tumblr.com/post/7",
		Posted:    time.UnixMilli(1_500_000_000_000).UTC(),
		Retrieved: time.UnixMilli(1_600_000_000_000).UTC(),
		Content: &ChatPost{Title: "chat", Dialogue: []Dialogue{
			{Name: "a", Label: "a:", Phrase: "hi"},
		}},
	}

	data, err := json.Marshal(post)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": 7,
		"blog_name": "staff",
		"post_url": "https://staff.tumblr.com/post/7",
		"posted": "2017-07-14T02:40:00Z",
		"retrieved": "2020-09-13T12:26:40Z",
		"tags": [],
		"type": "CHAT",
		"content": {"title": "chat", "body": "", "dialogue": [{"name": "a", "label": "a:", "phrase": "hi"}]}
	}`, string(data))

	var decoded Post
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, post.Equal(&decoded), "got %+v", decoded)

	_, err = json.Marshal(Post{ID: 8})
	require.Error(t, err)

	require.Error(t, json.Unmarshal([]byte(`{"id": 9, "type": "REBLOG"}`), &decoded))
	require.Error(t, json.Unmarshal([]byte(`{"id": 9}`), &decoded))
}
