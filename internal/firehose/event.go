package firehose

import (
	"encoding/json"
	"fmt"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

const (
	kindPut    = "put"
	kindDelete = "delete"
)

// streamEvent is one message of the post stream. Put events carry the full
// post; delete events carry only its id.
type streamEvent struct {
	Seq  int64        `json:"seq"`
	Kind string       `json:"kind"`
	Post *domain.Post `json:"post,omitempty"`
	ID   int64        `json:"id,omitempty"`
}

func parseEvent(data []byte) (*streamEvent, error) {
	var event streamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	switch event.Kind {
	case kindPut:
		if event.Post == nil {
			return nil, fmt.Errorf("put event %d has no post", event.Seq)
		}
	case kindDelete:
		if event.ID == 0 {
			return nil, fmt.Errorf("delete event %d has no id", event.Seq)
		}
	}
	return &event, nil
}
