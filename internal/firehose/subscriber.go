package firehose

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/blackmichael/tumblr-archive/internal/domain"
)

const (
	cursorServiceName  = "post-stream"
	cursorSaveInterval = 5 * time.Second
	statsInterval      = 30 * time.Second
	reconnectDelay     = 5 * time.Second
)

// Archive is the subset of domain.ArchiveService the subscriber applies
// events to.
type Archive interface {
	Put(ctx context.Context, posts ...domain.Post) error
	Delete(ctx context.Context, id int64) error
	GetCursor(ctx context.Context, service string) (int64, error)
	UpdateCursor(ctx context.Context, service string, cursor int64) error
}

// Subscriber connects to a websocket post stream and mirrors its events into
// the archive.
type Subscriber struct {
	url     string
	archive Archive
	logger  *slog.Logger

	cursorSaveInterval time.Duration
	reconnectDelay     time.Duration
}

// NewSubscriber creates a new stream subscriber.
func NewSubscriber(streamURL string, archive Archive, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:                streamURL,
		archive:            archive,
		logger:             logger,
		cursorSaveInterval: cursorSaveInterval,
		reconnectDelay:     reconnectDelay,
	}
}

// Start connects to the stream and processes events until the context is
// cancelled. It automatically reconnects on transient errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnectDelay):
					// backoff before reconnecting
				}
			}
		}
	}
}

func (s *Subscriber) buildURL(cursor int64) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	if cursor > 0 {
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(cursor, 10))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	cursor, err := s.archive.GetCursor(ctx, cursorServiceName)
	if err != nil {
		s.logger.Warn("failed to load cursor, starting from live", "error", err)
	}

	wsURL, err := s.buildURL(cursor)
	if err != nil {
		return err
	}
	s.logger.Info("connecting to post stream", "url", wsURL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial post stream: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to post stream")

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	latestCursor := cursor
	savedCursor := cursor
	saveCursor := func(ctx context.Context) {
		if latestCursor == savedCursor {
			return
		}
		if err := s.archive.UpdateCursor(ctx, cursorServiceName, latestCursor); err != nil {
			s.logger.Error("failed to save cursor", "error", err)
			return
		}
		savedCursor = latestCursor
	}
	defer saveCursor(context.WithoutCancel(ctx))

	lastCursorSave := time.Now()
	var eventsReceived, postsStored, postsDeleted int64
	lastStatsLog := time.Now()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		event, err := parseEvent(message)
		if err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}

		eventsReceived++

		switch event.Kind {
		case kindPut:
			if err := s.archive.Put(ctx, *event.Post); err != nil {
				s.logger.Error("failed to store post", "seq", event.Seq, "post_id", event.Post.ID, "error", err)
			} else {
				postsStored++
			}
		case kindDelete:
			if err := s.archive.Delete(ctx, event.ID); err != nil {
				s.logger.Error("failed to delete post", "seq", event.Seq, "post_id", event.ID, "error", err)
			} else {
				postsDeleted++
			}
		default:
			s.logger.Debug("ignoring event", "seq", event.Seq, "kind", event.Kind)
		}
		latestCursor = event.Seq

		if time.Since(lastStatsLog) >= statsInterval {
			s.logger.Info("post stream stats",
				"events_received", humanize.Comma(eventsReceived),
				"posts_stored", humanize.Comma(postsStored),
				"posts_deleted", humanize.Comma(postsDeleted),
			)
			lastStatsLog = time.Now()
		}

		if time.Since(lastCursorSave) >= s.cursorSaveInterval {
			saveCursor(ctx)
			lastCursorSave = time.Now()
		}
	}
}
