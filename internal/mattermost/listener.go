package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sverka/internal/retry"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler receives posts with attachments from the watched channel.
type Handler func(ctx context.Context, post Post)

type event struct {
	Event string `json:"event"`
	Data  struct {
		Post string `json:"post"`
	} `json:"data"`
}

// Listener follows the websocket event stream and hands matching posts to a
// handler. It reconnects until its context is cancelled.
type Listener struct {
	url       string
	token     string
	channelID string
	reconnect retry.Config
	dialer    *websocket.Dialer
	handler   Handler
}

// WebsocketURL derives the event stream endpoint from the REST base URL.
func WebsocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/api/v4/websocket"
}

func NewListener(cfg Config, channelID string, handler Handler) *Listener {
	dialer := *websocket.DefaultDialer
	if !cfg.VerifySSL {
		dialer.TLSClientConfig = insecureTLS()
	}
	return &Listener{
		url:       WebsocketURL(cfg.BaseURL),
		token:     cfg.Token,
		channelID: channelID,
		reconnect: cfg.Resilience.Reconnect,
		dialer:    &dialer,
		handler:   handler,
	}
}

// Run blocks until ctx is cancelled, reconnecting with backoff whenever the
// stream drops.
func (l *Listener) Run(ctx context.Context) error {
	_, err := retry.WithRetry(ctx, l.reconnect, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, l.listen(ctx)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (l *Listener) listen(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.token)

	conn, _, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()

	log.Info().Str("url", l.url).Str("channel_id", l.channelID).Msg("Listening for chat events")

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("Chat event stream dropped")
			return fmt.Errorf("read websocket: %w", err)
		}
		l.dispatch(ctx, data)
	}
}

// dispatch decodes one event and calls the handler for new posts with files
// in the watched channel. It reports whether the handler was called.
func (l *Listener) dispatch(ctx context.Context, data []byte) bool {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil || ev.Event != "posted" {
		return false
	}

	var post Post
	if err := json.Unmarshal([]byte(ev.Data.Post), &post); err != nil {
		log.Debug().Err(err).Msg("Skipping malformed posted event")
		return false
	}
	if post.FromBot() || post.ChannelID != l.channelID || len(post.FileIDs) == 0 {
		return false
	}

	log.Info().
		Str("post_id", post.ID).
		Int("files", len(post.FileIDs)).
		Msg("Received timesheet upload")
	l.handler(ctx, post)
	return true
}
