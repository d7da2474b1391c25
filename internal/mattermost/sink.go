package mattermost

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// ThreadSink reports the progress and result of one reconciliation run as
// replies in the thread of the upload post. The first status creates the
// status post; later ones edit it.
type ThreadSink struct {
	client    *Client
	channelID string
	rootID    string

	mu       sync.Mutex
	statusID string
}

func NewThreadSink(client *Client, channelID, rootID string) *ThreadSink {
	return &ThreadSink{client: client, channelID: channelID, rootID: rootID}
}

// Status shows text in the status post. Failures are logged only.
func (s *ThreadSink) Status(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statusID == "" {
		post, err := s.client.CreatePost(ctx, Post{ChannelID: s.channelID, RootID: s.rootID, Message: text})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to create status post")
			return
		}
		s.statusID = post.ID
		return
	}

	if err := s.client.UpdatePost(ctx, s.statusID, s.channelID, text); err != nil {
		log.Warn().Err(err).Str("post_id", s.statusID).Msg("Failed to update status post")
	}
}

// Deliver uploads the report, removes the status post and replies with the
// summary and the attachment.
func (s *ThreadSink) Deliver(ctx context.Context, filename string, report []byte, summary string) error {
	fileID, err := s.client.UploadFile(ctx, s.channelID, filename, report)
	if err != nil {
		return err
	}

	s.mu.Lock()
	statusID := s.statusID
	s.statusID = ""
	s.mu.Unlock()

	if statusID != "" {
		if err := s.client.DeletePost(ctx, statusID); err != nil {
			log.Warn().Err(err).Str("post_id", statusID).Msg("Failed to delete status post")
		}
	}

	_, err = s.client.CreatePost(ctx, Post{
		ChannelID: s.channelID,
		RootID:    s.rootID,
		Message:   summary,
		FileIDs:   []string{fileID},
	})
	return err
}

// Notify replies in the thread.
func (s *ThreadSink) Notify(ctx context.Context, text string) error {
	_, err := s.client.CreatePost(ctx, Post{ChannelID: s.channelID, RootID: s.rootID, Message: text})
	return err
}
