package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"sverka/internal/app"
	"sverka/internal/mattermost"
	"sverka/internal/processing"

	"github.com/rs/zerolog/log"
)

// runBot listens for timesheet uploads and reconciles every attached file in
// its own goroutine, replying in the thread of the upload.
func runBot(ctx context.Context, cfg app.Config, clients app.Clients, runner *processing.Runner) error {
	me, err := clients.Mattermost.Me(ctx)
	if err != nil {
		return fmt.Errorf("failed to authenticate with chat: %w", err)
	}
	log.Info().
		Str("user", me.Username).
		Str("url", cfg.MattermostBaseURL()).
		Str("channel_id", cfg.MMChannelID).
		Int("directory_users", runner.Directory.Len()).
		Msg("Starting reconciliation bot")

	listener := mattermost.NewListener(cfg.MattermostConfig(), cfg.MMChannelID, func(ctx context.Context, post mattermost.Post) {
		rootID := post.RootID
		if rootID == "" {
			rootID = post.ID
		}
		for _, fileID := range post.FileIDs {
			fileID := fileID
			fetch := func(ctx context.Context) ([]byte, error) {
				return clients.Mattermost.GetFile(ctx, fileID)
			}
			sink := mattermost.NewThreadSink(clients.Mattermost, post.ChannelID, rootID)
			job := processing.NewJob(fileID, processing.FileSource(fetch), sink)

			log.Info().Str("run_id", job.ID.String()).Str("file_id", fileID).Msg("Starting run")
			runner.Spawn(ctx, job)
		}
	})

	err = listener.Run(ctx)

	sent, failed, retries := clients.Mattermost.GetMetrics()
	log.Info().
		Int64("chat_sent", sent).
		Int64("chat_failed", failed).
		Int64("chat_retries", retries).
		Msg("Bot stopped listening")
	return err
}

// runOnce reconciles a local workbook or a Google Sheet and writes the report
// to out.
func runOnce(ctx context.Context, cfg app.Config, runner *processing.Runner, file, gsheet, sheetRange, out string) error {
	var source processing.Source
	name := file
	if file != "" {
		source = processing.FileSource(func(context.Context) ([]byte, error) {
			return os.ReadFile(filepath.Clean(file))
		})
	} else {
		client, err := app.InitializeSheetsClient(ctx, cfg)
		if err != nil {
			return err
		}
		source = processing.SheetSource(client, gsheet, sheetRange)
		name = gsheet
	}

	job := processing.NewJob(name, source, processing.LocalSink{Path: out, Out: os.Stdout})
	return <-runner.Spawn(ctx, job)
}
