package processing

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// LocalSink writes the report to Path, or to the default file name in the
// working directory, and prints the summary. It serves command line runs.
type LocalSink struct {
	Path string
	Out  io.Writer
}

func (s LocalSink) Status(_ context.Context, text string) {
	log.Info().Str("status", text).Msg("Run status")
}

func (s LocalSink) Deliver(_ context.Context, filename string, report []byte, summary string) error {
	path := s.Path
	if path == "" {
		path = filepath.Clean(filename)
	}
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Info().Str("path", path).Int("bytes", len(report)).Msg("Report written")
	_, err := fmt.Fprintln(s.Out, summary)
	return err
}

func (s LocalSink) Notify(_ context.Context, text string) error {
	_, err := fmt.Fprintln(s.Out, text)
	return err
}
