package output

import (
	"context"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbot-levels/internal/update"
)

// CSVSink publishes each instrument's levels to a CSV file in one directory.
type CSVSink struct {
	dir     string
	fileFor func(target string) string
	logger  *zap.Logger
}

// NewCSVSink creates a sink writing into dir. fileFor maps a target symbol to
// its file name.
func NewCSVSink(dir string, fileFor func(target string) string, logger *zap.Logger) *CSVSink {
	return &CSVSink{dir: dir, fileFor: fileFor, logger: logger}
}

func (s *CSVSink) Name() string { return "csv" }

// Path returns the file a target's levels are written to.
func (s *CSVSink) Path(target string) string {
	return filepath.Join(s.dir, s.fileFor(target))
}

// Publish writes o's levels. An empty result leaves the existing file alone so
// the last good levels stay published.
func (s *CSVSink) Publish(_ context.Context, o update.Outcome) error {
	path := s.Path(o.Job.Instrument.Target)

	if !o.Produced() {
		s.logger.Warn("no levels, keeping previous file",
			zap.String("target", o.Job.Instrument.Target),
			zap.String("path", path),
		)
		return nil
	}

	if err := WriteCSVFile(path, o.Levels); err != nil {
		return err
	}

	s.logger.Info("levels written",
		zap.String("target", o.Job.Instrument.Target),
		zap.String("path", path),
		zap.Int("count", len(o.Levels)),
	)
	return nil
}
