package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// SweepResult counts what a retention pass did.
type SweepResult struct {
	Removed int `json:"removed"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"`
}

// Sweeper deletes staged files past the retention window.
type Sweeper struct {
	fs     afero.Fs
	logger *slog.Logger
	now    func() time.Time
}

func NewSweeper(fs afero.Fs, logger *slog.Logger, now func() time.Time) *Sweeper {
	return &Sweeper{fs: fs, logger: logger, now: now}
}

// Sweep removes every *.csv in dir whose date suffix is more than retention
// before now. Names without a parseable date are logged and kept. A failed
// removal stops the sweep and is returned.
func (s *Sweeper) Sweep(ctx context.Context, dir string, retention time.Duration) (SweepResult, error) {
	var res SweepResult

	files, err := afero.Glob(s.fs, filepath.Join(dir, "*.csv"))
	if err != nil {
		return res, fmt.Errorf("list staged files: %w", err)
	}

	now := s.now()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		_, day, err := parseStagedName(path, now.Location())
		if err != nil {
			s.logger.Warn("could not parse date from filename", "file", path, "error", err)
			res.Skipped++
			continue
		}

		if now.Sub(day) <= retention {
			res.Kept++
			continue
		}
		if err := s.fs.Remove(path); err != nil {
			return res, fmt.Errorf("remove %s: %w", path, err)
		}
		s.logger.Info("removed old file", "file", path)
		res.Removed++
	}
	return res, nil
}
