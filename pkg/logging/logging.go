// Package logging builds the run logger: slog text records to stderr and to a
// rotating log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// File is the log file path. Empty disables file output.
	File  string
	Level slog.Level
	// Console receives a copy of every record. Defaults to os.Stderr.
	Console io.Writer
}

// New returns a logger and the closer that flushes its file. The caller owns
// the closer and must call it at the end of the run.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var (
		out    io.Writer = console
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		out = io.MultiWriter(console, lj)
		closer = lj
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: opts.Level}))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
