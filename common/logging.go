// Package common holds logging setup and build metadata shared by all
// binaries in this repository.
package common

import (
	"io"
	"log/slog"
	"os"
)

// LoggingOpts configures the process-wide structured logger.
type LoggingOpts struct {
	// Debug enables debug-level messages.
	Debug bool

	// JSON switches the handler from text to JSON output.
	JSON bool

	// Service is added as a 'service' attribute to every record.
	Service string

	// Version is added as a 'version' attribute to every record, if set.
	Version string

	// Out is the destination stream. Defaults to stdout. One-shot
	// commands that print their result on stdout log to stderr instead.
	Out io.Writer
}

// SetupLogger creates a slog.Logger according to opts.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	} else {
		log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel}))
	}

	log = log.With("service", opts.Service)
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
