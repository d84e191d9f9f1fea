package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger. Every record carries the service name.
func New(service string, json bool) *slog.Logger {
	return newWithWriter(os.Stdout, service, json)
}

func newWithWriter(w io.Writer, service string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", service)
}

// Discard is used by components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
