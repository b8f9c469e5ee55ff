// Package telemetry wires ambient observability: structured logging
// and Prometheus metrics derived from the session event stream.
package telemetry

import (
	"io"
	"log/slog"
)

// NewLogger builds the coordinator's slog logger. verbose enables
// debug level; jsonFormat switches from text to JSON output.
func NewLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
