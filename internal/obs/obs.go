// Package obs wires up the process-wide structured logger.
package obs

import (
	"io"
	"log/slog"
)

// New builds a slog.Logger writing to w at the given level, text-formatted
// for a terminal or JSON-formatted for log aggregation, matching the two
// verbosity/format flags the CLI exposes. w is typically wrapped in an
// internal/scrub.Writer first, so secret values never reach the sink
// even if a leaf's error message happens to echo raw command text.
func New(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Session returns a logger scoped to one session id, the way every
// dispatch/pub-sub log line in the server should be attributed.
func Session(l *slog.Logger, sessionID string) *slog.Logger {
	return l.With(slog.String("session", sessionID))
}
