// Package diag holds logging, error classification and the human-facing
// diagnostic output of the command.
package diag

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the structured logger. format is "text", "json" or ""
// (text on a terminal, json otherwise).
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := ParseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "" {
		format = "json"
		if IsTerminal(w) {
			format = "text"
		}
	}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Timer measures one start→finish span of a component.
type Timer struct {
	l    *slog.Logger
	comp string
	file string
	t0   time.Time
}

// Start logs a start event and returns a timer for Finish.
func Start(l *slog.Logger, comp, file, msg string) *Timer {
	l.Debug(msg, "comp", comp, "stage", "start", "file", file)
	return &Timer{l: l, comp: comp, file: file, t0: time.Now()}
}

// Finish logs a finish event with the elapsed time and an optional count.
func (t *Timer) Finish(msg string, count int) {
	if t == nil || t.l == nil {
		return
	}
	t.l.Info(msg, "comp", t.comp, "stage", "finish", "file", t.file,
		"dur_ms", time.Since(t.t0).Milliseconds(), "count", count)
}

// Fail logs an error event for err, tagged with its classification code.
func (t *Timer) Fail(err error) {
	if t == nil || t.l == nil {
		return
	}
	t.l.Error(err.Error(), "comp", t.comp, "stage", "error", "file", t.file,
		"code", string(Classify(err)), "dur_ms", time.Since(t.t0).Milliseconds())
}
