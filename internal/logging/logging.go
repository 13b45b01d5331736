// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the process logger: a text handler on stderr, an
// optional rotating log file, and per-level message counts for the run
// summary.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// Log file rotation: 20 files of 20 MB each.
const (
	maxFileSizeMB = 20
	maxBackups    = 20
)

// Setup returns a logger writing to stderr and, when cfg.File is set, to a
// rotating file. The returned CountingHandler tallies every record by level.
// Close the returned io.Closer on exit to flush the log file.
func Setup(cfg types.LogConfig, stderr io.Writer) (*slog.Logger, *CountingHandler, io.Closer, error) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, nil, err
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxFileSizeMB,
			MaxBackups: maxBackups,
		}
		w = io.MultiWriter(stderr, lj)
		closer = lj
	}

	counter := NewCountingHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return slog.New(counter), counter, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// levelCounts is shared by a CountingHandler and every handler derived
// from it through WithAttrs or WithGroup.
type levelCounts struct {
	mu     sync.Mutex
	counts map[string]int
}

// CountingHandler wraps a slog.Handler and counts records by level name.
type CountingHandler struct {
	next   slog.Handler
	counts *levelCounts
}

// NewCountingHandler wraps next.
func NewCountingHandler(next slog.Handler) *CountingHandler {
	return &CountingHandler{next: next, counts: &levelCounts{counts: make(map[string]int)}}
}

// Enabled defers to the wrapped handler.
func (h *CountingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle counts the record and passes it on.
func (h *CountingHandler) Handle(ctx context.Context, r slog.Record) error {
	h.counts.mu.Lock()
	h.counts.counts[r.Level.String()]++
	h.counts.mu.Unlock()
	return h.next.Handle(ctx, r)
}

func (h *CountingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CountingHandler{next: h.next.WithAttrs(attrs), counts: h.counts}
}

func (h *CountingHandler) WithGroup(name string) slog.Handler {
	return &CountingHandler{next: h.next.WithGroup(name), counts: h.counts}
}

// Counts returns a snapshot of the per-level counts.
func (h *CountingHandler) Counts() map[string]int {
	h.counts.mu.Lock()
	defer h.counts.mu.Unlock()
	out := make(map[string]int, len(h.counts.counts))
	for k, v := range h.counts.counts {
		out[k] = v
	}
	return out
}

// Reset clears the counts.
func (h *CountingHandler) Reset() {
	h.counts.mu.Lock()
	h.counts.counts = make(map[string]int)
	h.counts.mu.Unlock()
}
