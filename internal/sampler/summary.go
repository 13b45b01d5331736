// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/yt-observatory/internal/notify"
	"github.com/pdiddy/yt-observatory/internal/upload"
)

// LogCounter reports log records per level. logging.CountingHandler
// satisfies it.
type LogCounter interface {
	Counts() map[string]int
	Reset()
}

// SummaryCounts is a snapshot of the run counters.
type SummaryCounts struct {
	Seen           int `yaml:"records_seen"`
	Discarded      int `yaml:"records_discarded"`
	Dropped        int `yaml:"records_dropped"`
	Duplicates     int `yaml:"duplicates_skipped"`
	Uploaded       int `yaml:"rows_uploaded"`
	BackedUp       int `yaml:"rows_backed_up"`
	Lost           int `yaml:"rows_lost"`
	ChunkSuccesses int `yaml:"chunk_successes"`
	ChunkFailures  int `yaml:"chunk_failures"`
	Errors         int `yaml:"iteration_errors"`
}

// RunSummary accumulates counters between reports. It is safe for
// concurrent use.
type RunSummary struct {
	mu       sync.Mutex
	counts   SummaryCounts
	messages []string
	logs     LogCounter
}

// NewRunSummary returns an empty summary. logs may be nil.
func NewRunSummary(logs LogCounter) *RunSummary {
	return &RunSummary{logs: logs}
}

func (s *RunSummary) update(fn func(c *SummaryCounts)) {
	s.mu.Lock()
	fn(&s.counts)
	s.mu.Unlock()
}

// AddSeen counts records returned by the search endpoint.
func (s *RunSummary) AddSeen(n int) { s.update(func(c *SummaryCounts) { c.Seen += n }) }

// AddDiscarded counts records outside the search window.
func (s *RunSummary) AddDiscarded(n int) { s.update(func(c *SummaryCounts) { c.Discarded += n }) }

// AddDropped counts records the enricher rejected.
func (s *RunSummary) AddDropped(n int) { s.update(func(c *SummaryCounts) { c.Dropped += n }) }

// AddDuplicates counts records skipped by client-side dedup.
func (s *RunSummary) AddDuplicates(n int) { s.update(func(c *SummaryCounts) { c.Duplicates += n }) }

// AddError counts a failed loop iteration.
func (s *RunSummary) AddError() { s.update(func(c *SummaryCounts) { c.Errors++ }) }

// AddUpload folds an upload result into the counters.
func (s *RunSummary) AddUpload(r upload.Result) {
	s.update(func(c *SummaryCounts) {
		c.Uploaded += r.Inserted
		c.BackedUp += r.BackedUp
		c.Lost += r.Lost
		c.ChunkSuccesses += r.Chunks - r.Failed
		c.ChunkFailures += r.Failed
	})
}

// Note records a line to include in the next report.
func (s *RunSummary) Note(module, msg string) {
	if module != "" {
		msg = fmt.Sprintf("[%s] %s", module, msg)
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Snapshot returns the current counters.
func (s *RunSummary) Snapshot() SummaryCounts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts
}

// Render formats the summary body: noted messages, the counters as YAML,
// then log message counts per level. With reset, everything is cleared.
func (s *RunSummary) Render(reset bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for _, m := range s.messages {
		b.WriteString(m)
		b.WriteByte('\n')
	}
	if out, err := yaml.Marshal(s.counts); err == nil {
		b.Write(out)
	}
	if s.logs != nil {
		counts := s.logs.Counts()
		if len(counts) > 0 {
			b.WriteString("\nLog messages:\n")
			out, _ := yaml.Marshal(counts)
			b.Write(out)
		}
		if reset {
			s.logs.Reset()
		}
	}

	if reset {
		s.counts = SummaryCounts{}
		s.messages = nil
	}
	return b.String()
}

// Report logs the summary, sends it through n, and resets the counters.
func (s *RunSummary) Report(ctx context.Context, n notify.Notifier, logger *slog.Logger, subject string) string {
	body := s.Render(true)
	if logger != nil {
		logger.Info("run summary", "subject", subject, "summary", body)
	}
	if n != nil {
		n.Update(ctx, subject, body)
	}
	return body
}
