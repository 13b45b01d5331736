// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/yt-observatory/internal/backoff"
	"github.com/pdiddy/yt-observatory/internal/notify"
	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// ContinuousModule names the continuous sampler in notifications.
const ContinuousModule = "YouTube Random Sampler"

// shutdownFlushTimeout bounds the final upload after cancellation.
const shutdownFlushTimeout = time.Minute

// ClientFactory builds a fresh search client with current credentials.
type ClientFactory func(ctx context.Context) (search.Client, error)

// Continuous polls a rolling window until its context is cancelled. Each
// iteration refreshes the client if it is older than the credential TTL,
// searches the window, filters and enriches the results, and buffers them.
// The buffer is uploaded once it reaches the flush threshold. An error or
// panic in an iteration is reported and the loop resumes after
// ErrorBackoff.
type Continuous struct {
	Config        types.SampleConfig
	Table         warehouse.TableRef
	UploadOptions upload.Options

	NewClient ClientFactory
	Searcher  Searcher
	Uploader  Uploader
	Notifier  notify.Notifier
	Summary   *RunSummary
	Logger    *slog.Logger

	Now   func() time.Time
	Sleep backoff.SleepFunc

	client      search.Client
	clientSince time.Time
	buffer      []types.VideoRecord
	seen        map[string]time.Time
	nextSummary time.Time
	lastFlush   time.Time
}

func (c *Continuous) setDefaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = backoff.SleepContext
	}
	if c.Notifier == nil {
		c.Notifier = notify.LogNotifier{Logger: c.Logger}
	}
	if c.Summary == nil {
		c.Summary = NewRunSummary(nil)
	}
	if c.Searcher == nil {
		c.Searcher = search.NewAdapter(c.Config.PollInterval, c.Logger)
	}
	if c.seen == nil {
		c.seen = make(map[string]time.Time)
	}
}

// Buffered returns the number of records waiting for the next flush.
func (c *Continuous) Buffered() int {
	return len(c.buffer)
}

// Run loops until ctx is cancelled, then flushes whatever is buffered and
// returns nil. Iteration errors never end the loop.
func (c *Continuous) Run(ctx context.Context) error {
	c.setDefaults()
	start := c.Now()
	c.lastFlush = start
	if c.Config.SummaryInterval > 0 {
		c.nextSummary = start.Add(c.Config.SummaryInterval)
	}
	c.Logger.Info("starting continuous sampling",
		"poll_interval", c.Config.PollInterval, "minutes_ago", c.Config.MinutesAgo,
		"flush_threshold", c.Config.FlushThreshold, "table", c.Table.String())
	c.Summary.Note(ContinuousModule, fmt.Sprintf("Started at %s; polling every %s into %s",
		start.UTC().Format(time.RFC3339), c.Config.PollInterval, c.Table))

	for {
		wait := c.Config.PollInterval
		if err := c.Iterate(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			c.Summary.AddError()
			c.Notifier.Exception(ctx, ContinuousModule, "Problem getting videos", err)
			wait = c.Config.ErrorBackoff
		}
		if ctx.Err() != nil {
			break
		}
		if err := c.Sleep(ctx, wait); err != nil {
			break
		}
	}

	c.shutdown(ctx)
	return nil
}

// Iterate runs one poll cycle. A panic is recovered and returned as an
// error.
func (c *Continuous) Iterate(ctx context.Context) (err error) {
	c.setDefaults()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in sampling iteration: %v", r)
		}
	}()

	runTime := c.Now().UTC()
	if err := c.refreshClient(ctx, runTime); err != nil {
		return err
	}

	if !c.nextSummary.IsZero() && runTime.After(c.nextSummary) {
		c.Summary.Report(ctx, c.Notifier, c.Logger, ContinuousModule+" regular update")
		c.nextSummary = runTime.Add(c.Config.SummaryInterval)
	}

	window := types.NewSearchWindow(runTime, c.Config.MinutesAgo, c.Config.PollInterval)
	raw := c.Searcher.Search(ctx, c.client, search.WindowParams(window))
	kept, discarded := search.Filter(raw, window)
	c.Logger.Debug("search results within window",
		"kept", len(kept), "total", len(raw), "discarded", discarded)

	kept, duplicates := c.dedup(kept, runTime)

	enriched, dropped := EnrichAll(kept, types.Provenance{
		SearchTime: runTime,
		StudyGroup: types.StringPtr(c.Config.StudyGroup),
		DataSource: c.Config.DataSource,
	}, c.Logger)

	c.Summary.AddSeen(len(raw))
	c.Summary.AddDiscarded(discarded)
	c.Summary.AddDuplicates(duplicates)
	c.Summary.AddDropped(dropped)

	c.buffer = append(c.buffer, enriched...)
	if len(c.buffer) >= c.Config.FlushThreshold {
		c.flush(ctx)
	}
	return nil
}

// refreshClient builds a new client when there is none or the current one
// is older than the credential TTL.
func (c *Continuous) refreshClient(ctx context.Context, now time.Time) error {
	if c.client != nil && (c.Config.CredentialTTL <= 0 || now.Sub(c.clientSince) < c.Config.CredentialTTL) {
		return nil
	}
	if c.NewClient == nil {
		return errors.New("no search client factory configured")
	}
	client, err := c.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("refreshing search client: %w", err)
	}
	c.client = client
	c.clientSince = now
	c.Logger.Debug("search client refreshed")
	return nil
}

// dedup drops records whose video ID was buffered within the retention
// window. It is a no-op unless Config.Dedup is set.
func (c *Continuous) dedup(records []types.VideoRecord, now time.Time) ([]types.VideoRecord, int) {
	if !c.Config.Dedup {
		return records, 0
	}
	for id, at := range c.seen {
		if now.Sub(at) > c.Config.DedupRetention {
			delete(c.seen, id)
		}
	}
	out := records[:0:0]
	skipped := 0
	for _, r := range records {
		if _, ok := c.seen[r.VideoID]; ok {
			skipped++
			continue
		}
		c.seen[r.VideoID] = now
		out = append(out, r)
	}
	return out, skipped
}

func (c *Continuous) flush(ctx context.Context) {
	if len(c.buffer) == 0 {
		return
	}
	n := len(c.buffer)
	c.Logger.Info("saving videos", "count", n, "table", c.Table.String())

	res := c.Uploader.Upload(ctx, warehouse.VideoSchema, c.buffer, c.Table, c.UploadOptions)
	c.Summary.AddUpload(res)
	if !res.OK() {
		c.Logger.Error("upload incomplete", "chunks", res.Chunks, "failed", res.Failed,
			"lost", res.Lost, "backed_up", res.BackedUp, "error", res.LastError)
	}

	now := c.Now()
	elapsed := now.Sub(c.lastFlush)
	c.Logger.Debug("received and saved videos", "count", n, "elapsed", elapsed,
		"per_second", float64(n)/max(elapsed.Seconds(), 1))
	c.lastFlush = now
	c.buffer = nil
}

// shutdown uploads the remaining buffer on a context detached from the
// cancelled one.
func (c *Continuous) shutdown(ctx context.Context) {
	c.Logger.Info("stopping continuous sampling", "buffered", len(c.buffer))
	if len(c.buffer) == 0 {
		return
	}
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownFlushTimeout)
	defer cancel()
	c.flush(flushCtx)
}
