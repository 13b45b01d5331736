// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sampler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

var (
	t0       = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	testRef  = warehouse.TableRef{Dataset: "observatory", Table: "youtube_search"}
	errQuota = errors.New("quota exceeded")
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSearcher struct {
	results [][]types.VideoRecord
	calls   []search.Params
	panicAt int // 1-based call number that panics; 0 never
}

func (f *fakeSearcher) Search(_ context.Context, _ search.Client, p search.Params) []types.VideoRecord {
	f.calls = append(f.calls, p)
	if f.panicAt == len(f.calls) {
		panic("nil snippet")
	}
	if i := len(f.calls) - 1; i < len(f.results) {
		return f.results[i]
	}
	return nil
}

type fakeUploader struct {
	batches [][]types.VideoRecord
	opts    []upload.Options
	ctxErrs []error
	result  upload.Result
}

func (f *fakeUploader) Upload(ctx context.Context, _ warehouse.Schema, records []types.VideoRecord, _ warehouse.TableRef, opts upload.Options) upload.Result {
	f.batches = append(f.batches, append([]types.VideoRecord(nil), records...))
	f.opts = append(f.opts, opts)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	res := f.result
	if res.Chunks == 0 {
		res = upload.Result{Chunks: 1, Inserted: len(records), LastOK: true}
	}
	return res
}

type fakeNotifier struct {
	exceptions []error
	updates    []string
}

func (f *fakeNotifier) Exception(_ context.Context, _, _ string, err error) {
	f.exceptions = append(f.exceptions, err)
}

func (f *fakeNotifier) Update(_ context.Context, subject, _ string) {
	f.updates = append(f.updates, subject)
}

type stubClient struct{ id int }

func (stubClient) Search(context.Context, search.Params) (*search.Response, error) {
	return &search.Response{}, nil
}

func video(id string, published time.Time) types.VideoRecord {
	return types.VideoRecord{VideoID: id, PublishedAt: published, Title: "title " + id}
}

// clock is a settable time source.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func testSampleConfig() types.SampleConfig {
	cfg := types.DefaultConfig().Sample
	cfg.FlushThreshold = 3
	return cfg
}

func newContinuous(cfg types.SampleConfig, s *fakeSearcher, u *fakeUploader, n *fakeNotifier, clk *clock) (*Continuous, *int) {
	factoryCalls := 0
	c := &Continuous{
		Config: cfg,
		Table:  testRef,
		NewClient: func(context.Context) (search.Client, error) {
			factoryCalls++
			return stubClient{id: factoryCalls}, nil
		},
		Searcher: s,
		Uploader: u,
		Notifier: n,
		Logger:   quietLogger(),
		Now:      clk.Now,
		Sleep:    func(context.Context, time.Duration) error { return nil },
	}
	return c, &factoryCalls
}

func TestEnrich(t *testing.T) {
	p := types.Provenance{
		SearchTerm: types.StringPtr("election"),
		SearchType: types.SearchToday,
		SearchTime: t0,
		StudyGroup: types.StringPtr("group a"),
		DataSource: "YouTube search from keywords",
	}
	r := video("v1", t0.Add(-time.Hour))

	once, ok := Enrich(r, p)
	require.True(t, ok)
	twice, ok := Enrich(once, p)
	require.True(t, ok)
	assert.Equal(t, once, twice, "idempotent")

	assert.Equal(t, "election", *once.SearchTerm)
	assert.Equal(t, types.SearchToday, once.SearchType)
	assert.Equal(t, t0, once.SearchTime)
	assert.Equal(t, "group a", *once.StudyGroup)
	assert.Equal(t, "YouTube search from keywords", once.DataSource)
	assert.Equal(t, r.Title, once.Title, "content fields untouched")

	_, ok = Enrich(types.VideoRecord{Title: "no id"}, p)
	assert.False(t, ok)
}

func TestEnrichAll_DropsMissingIDs(t *testing.T) {
	out, dropped := EnrichAll([]types.VideoRecord{video("a", t0), {Title: "x"}, video("b", t0)},
		types.Provenance{DataSource: "src"}, quietLogger())
	assert.Equal(t, 1, dropped)
	require.Len(t, out, 2)
	assert.Equal(t, "src", out[1].DataSource)
}

func TestContinuous_IterationFiltersEnrichesAndFlushes(t *testing.T) {
	clk := &clock{now: t0}
	inWindow := t0.Add(-3 * time.Minute)
	s := &fakeSearcher{results: [][]types.VideoRecord{
		{video("a", inWindow), video("late", t0.Add(-time.Minute)), video("b", inWindow)},
		{video("c", inWindow.Add(2*time.Minute))},
	}}
	u := &fakeUploader{}
	c, _ := newContinuous(testSampleConfig(), s, u, &fakeNotifier{}, clk)

	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 2, c.Buffered(), "below threshold, nothing flushed")
	assert.Empty(t, u.batches)

	require.Len(t, s.calls, 1)
	p := s.calls[0]
	assert.Equal(t, "date", p.Order)
	assert.Equal(t, int64(50), p.MaxResults)
	assert.Equal(t, t0.Add(-4*time.Minute), p.PublishedAfter)
	assert.Equal(t, t0.Add(-2*time.Minute), p.PublishedBefore)

	clk.now = t0.Add(2 * time.Minute)
	require.NoError(t, c.Iterate(context.Background()))
	assert.Zero(t, c.Buffered(), "buffer cleared after flush")
	require.Len(t, u.batches, 1)
	batch := u.batches[0]
	require.Len(t, batch, 3)

	first := batch[0]
	assert.Nil(t, first.SearchTerm)
	assert.Empty(t, first.SearchType)
	assert.Equal(t, t0, first.SearchTime)
	assert.Equal(t, "random sample", *first.StudyGroup)
	assert.Equal(t, "YouTube random sample", first.DataSource)
	assert.Equal(t, t0.Add(2*time.Minute), batch[2].SearchTime)
	assert.Empty(t, u.opts[0].BackupPath)

	sum := c.Summary.Snapshot()
	assert.Equal(t, 4, sum.Seen)
	assert.Equal(t, 1, sum.Discarded)
	assert.Equal(t, 3, sum.Uploaded)
}

func TestContinuous_CredentialRefreshOnlyAfterTTL(t *testing.T) {
	clk := &clock{now: t0}
	c, factoryCalls := newContinuous(testSampleConfig(), &fakeSearcher{}, &fakeUploader{}, &fakeNotifier{}, clk)

	for _, offset := range []time.Duration{0, 30 * time.Minute, 59 * time.Minute} {
		clk.now = t0.Add(offset)
		require.NoError(t, c.Iterate(context.Background()))
	}
	assert.Equal(t, 1, *factoryCalls)

	clk.now = t0.Add(61 * time.Minute)
	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 2, *factoryCalls)

	clk.now = t0.Add(90 * time.Minute)
	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 2, *factoryCalls)
}

func TestContinuous_PanicBecomesError(t *testing.T) {
	c, _ := newContinuous(testSampleConfig(), &fakeSearcher{panicAt: 1}, &fakeUploader{}, &fakeNotifier{}, &clock{now: t0})
	err := c.Iterate(context.Background())
	assert.ErrorContains(t, err, "nil snippet")
}

func TestContinuous_ErrorReportedAndLoopContinues(t *testing.T) {
	cfg := testSampleConfig()
	inWindow := t0.Add(-3 * time.Minute)
	s := &fakeSearcher{results: [][]types.VideoRecord{{video("a", inWindow)}}}
	u := &fakeUploader{}
	n := &fakeNotifier{}
	clk := &clock{now: t0}
	c, _ := newContinuous(cfg, s, u, n, clk)

	attempts := 0
	c.NewClient = func(context.Context) (search.Client, error) {
		attempts++
		if attempts == 1 {
			return nil, errQuota
		}
		return stubClient{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var waits []time.Duration
	c.Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if len(waits) == 3 {
			cancel()
			return ctx.Err()
		}
		return nil
	}

	require.NoError(t, c.Run(ctx))

	require.Len(t, n.exceptions, 1)
	assert.ErrorIs(t, n.exceptions[0], errQuota)
	assert.Equal(t, []time.Duration{cfg.ErrorBackoff, cfg.PollInterval, cfg.PollInterval}, waits)
	assert.Len(t, s.calls, 2, "polling resumed after the failed iteration")
	assert.Equal(t, 1, c.Summary.Snapshot().Errors)
	assert.Contains(t, c.Summary.Render(false),
		"[YouTube Random Sampler] Started at 2026-05-04T12:00:00Z; polling every 2m0s into observatory.youtube_search")

	// The buffered record is flushed on shutdown with a live context.
	require.Len(t, u.batches, 1)
	assert.Equal(t, "a", u.batches[0][0].VideoID)
	assert.NoError(t, u.ctxErrs[0])
}

func TestContinuous_Dedup(t *testing.T) {
	cfg := testSampleConfig()
	cfg.Dedup = true
	cfg.FlushThreshold = 100
	clk := &clock{now: t0}
	inWindow := func() time.Time { return clk.now.Add(-3 * time.Minute) }

	s := &fakeSearcher{}
	c, _ := newContinuous(cfg, s, &fakeUploader{}, &fakeNotifier{}, clk)

	s.results = append(s.results, []types.VideoRecord{video("a", inWindow()), video("b", inWindow())})
	require.NoError(t, c.Iterate(context.Background()))

	clk.now = t0.Add(2 * time.Minute)
	s.results = append(s.results, []types.VideoRecord{video("a", inWindow()), video("c", inWindow())})
	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 3, c.Buffered())
	assert.Equal(t, 1, c.Summary.Snapshot().Duplicates)

	// Past the retention window the same ID is accepted again.
	clk.now = t0.Add(2 * time.Hour)
	s.results = append(s.results, []types.VideoRecord{video("a", inWindow())})
	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 4, c.Buffered())
}

func TestContinuous_DedupDisabledKeepsDuplicates(t *testing.T) {
	cfg := testSampleConfig()
	cfg.FlushThreshold = 100
	inWindow := t0.Add(-3 * time.Minute)
	s := &fakeSearcher{results: [][]types.VideoRecord{
		{video("a", inWindow)},
		{video("a", inWindow)},
	}}
	c, _ := newContinuous(cfg, s, &fakeUploader{}, &fakeNotifier{}, &clock{now: t0})
	require.NoError(t, c.Iterate(context.Background()))
	require.NoError(t, c.Iterate(context.Background()))
	assert.Equal(t, 2, c.Buffered())
}

func TestContinuous_PeriodicSummary(t *testing.T) {
	cfg := testSampleConfig()
	cfg.SummaryInterval = time.Hour
	clk := &clock{now: t0}
	n := &fakeNotifier{}
	c, _ := newContinuous(cfg, &fakeSearcher{}, &fakeUploader{}, n, clk)

	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	c.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		clk.now = clk.now.Add(40 * time.Minute)
		if sleeps == 4 {
			cancel()
			return ctx.Err()
		}
		return nil
	}
	require.NoError(t, c.Run(ctx))

	// Iterations at 0, 40, 80, 120 minutes; reports at 80 (next due 140).
	assert.Equal(t, []string{ContinuousModule + " regular update"}, n.updates)
}

func TestKeyword_InvalidSearchTypeFailsBeforeSearch(t *testing.T) {
	s := &fakeSearcher{}
	u := &fakeUploader{}
	k := &Keyword{
		Config:   types.KeywordConfig{SearchType: "yesterday", MaxResults: 20},
		Table:    testRef,
		Searcher: s,
		Uploader: u,
		Logger:   quietLogger(),
	}
	_, err := k.Run(context.Background(), []types.KeywordEntry{{Keyword: "k", StudyGroup: "g"}})
	assert.ErrorIs(t, err, types.ErrInvalidSearchType)
	assert.Empty(t, s.calls)
	assert.Empty(t, u.batches)
}

func TestKeyword_SearchesEnrichesAndUploadsOnce(t *testing.T) {
	old := t0.Add(-400 * 24 * time.Hour)
	s := &fakeSearcher{results: [][]types.VideoRecord{
		{video("a1", old), video("a2", t0)},
		{},
		{video("c1", t0), {Title: "missing id"}},
	}}
	u := &fakeUploader{result: upload.Result{Chunks: 2, Failed: 1, Inserted: 2, BackedUp: 1}}
	cfg := types.DefaultConfig().Search
	cfg.CallInterval = 0
	cfg.BackupDir = "data"
	k := &Keyword{
		Config:        cfg,
		Table:         testRef,
		UploadOptions: upload.Options{ChunkSize: 2},
		Searcher:      s,
		Uploader:      u,
		Logger:        quietLogger(),
		Now:           func() time.Time { return t0 },
	}

	entries := []types.KeywordEntry{
		{Keyword: "election", StudyGroup: "politics"},
		{Keyword: "budget", StudyGroup: "politics"},
		{Keyword: "football", StudyGroup: "sport"},
	}
	res, err := k.Run(context.Background(), entries)
	require.NoError(t, err)
	assert.False(t, res.OK())

	require.Len(t, s.calls, 3)
	for i, p := range s.calls {
		assert.Equal(t, entries[i].Keyword, p.Query)
		assert.Equal(t, "relevance", p.Order)
		assert.Equal(t, int64(20), p.MaxResults)
		assert.Equal(t, t0.Add(-24*time.Hour), p.PublishedAfter)
	}

	require.Len(t, u.batches, 1, "one upload for the whole run")
	batch := u.batches[0]
	require.Len(t, batch, 3, "no window filter; the record without ID is dropped")
	assert.Equal(t, "election", *batch[0].SearchTerm)
	assert.Equal(t, "sport", *batch[2].StudyGroup)
	assert.Equal(t, types.SearchToday, batch[2].SearchType)
	assert.Equal(t, "YouTube search from keywords", batch[0].DataSource)

	assert.Equal(t, "data/youtube_search_20260504.json", u.opts[0].BackupPath)
	assert.Equal(t, 2, u.opts[0].ChunkSize)
	assert.Equal(t, 1, k.Summary.Snapshot().Dropped)
}

func TestKeyword_CancelledWhilePacing(t *testing.T) {
	s := &fakeSearcher{}
	k := &Keyword{
		Config:   types.KeywordConfig{SearchType: types.SearchAllTime, MaxResults: 5},
		Searcher: s,
		Uploader: &fakeUploader{},
		Logger:   quietLogger(),
		Limiter:  NewLimiter(time.Hour),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := k.Run(ctx, []types.KeywordEntry{{Keyword: "a", StudyGroup: "g"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.calls)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "out/tbl_20261231.json", BackupPath("out", "tbl", time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)))
}

type fakeLogCounter struct {
	counts map[string]int
	resets int
}

func (f *fakeLogCounter) Counts() map[string]int { return f.counts }
func (f *fakeLogCounter) Reset()                  { f.resets++; f.counts = map[string]int{} }

func TestRunSummary_ReportRendersAndResets(t *testing.T) {
	logs := &fakeLogCounter{counts: map[string]int{"ERROR": 2, "INFO": 10}}
	s := NewRunSummary(logs)
	s.AddSeen(10)
	s.AddDiscarded(2)
	s.AddUpload(upload.Result{Chunks: 3, Failed: 1, Inserted: 5, BackedUp: 2})
	s.Note("sampler", "started")

	n := &fakeNotifier{}
	body := s.Report(context.Background(), n, quietLogger(), "daily")

	assert.Contains(t, body, "[sampler] started")
	assert.Contains(t, body, "records_seen: 10")
	assert.Contains(t, body, "records_discarded: 2")
	assert.Contains(t, body, "rows_uploaded: 5")
	assert.Contains(t, body, "chunk_successes: 2")
	assert.Contains(t, body, "chunk_failures: 1")
	assert.Contains(t, body, "Log messages:")
	assert.Contains(t, body, "ERROR: 2")
	assert.Equal(t, []string{"daily"}, n.updates)

	assert.Equal(t, SummaryCounts{}, s.Snapshot())
	assert.Equal(t, 1, logs.resets)
	assert.NotContains(t, s.Render(false), "started")
}

func TestRunSummary_ConcurrentUpdates(t *testing.T) {
	s := NewRunSummary(nil)
	done := make(chan struct{})
	for range 8 {
		go func() {
			for range 100 {
				s.AddSeen(1)
			}
			done <- struct{}{}
		}()
	}
	for range 8 {
		<-done
	}
	assert.Equal(t, 800, s.Snapshot().Seen)
	assert.NotEmpty(t, fmt.Sprint(s.Render(false)))
}
