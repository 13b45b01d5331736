// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// KeywordModule names the keyword sampler in notifications.
const KeywordModule = "YouTube Keyword Search"

// Keyword runs one query per keyword entry and uploads all results in a
// single pass. Results are not window-filtered.
type Keyword struct {
	Config        types.KeywordConfig
	Table         warehouse.TableRef
	UploadOptions upload.Options

	Client   search.Client
	Searcher Searcher
	Uploader Uploader
	Summary  *RunSummary
	Logger   *slog.Logger

	// Limiter paces queries. When nil one is built from Config.CallInterval.
	Limiter *rate.Limiter
	Now     func() time.Time
}

// BackupPath returns the fallback file prefix for a run on day:
// "{dir}/{table}_{YYYYMMDD}.json".
func BackupPath(dir, table string, day time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", table, day.Format("20060102")))
}

// NewLimiter returns a limiter allowing one call per interval, or an
// unlimited one when interval is zero.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// Run searches every entry, enriches the results, and uploads them once.
// An invalid search type fails before any search call. The returned Result
// is the run's success indicator.
func (k *Keyword) Run(ctx context.Context, entries []types.KeywordEntry) (upload.Result, error) {
	searchType, err := types.ParseSearchType(string(k.Config.SearchType))
	if err != nil {
		return upload.Result{}, err
	}

	logger := k.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := k.Now
	if now == nil {
		now = time.Now
	}
	searcher := k.Searcher
	if searcher == nil {
		searcher = search.NewAdapter(k.Config.CallInterval, logger)
	}
	limiter := k.Limiter
	if limiter == nil {
		limiter = NewLimiter(k.Config.CallInterval)
	}
	if k.Summary == nil {
		k.Summary = NewRunSummary(nil)
	}
	summary := k.Summary

	logger.Info("starting keyword search", "keywords", len(entries), "search_type", searchType)
	start := now()

	var results []types.VideoRecord
	for _, entry := range entries {
		if err := limiter.Wait(ctx); err != nil {
			return upload.Result{}, fmt.Errorf("waiting to search %q: %w", entry.Keyword, err)
		}

		searchTime := now().UTC()
		params, err := search.KeywordParams(entry.Keyword, searchType, k.Config.MaxResults, searchTime)
		if err != nil {
			return upload.Result{}, err
		}

		logger.Info("searching", "keyword", entry.Keyword, "study_group", entry.StudyGroup)
		raw := searcher.Search(ctx, k.Client, params)

		enriched, dropped := EnrichAll(raw, types.Provenance{
			SearchTerm: types.StringPtr(entry.Keyword),
			SearchType: searchType,
			SearchTime: searchTime,
			StudyGroup: types.StringPtr(entry.StudyGroup),
			DataSource: k.Config.DataSource,
		}, logger)
		summary.AddSeen(len(raw))
		summary.AddDropped(dropped)
		results = append(results, enriched...)
	}

	logger.Info("processed search results", "elapsed", now().Sub(start),
		"results", len(results), "keywords", len(entries))

	opts := k.UploadOptions
	opts.BackupPath = BackupPath(k.Config.BackupDir, k.Table.Table, now().UTC())
	logger.Info("saving results", "table", k.Table.String(), "backup", opts.BackupPath)

	res := k.Uploader.Upload(ctx, warehouse.VideoSchema, results, k.Table, opts)
	summary.AddUpload(res)
	return res, nil
}
