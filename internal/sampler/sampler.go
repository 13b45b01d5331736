// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sampler runs the two collection modes: a continuous sampler that
// polls a rolling publication-time window forever, and a keyword sampler
// that runs one query per keyword and uploads the results once.
package sampler

import (
	"context"

	"github.com/pdiddy/yt-observatory/internal/search"
	"github.com/pdiddy/yt-observatory/internal/upload"
	"github.com/pdiddy/yt-observatory/internal/warehouse"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// Uploader loads a batch of records. *upload.Uploader satisfies it.
type Uploader interface {
	Upload(ctx context.Context, schema warehouse.Schema, records []types.VideoRecord, ref warehouse.TableRef, opts upload.Options) upload.Result
}

// Searcher runs one search call. *search.Adapter satisfies it.
type Searcher interface {
	Search(ctx context.Context, client search.Client, p search.Params) []types.VideoRecord
}
