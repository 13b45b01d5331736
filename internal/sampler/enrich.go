// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sampler

import (
	"log/slog"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// Enrich stamps r with the provenance fields. It reports false when r has
// no video ID; such records are not uploaded.
func Enrich(r types.VideoRecord, p types.Provenance) (types.VideoRecord, bool) {
	if r.VideoID == "" {
		return r, false
	}
	r.SearchTerm = p.SearchTerm
	r.SearchType = p.SearchType
	r.SearchTime = p.SearchTime
	r.StudyGroup = p.StudyGroup
	r.DataSource = p.DataSource
	return r, true
}

// EnrichAll enriches every record and returns the kept records and the
// number dropped for a missing video ID.
func EnrichAll(records []types.VideoRecord, p types.Provenance, logger *slog.Logger) ([]types.VideoRecord, int) {
	out := make([]types.VideoRecord, 0, len(records))
	dropped := 0
	for _, r := range records {
		e, ok := Enrich(r, p)
		if !ok {
			dropped++
			if logger != nil {
				logger.Warn("dropping record without video ID", "title", r.Title, "published_at", r.PublishedAt)
			}
			continue
		}
		out = append(out, e)
	}
	return out, dropped
}
