// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import "github.com/pdiddy/yt-observatory/pkg/types"

// Filter keeps the records published inside w (inclusive at both ends) and
// counts the rest. The search API's date ordering is not exact and sometimes
// returns videos outside the requested window, such as live streams.
func Filter(records []types.VideoRecord, w types.SearchWindow) (kept []types.VideoRecord, discarded int) {
	for _, r := range records {
		if w.Contains(r.PublishedAt) {
			kept = append(kept, r)
			continue
		}
		discarded++
	}
	return kept, discarded
}
