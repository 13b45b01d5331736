// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"time"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

// WindowParams builds the ambient sampling query: the newest 50 videos
// published inside w, newest first.
func WindowParams(w types.SearchWindow) Params {
	return Params{
		Part:            []string{"id", "snippet"},
		MaxResults:      maxResultsLimit,
		Order:           "date",
		SafeSearch:      "none",
		Type:            "video",
		PublishedAfter:  w.From,
		PublishedBefore: w.To,
	}
}

// KeywordParams builds the query for one keyword. Results are ordered by
// relevance except for top-rated; last-hour and today bound the publication
// time relative to now.
func KeywordParams(keyword string, st types.SearchType, maxResults int64, now time.Time) (Params, error) {
	p := Params{
		Part:       []string{"id", "snippet"},
		MaxResults: maxResults,
		Order:      "relevance",
		SafeSearch: "none",
		Type:       "video",
		Query:      keyword,
	}
	switch st {
	case types.SearchAllTime:
	case types.SearchTopRated:
		p.Order = "rating"
	case types.SearchLastHour:
		p.PublishedAfter = now.UTC().Add(-time.Hour)
	case types.SearchToday:
		p.PublishedAfter = now.UTC().Add(-24 * time.Hour)
	default:
		return Params{}, fmt.Errorf("%w %q", types.ErrInvalidSearchType, st)
	}
	return p, nil
}
