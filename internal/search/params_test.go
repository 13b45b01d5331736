// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

func TestKeywordParams(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		st        types.SearchType
		wantOrder string
		wantAfter time.Time
	}{
		{"all-time", types.SearchAllTime, "relevance", time.Time{}},
		{"top-rated", types.SearchTopRated, "rating", time.Time{}},
		{"last-hour", types.SearchLastHour, "relevance", now.Add(-time.Hour)},
		{"today", types.SearchToday, "relevance", now.Add(-24 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := KeywordParams("scott morrison", tt.st, 20, now)
			require.NoError(t, err)
			assert.Equal(t, "scott morrison", p.Query)
			assert.Equal(t, int64(20), p.MaxResults)
			assert.Equal(t, tt.wantOrder, p.Order)
			assert.Equal(t, tt.wantAfter, p.PublishedAfter)
			assert.True(t, p.PublishedBefore.IsZero())
			assert.Equal(t, "video", p.Type)
			assert.Equal(t, "none", p.SafeSearch)
		})
	}
}

func TestKeywordParams_InvalidType(t *testing.T) {
	_, err := KeywordParams("x", types.SearchType("weekly"), 20, time.Now())
	assert.ErrorIs(t, err, types.ErrInvalidSearchType)
}

func TestWindowParams(t *testing.T) {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	w := types.NewSearchWindow(now, 2*time.Minute, 120*time.Second)

	p := WindowParams(w)

	assert.Equal(t, int64(50), p.MaxResults)
	assert.Equal(t, "date", p.Order)
	assert.Equal(t, now.Add(-4*time.Minute), p.PublishedAfter)
	assert.Equal(t, now.Add(-2*time.Minute), p.PublishedBefore)
	assert.Empty(t, p.Query)
}

func TestFormatTimestamp(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	ts := time.Date(2026, 5, 4, 22, 0, 0, 0, loc)
	assert.Equal(t, "2026-05-04T12:00:00Z", FormatTimestamp(ts))
}
