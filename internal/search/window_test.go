// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pdiddy/yt-observatory/pkg/types"
)

func recordAt(id string, t time.Time) types.VideoRecord {
	return types.VideoRecord{VideoID: id, PublishedAt: t}
}

func TestFilter_KeepsMiddleRecords(t *testing.T) {
	T := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	w := types.SearchWindow{From: T.Add(-120 * time.Second), To: T.Add(-60 * time.Second)}
	records := []types.VideoRecord{
		recordAt("a", T.Add(-180*time.Second)),
		recordAt("b", T.Add(-110*time.Second)),
		recordAt("c", T.Add(-90*time.Second)),
		recordAt("d", T.Add(-70*time.Second)),
		recordAt("e", T.Add(-10*time.Second)),
	}

	kept, discarded := Filter(records, w)

	assert.Equal(t, 2, discarded)
	var ids []string
	for _, r := range kept {
		ids = append(ids, r.VideoID)
	}
	assert.Equal(t, []string{"b", "c", "d"}, ids)
}

func TestFilter_BoundsAreInclusive(t *testing.T) {
	T := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	w := types.SearchWindow{From: T.Add(-time.Minute), To: T}
	records := []types.VideoRecord{
		recordAt("from", w.From),
		recordAt("to", w.To),
		recordAt("before", w.From.Add(-time.Nanosecond)),
		recordAt("after", w.To.Add(time.Nanosecond)),
	}

	kept, discarded := Filter(records, w)

	assert.Len(t, kept, 2)
	assert.Equal(t, 2, discarded)
}

func TestFilter_CountsAddUp(t *testing.T) {
	T := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	w := types.NewSearchWindow(T, 2*time.Minute, 2*time.Minute)
	var records []types.VideoRecord
	for i := 0; i < 50; i++ {
		records = append(records, recordAt("v", T.Add(-time.Duration(i)*15*time.Second)))
	}

	kept, discarded := Filter(records, w)

	assert.Equal(t, len(records), len(kept)+discarded)
	for _, r := range kept {
		assert.True(t, w.Contains(r.PublishedAt))
	}
}

func TestFilter_Empty(t *testing.T) {
	kept, discarded := Filter(nil, types.SearchWindow{})
	assert.Empty(t, kept)
	assert.Zero(t, discarded)
}
