// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the yt-observatory pipeline:
// the observed video record, its provenance, the polling window, keyword
// entries, and configuration.
package types

import (
	"errors"
	"fmt"
	"time"
)

// SearchType names the keyword search mode that produced a record. The empty
// value means the record came from ambient sampling and is stored as null.
type SearchType string

const (
	SearchLastHour SearchType = "last-hour"
	SearchTopRated SearchType = "top-rated"
	SearchAllTime  SearchType = "all-time"
	SearchToday    SearchType = "today"
)

// ErrInvalidSearchType is returned by ParseSearchType for unknown modes.
var ErrInvalidSearchType = errors.New("invalid search type")

// ParseSearchType validates s as one of the keyword search modes.
func ParseSearchType(s string) (SearchType, error) {
	st := SearchType(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w %q: use last-hour, top-rated, all-time, or today", ErrInvalidSearchType, s)
	}
	return st, nil
}

// Valid reports whether st is a keyword search mode.
func (st SearchType) Valid() bool {
	switch st {
	case SearchLastHour, SearchTopRated, SearchAllTime, SearchToday:
		return true
	}
	return false
}

// Store column names. They match the existing search results table.
const (
	ColPublishedAt  = "publishedAt"
	ColVideoID      = "videoId"
	ColTitle        = "title"
	ColChannelTitle = "channelTitle"
	ColDescription  = "description"
	ColDataSource   = "observatory_data_source"
	ColSearchTerm   = "search_term"
	ColSearchType   = "search_type"
	ColSearchTime   = "search_time"
	ColStudyGroup   = "study_group"
)

// VideoRecord is one observed video. VideoID and PublishedAt always come from
// a successful API response; the provenance fields are attached later by the
// enricher and may be null.
type VideoRecord struct {
	PublishedAt  time.Time `json:"publishedAt" yaml:"published_at"`
	VideoID      string    `json:"videoId" yaml:"video_id"`
	Title        string    `json:"title" yaml:"title"`
	ChannelTitle string    `json:"channelTitle" yaml:"channel_title"`
	Description  string    `json:"description" yaml:"description"`

	// SearchTerm is nil for ambient (random) sampling.
	SearchTerm *string    `json:"search_term,omitempty" yaml:"search_term,omitempty"`
	SearchType SearchType `json:"search_type,omitempty" yaml:"search_type,omitempty"`
	SearchTime time.Time  `json:"search_time" yaml:"search_time"`
	StudyGroup *string    `json:"study_group,omitempty" yaml:"study_group,omitempty"`
	DataSource string     `json:"observatory_data_source" yaml:"observatory_data_source"`
}

// Row returns the record keyed by store column. Null fields map to nil so the
// uploader can strip them before insert.
func (r VideoRecord) Row() map[string]any {
	row := map[string]any{
		ColPublishedAt:  r.PublishedAt,
		ColVideoID:      r.VideoID,
		ColTitle:        r.Title,
		ColChannelTitle: r.ChannelTitle,
		ColDescription:  r.Description,
		ColDataSource:   nil,
		ColSearchTerm:   nil,
		ColSearchType:   nil,
		ColSearchTime:   nil,
		ColStudyGroup:   nil,
	}
	if r.DataSource != "" {
		row[ColDataSource] = r.DataSource
	}
	if r.SearchTerm != nil {
		row[ColSearchTerm] = *r.SearchTerm
	}
	if r.SearchType != "" {
		row[ColSearchType] = string(r.SearchType)
	}
	if !r.SearchTime.IsZero() {
		row[ColSearchTime] = r.SearchTime
	}
	if r.StudyGroup != nil {
		row[ColStudyGroup] = *r.StudyGroup
	}
	return row
}

// Provenance describes how and why a record was collected.
type Provenance struct {
	SearchTerm *string
	SearchType SearchType
	SearchTime time.Time
	StudyGroup *string
	DataSource string
}

// SearchWindow is the publication-time interval polled in one cycle.
type SearchWindow struct {
	From time.Time
	To   time.Time
}

// NewSearchWindow returns the window ending minutesAgo before now and
// spanning interval.
func NewSearchWindow(now time.Time, minutesAgo, interval time.Duration) SearchWindow {
	to := now.UTC().Add(-minutesAgo)
	return SearchWindow{From: to.Add(-interval), To: to}
}

// Contains reports whether t falls inside the window, inclusive at both ends.
func (w SearchWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// KeywordEntry is one row of the keyword input file.
type KeywordEntry struct {
	Keyword    string `json:"keyword" yaml:"keyword"`
	StudyGroup string `json:"study_group" yaml:"study_group"`
}

// StringPtr returns a pointer to s. Handy for the nullable provenance fields.
func StringPtr(s string) *string { return &s }
