// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search wraps one call to the YouTube search endpoint and turns the
// response into flat video records. It also owns the publication-time window
// filter and the keyword input file.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/pdiddy/yt-observatory/internal/backoff"
	"github.com/pdiddy/yt-observatory/pkg/types"
)

// KindVideo is the item kind kept from search responses. Channels and
// playlists carry other kinds and are dropped.
const KindVideo = "youtube#video"

const maxResultsLimit = 50

// Params holds the query parameters for one search call. Pagination is not
// supported: a call returns at most MaxResults items.
type Params struct {
	Part       []string
	MaxResults int64
	Order      string // date, relevance, or rating
	SafeSearch string
	Type       string

	// PublishedAfter and PublishedBefore are omitted when zero.
	PublishedAfter  time.Time
	PublishedBefore time.Time

	// Query is the q parameter; empty for ambient sampling.
	Query string
}

// withDefaults fills unset fields and clamps MaxResults to the API limit.
func (p Params) withDefaults() Params {
	if len(p.Part) == 0 {
		p.Part = []string{"id", "snippet"}
	}
	if p.MaxResults <= 0 {
		p.MaxResults = 5
	}
	if p.MaxResults > maxResultsLimit {
		p.MaxResults = maxResultsLimit
	}
	if p.SafeSearch == "" {
		p.SafeSearch = "none"
	}
	if p.Type == "" {
		p.Type = "video"
	}
	return p
}

// Response mirrors the subset of a search.list response the adapter reads.
type Response struct {
	Items []Item `json:"items"`
}

// Item is one search result.
type Item struct {
	ID      ItemID  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// ItemID identifies what kind of resource an item is.
type ItemID struct {
	Kind    string `json:"kind"`
	VideoID string `json:"videoId"`
}

// Snippet carries the descriptive fields of an item.
type Snippet struct {
	PublishedAt  string `json:"publishedAt"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
	Description  string `json:"description"`
}

// Client issues a single search call. Errors that carry an HTTP status
// should be *googleapi.Error so the backoff policy can classify them.
type Client interface {
	Search(ctx context.Context, p Params) (*Response, error)
}

// Adapter runs searches through a Client and applies the backoff policy on
// failure.
type Adapter struct {
	Policy backoff.Policy
	Logger *slog.Logger
}

// NewAdapter returns an Adapter whose transient-error pause is twice
// secondsBetweenCalls.
func NewAdapter(secondsBetweenCalls time.Duration, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{Policy: backoff.New(secondsBetweenCalls), Logger: logger}
}

// Search calls the endpoint once and returns the normalized video records.
// It never returns an error: failures are logged, transient ones also pause
// per the policy, and an empty slice is returned. The next scheduled call is
// the retry.
func (a *Adapter) Search(ctx context.Context, client Client, p Params) []types.VideoRecord {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	resp, err := client.Search(ctx, p.withDefaults())
	if err != nil {
		d := a.Policy.Apply(ctx, err)
		if d.Class == backoff.Transient {
			logger.Error("search: transient HTTP error, backing off", "wait", d.Wait, "error", err)
		} else {
			logger.Error("search: problem getting videos", "error", err)
		}
		return nil
	}
	if resp == nil {
		return nil
	}
	return Normalize(resp.Items, logger)
}

// Normalize keeps video items and converts each into a VideoRecord with only
// the content fields set. Items with an unparseable timestamp or no video ID
// are dropped with a warning.
func Normalize(items []Item, logger *slog.Logger) []types.VideoRecord {
	if logger == nil {
		logger = slog.Default()
	}
	var records []types.VideoRecord
	for _, item := range items {
		if item.ID.Kind != KindVideo {
			continue
		}
		if item.ID.VideoID == "" {
			logger.Warn("search: dropping video item without id")
			continue
		}
		published, err := ParseTimestamp(item.Snippet.PublishedAt)
		if err != nil {
			logger.Warn("search: dropping video with bad publishedAt",
				"video_id", item.ID.VideoID, "published_at", item.Snippet.PublishedAt, "error", err)
			continue
		}
		records = append(records, types.VideoRecord{
			PublishedAt:  published,
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelTitle: item.Snippet.ChannelTitle,
			Description:  item.Snippet.Description,
		})
	}
	return records
}

// ParseTimestamp parses an RFC 3339 timestamp (fractional seconds allowed)
// and returns it in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
