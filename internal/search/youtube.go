// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeClient implements Client on the YouTube Data API v3.
type YouTubeClient struct {
	service *youtube.Service
}

// NewYouTubeClient builds an API-key authenticated client. Extra options
// (endpoint, HTTP client) are appended after the key.
func NewYouTubeClient(ctx context.Context, developerKey string, opts ...option.ClientOption) (*YouTubeClient, error) {
	if developerKey == "" {
		return nil, fmt.Errorf("missing YouTube developer key")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(developerKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating YouTube service: %w", err)
	}
	return &YouTubeClient{service: service}, nil
}

// Search issues one search.list call. API errors surface as *googleapi.Error.
func (c *YouTubeClient) Search(ctx context.Context, p Params) (*Response, error) {
	call := c.service.Search.List(p.Part).
		MaxResults(p.MaxResults).
		SafeSearch(p.SafeSearch).
		Type(p.Type)
	if p.Order != "" {
		call = call.Order(p.Order)
	}
	if p.Query != "" {
		call = call.Q(p.Query)
	}
	if !p.PublishedAfter.IsZero() {
		call = call.PublishedAfter(FormatTimestamp(p.PublishedAfter))
	}
	if !p.PublishedBefore.IsZero() {
		call = call.PublishedBefore(FormatTimestamp(p.PublishedBefore))
	}

	res, err := call.Context(ctx).Do()
	if err != nil {
		return nil, err
	}

	out := &Response{Items: make([]Item, 0, len(res.Items))}
	for _, r := range res.Items {
		if r == nil || r.Id == nil {
			continue
		}
		item := Item{ID: ItemID{Kind: r.Id.Kind, VideoID: r.Id.VideoId}}
		if r.Snippet != nil {
			item.Snippet = Snippet{
				PublishedAt:  r.Snippet.PublishedAt,
				Title:        r.Snippet.Title,
				ChannelTitle: r.Snippet.ChannelTitle,
				Description:  r.Snippet.Description,
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// FormatTimestamp renders t as RFC 3339 in UTC, the form the API expects for
// publishedAfter and publishedBefore.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
