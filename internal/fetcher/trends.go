package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const trendsFeedURL = "https://trends.google.com/trending/rss"

// TrendsClient reads the Google Trends daily trending-searches feed.
type TrendsClient struct {
	client  HTTPClient
	limiter *rate.Limiter
	feedURL string
	geo     string
}

// NewTrendsClient reads the feed for geo. feedURL may be empty.
func NewTrendsClient(client HTTPClient, feedURL, geo string) *TrendsClient {
	if feedURL == "" {
		feedURL = trendsFeedURL
	}
	return &TrendsClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		feedURL: feedURL,
		geo:     geo,
	}
}

// Topics returns the titles of today's trending searches.
func (t *TrendsClient) Topics(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.feedURL+"?"+url.Values{"geo": {t.geo}}.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "problem-radar/1.0")

	body, err := do(ctx, t.client, t.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("fetch trends feed: %w", err)
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse trends feed: %w", err)
	}

	topics := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Title != "" {
			topics = append(topics, item.Title)
		}
	}
	return topics, nil
}

// Trending reports whether any trending search mentions niche, or niche
// mentions a trending search.
func (t *TrendsClient) Trending(ctx context.Context, niche string) (bool, error) {
	topics, err := t.Topics(ctx)
	if err != nil {
		return false, err
	}
	n := strings.ToLower(strings.TrimSpace(niche))
	if n == "" {
		return false, nil
	}
	for _, topic := range topics {
		tp := strings.ToLower(topic)
		if strings.Contains(tp, n) || strings.Contains(n, tp) {
			return true, nil
		}
	}
	return false, nil
}
