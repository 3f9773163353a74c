package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/time/rate"
)

type Post struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Link returns the canonical reddit.com URL of the post.
func (p Post) Link() string {
	if p.Permalink != "" {
		return "https://www.reddit.com" + p.Permalink
	}
	return p.URL
}

type Comment struct {
	Body   string `json:"body"`
	Score  int    `json:"score"`
	Author string `json:"author"`
}

type redditListing[T any] struct {
	Success bool `json:"success"`
	Data    struct {
		Posts []struct {
			Data T `json:"data"`
		} `json:"posts"`
		Comments []struct {
			Data T `json:"data"`
		} `json:"comments"`
	} `json:"data"`
}

// RedditClient reads subreddits through the RapidAPI Reddit proxy.
type RedditClient struct {
	client  HTTPClient
	limiter *rate.Limiter
	baseURL string
	host    string
	key     string
}

// NewRedditClient builds a client for host. baseURL may be empty, in which
// case https://<host> is used.
func NewRedditClient(client HTTPClient, baseURL, host, key string) *RedditClient {
	if baseURL == "" {
		baseURL = "https://" + host
	}
	return &RedditClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 5),
		baseURL: strings.TrimRight(baseURL, "/"),
		host:    host,
		key:     key,
	}
}

func (r *RedditClient) get(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", r.key)
	req.Header.Set("X-RapidAPI-Host", r.host)
	return req, nil
}

// Posts lists up to limit posts of subreddit in the given sort order.
func (r *RedditClient) Posts(ctx context.Context, subreddit, sortBy string, limit int) ([]Post, error) {
	req, err := r.get(ctx, "/getPostsBySubreddit", url.Values{"subreddit": {subreddit}, "sort": {sortBy}})
	if err != nil {
		return nil, err
	}
	listing, err := fetchJSON[redditListing[Post]](ctx, r.client, r.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	posts := make([]Post, 0, len(listing.Data.Posts))
	for _, p := range listing.Data.Posts {
		if p.Data.Title == "" {
			continue
		}
		posts = append(posts, p.Data)
		if limit > 0 && len(posts) == limit {
			break
		}
	}
	return posts, nil
}

// Comments returns the top comments of post.
func (r *RedditClient) Comments(ctx context.Context, post Post) ([]Comment, error) {
	req, err := r.get(ctx, "/getPostCommentsWithSort", url.Values{"post_url": {post.Link()}, "sort": {"confidence"}})
	if err != nil {
		return nil, err
	}
	listing, err := fetchJSON[redditListing[Comment]](ctx, r.client, r.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for %s: %w", post.ID, err)
	}

	comments := make([]Comment, 0, len(listing.Data.Comments))
	for _, c := range listing.Data.Comments {
		if strings.TrimSpace(c.Data.Body) != "" {
			comments = append(comments, c.Data)
		}
	}
	return comments, nil
}

// TopByScore returns the n highest-scored posts without reordering posts.
func TopByScore(posts []Post, n int) []Post {
	sorted := make([]Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
