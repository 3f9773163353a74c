package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// Video is one TikTok item from the scraper dataset.
type Video struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	PlayCount    int64    `json:"playCount"`
	DiggCount    int64    `json:"diggCount"`
	ShareCount   int64    `json:"shareCount"`
	CommentCount int64    `json:"commentCount"`
	CollectCount int64    `json:"collectCount"`
	WebVideoURL  string   `json:"webVideoUrl"`
	Hashtags     []string `json:"-"`
}

type apifyVideo struct {
	Video
	RawHashtags []struct {
		Name string `json:"name"`
	} `json:"hashtags"`
}

type apifyRun struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"data"`
}

// ApifyClient starts TikTok scraper runs and reads their datasets.
type ApifyClient struct {
	client  HTTPClient
	limiter *rate.Limiter
	baseURL string
	actorID string
	token   string
	poller  Poller

	ResultsPerQuery int
}

func NewApifyClient(client HTTPClient, baseURL, actorID, token string) *ApifyClient {
	return &ApifyClient{
		client:          client,
		limiter:         rate.NewLimiter(rate.Limit(2), 2),
		baseURL:         strings.TrimRight(baseURL, "/"),
		actorID:         actorID,
		token:           token,
		poller:          DefaultPoller(),
		ResultsPerQuery: 20,
	}
}

// WithPoller replaces the polling policy.
func (a *ApifyClient) WithPoller(p Poller) *ApifyClient {
	a.poller = p
	return a
}

func (a *ApifyClient) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// SearchVideos runs the scraper for queries and returns its dataset.
func (a *ApifyClient) SearchVideos(ctx context.Context, queries []string) ([]Video, error) {
	input, err := json.Marshal(map[string]any{
		"searchQueries":           queries,
		"resultsPerPage":          a.ResultsPerQuery,
		"shouldDownloadVideos":    false,
		"shouldDownloadCovers":    false,
		"shouldDownloadSubtitles": false,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, "/v2/acts/"+url.PathEscape(a.actorID)+"/runs", input)
	if err != nil {
		return nil, err
	}
	run, err := fetchJSON[apifyRun](ctx, a.client, a.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("start actor run: %w", err)
	}
	runID := run.Data.ID
	datasetID := run.Data.DefaultDatasetID

	_, err = a.poller.Wait(ctx, func(ctx context.Context) (RunState, error) {
		req, err := a.newRequest(ctx, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(runID), nil)
		if err != nil {
			return RunPending, err
		}
		status, err := fetchJSON[apifyRun](ctx, a.client, a.limiter, req)
		if err != nil {
			return RunPending, err
		}
		if status.Data.DefaultDatasetID != "" {
			datasetID = status.Data.DefaultDatasetID
		}
		return ParseRunStatus(status.Data.Status), nil
	})
	if err != nil {
		return nil, fmt.Errorf("actor run %s: %w", runID, err)
	}

	req, err = a.newRequest(ctx, http.MethodGet, "/v2/datasets/"+url.PathEscape(datasetID)+"/items?format=json&clean=true", nil)
	if err != nil {
		return nil, err
	}
	raw, err := fetchJSON[[]apifyVideo](ctx, a.client, a.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", datasetID, err)
	}

	videos := make([]Video, 0, len(raw))
	for _, rv := range raw {
		v := rv.Video
		for _, h := range rv.RawHashtags {
			if h.Name != "" {
				v.Hashtags = append(v.Hashtags, h.Name)
			}
		}
		videos = append(videos, v)
	}
	return videos, nil
}
