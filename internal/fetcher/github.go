package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

type Repo struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
	Fork            bool   `json:"fork"`
}

// GitHubClient lists public repositories.
type GitHubClient struct {
	client  HTTPClient
	limiter *rate.Limiter
	baseURL string
	token   string
}

func NewGitHubClient(client HTTPClient, baseURL, token string) *GitHubClient {
	return &GitHubClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Repos returns up to 100 public repos of username. A missing user yields a
// *StatusError for which IsNotFound is true.
func (g *GitHubClient) Repos(ctx context.Context, username string) ([]Repo, error) {
	endpoint := g.baseURL + "/users/" + url.PathEscape(username) + "/repos?per_page=100&sort=updated"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "problem-radar")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	repos, err := fetchJSON[[]Repo](ctx, g.client, g.limiter, req)
	if err != nil {
		return nil, fmt.Errorf("list repos for %s: %w", username, err)
	}
	return repos, nil
}
