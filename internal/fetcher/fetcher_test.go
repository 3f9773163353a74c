package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestPollerWait(t *testing.T) {
	tests := []struct {
		name      string
		states    []RunState
		attempts  int
		want      RunState
		wantErr   error
		wantCalls int
	}{
		{
			name:      "succeeds after running",
			states:    []RunState{RunPending, RunRunning, RunSucceeded},
			attempts:  30,
			want:      RunSucceeded,
			wantCalls: 3,
		},
		{
			name:      "failed run",
			states:    []RunState{RunRunning, RunFailed},
			attempts:  30,
			want:      RunFailed,
			wantErr:   ErrRunFailed,
			wantCalls: 2,
		},
		{
			name:      "upstream timeout",
			states:    []RunState{RunTimedOut},
			attempts:  30,
			want:      RunTimedOut,
			wantErr:   ErrRunTimedOut,
			wantCalls: 1,
		},
		{
			name:      "attempts exhausted",
			states:    []RunState{RunRunning, RunRunning, RunRunning},
			attempts:  3,
			want:      RunTimedOut,
			wantErr:   ErrRunTimedOut,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var slept []time.Duration
			p := Poller{
				Interval:    3 * time.Second,
				MaxAttempts: tt.attempts,
				Sleep: func(_ context.Context, d time.Duration) error {
					slept = append(slept, d)
					return nil
				},
			}
			calls := 0
			got, err := p.Wait(context.Background(), func(context.Context) (RunState, error) {
				s := tt.states[calls]
				calls++
				return s, nil
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("state = %s, want %s", got, tt.want)
			}
			if calls != tt.wantCalls {
				t.Errorf("status calls = %d, want %d", calls, tt.wantCalls)
			}
			if len(slept) != tt.wantCalls || slept[0] != 3*time.Second {
				t.Errorf("sleeps = %v", slept)
			}
		})
	}
}

func TestPollerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Poller{Interval: time.Hour, MaxAttempts: 30}
	_, err := p.Wait(ctx, func(context.Context) (RunState, error) {
		t.Fatal("status should not be called after cancel")
		return RunPending, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestParseRunStatus(t *testing.T) {
	tests := map[string]RunState{
		"READY":     RunPending,
		"RUNNING":   RunRunning,
		"SUCCEEDED": RunSucceeded,
		"FAILED":    RunFailed,
		"ABORTED":   RunFailed,
		"TIMED-OUT": RunTimedOut,
	}
	for in, want := range tests {
		if got := ParseRunStatus(in); got != want {
			t.Errorf("ParseRunStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestApifySearchVideos(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("authorization = %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/acts/clockworks~tiktok-scraper/runs":
			_, _ = w.Write([]byte(`{"data":{"id":"run1","status":"READY","defaultDatasetId":"ds1"}}`))
		case r.URL.Path == "/v2/actor-runs/run1":
			status := "RUNNING"
			if polls.Add(1) >= 2 {
				status = "SUCCEEDED"
			}
			_, _ = w.Write([]byte(`{"data":{"id":"run1","status":"` + status + `","defaultDatasetId":"ds1"}}`))
		case r.URL.Path == "/v2/datasets/ds1/items":
			_, _ = w.Write([]byte(`[{"id":"v1","text":"I hate job hunting","playCount":120000,"diggCount":9000,"shareCount":400,"commentCount":300,"collectCount":50,"hashtags":[{"name":"career"},{"name":""}]}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a := NewApifyClient(srv.Client(), srv.URL, "clockworks~tiktok-scraper", "tok").
		WithPoller(Poller{Interval: time.Millisecond, MaxAttempts: 5, Sleep: noSleep})

	videos, err := a.SearchVideos(context.Background(), []string{"job search"})
	if err != nil {
		t.Fatalf("SearchVideos: %v", err)
	}
	want := []Video{{
		ID:           "v1",
		Text:         "I hate job hunting",
		PlayCount:    120000,
		DiggCount:    9000,
		ShareCount:   400,
		CommentCount: 300,
		CollectCount: 50,
		Hashtags:     []string{"career"},
	}}
	if diff := cmp.Diff(want, videos); diff != "" {
		t.Errorf("videos mismatch (-want +got):\n%s", diff)
	}
	if polls.Load() != 2 {
		t.Errorf("polls = %d, want 2", polls.Load())
	}
}

func TestApifyRunFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"data":{"id":"run1","status":"READY"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"run1","status":"ABORTED"}}`))
	}))
	defer srv.Close()

	a := NewApifyClient(srv.Client(), srv.URL, "actor", "tok").
		WithPoller(Poller{Interval: time.Millisecond, MaxAttempts: 5, Sleep: noSleep})
	if _, err := a.SearchVideos(context.Background(), []string{"q"}); !errors.Is(err, ErrRunFailed) {
		t.Fatalf("err = %v, want ErrRunFailed", err)
	}
}

func TestRedditPostsAndComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-RapidAPI-Key") != "key" || r.Header.Get("X-RapidAPI-Host") != "reddit34.p.rapidapi.com" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/getPostsBySubreddit":
			if r.URL.Query().Get("subreddit") != "startups" || r.URL.Query().Get("sort") != "top" {
				t.Errorf("query = %s", r.URL.RawQuery)
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"posts":[
				{"kind":"t3","data":{"id":"a","title":"First","score":10,"num_comments":2,"permalink":"/r/startups/comments/a/"}},
				{"kind":"t3","data":{"id":"b","title":"","score":99}},
				{"kind":"t3","data":{"id":"c","title":"Second","score":50,"num_comments":8}},
				{"kind":"t3","data":{"id":"d","title":"Third","score":5}}
			]}}`))
		case "/getPostCommentsWithSort":
			if got := r.URL.Query().Get("post_url"); got != "https://www.reddit.com/r/startups/comments/a/" {
				t.Errorf("post_url = %q", got)
			}
			_, _ = w.Write([]byte(`{"success":true,"data":{"comments":[{"data":{"body":"same here","score":4}},{"data":{"body":"  "}}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewRedditClient(srv.Client(), srv.URL, "reddit34.p.rapidapi.com", "key")
	posts, err := c.Posts(context.Background(), "startups", "top", 2)
	if err != nil {
		t.Fatalf("Posts: %v", err)
	}
	var titles []string
	for _, p := range posts {
		titles = append(titles, p.Title)
	}
	if diff := cmp.Diff([]string{"First", "Second"}, titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}

	comments, err := c.Comments(context.Background(), posts[0])
	if err != nil {
		t.Fatalf("Comments: %v", err)
	}
	if diff := cmp.Diff([]Comment{{Body: "same here", Score: 4}}, comments); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestTopByScore(t *testing.T) {
	posts := []Post{{ID: "a", Score: 1}, {ID: "b", Score: 30}, {ID: "c", Score: 7}, {ID: "d", Score: 30}}
	got := TopByScore(posts, 3)
	var ids []string
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	if diff := cmp.Diff([]string{"b", "d", "c"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if posts[0].ID != "a" {
		t.Error("input slice was reordered")
	}
	if len(TopByScore(posts[:1], 5)) != 1 {
		t.Error("short input should be returned whole")
	}
}

func TestGitHubRepos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/octo/repos":
			_, _ = w.Write([]byte(`[{"name":"a","stargazers_count":0},{"name":"b","stargazers_count":3}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	defer srv.Close()

	g := NewGitHubClient(srv.Client(), srv.URL, "")
	repos, err := g.Repos(context.Background(), "octo")
	if err != nil {
		t.Fatalf("Repos: %v", err)
	}
	if len(repos) != 2 || repos[1].StargazersCount != 3 {
		t.Errorf("repos = %+v", repos)
	}

	_, err = g.Repos(context.Background(), "ghost")
	if !IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

const trendsFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Daily Search Trends</title>
<item><title>remote work</title></item>
<item><title>marathon training</title></item>
</channel></rss>`

func TestTrendsTrending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("geo") != "US" {
			t.Errorf("geo = %q", r.URL.Query().Get("geo"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(trendsFeed))
	}))
	defer srv.Close()

	c := NewTrendsClient(srv.Client(), srv.URL, "US")
	tests := []struct {
		niche string
		want  bool
	}{
		{"Remote Work", true},
		{"marathon", true},
		{"parenting", false},
		{"", false},
	}
	for _, tt := range tests {
		got, err := c.Trending(context.Background(), tt.niche)
		if err != nil {
			t.Fatalf("Trending(%q): %v", tt.niche, err)
		}
		if got != tt.want {
			t.Errorf("Trending(%q) = %v, want %v", tt.niche, got, tt.want)
		}
	}
}

func TestDoReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := do(context.Background(), srv.Client(), nil, req)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway || len(se.Body) != 200 {
		t.Fatalf("err = %v", err)
	}
}
