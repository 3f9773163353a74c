package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gorm.io/gorm"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
	"problem-radar/internal/scorer"
	"problem-radar/internal/store"
	"problem-radar/internal/store/storetest"
)

type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int {
	if r.n >= n {
		return n - 1
	}
	return r.n
}

var (
	midDraw  = fixedRand{f: 0.5, n: 0}
	lowDraw  = fixedRand{f: 0, n: 0}
	highDraw = fixedRand{f: 0.999999, n: 1 << 30}
)

type fakeVideos struct {
	videos []fetcher.Video
	err    error
	calls  int
}

func (f *fakeVideos) SearchVideos(_ context.Context, _ []string) ([]fetcher.Video, error) {
	f.calls++
	return f.videos, f.err
}

type fakePosts struct {
	posts       []fetcher.Post
	commentErrs map[string]error

	mu        sync.Mutex
	commented []string
}

func (f *fakePosts) Posts(_ context.Context, _, _ string, limit int) ([]fetcher.Post, error) {
	if limit < len(f.posts) {
		return f.posts[:limit], nil
	}
	return f.posts, nil
}

func (f *fakePosts) Comments(_ context.Context, p fetcher.Post) ([]fetcher.Comment, error) {
	f.mu.Lock()
	f.commented = append(f.commented, p.ID)
	f.mu.Unlock()
	if err := f.commentErrs[p.ID]; err != nil {
		return nil, err
	}
	return []fetcher.Comment{{Body: "me too"}}, nil
}

type fakeAI struct {
	tiktok     scorer.Extraction
	reddit     scorer.Extraction
	insight    models.HiddenInsight
	insightErr error
	insights   int
}

func (f *fakeAI) ExtractTikTokProblems(context.Context, string, []fetcher.Video) scorer.Extraction {
	return f.tiktok
}

func (f *fakeAI) ExtractRedditProblems(context.Context, string, []fetcher.Post, map[string][]fetcher.Comment) scorer.Extraction {
	return f.reddit
}

func (f *fakeAI) GenerateHiddenInsight(context.Context, *models.Problem) (models.HiddenInsight, error) {
	f.insights++
	return f.insight, f.insightErr
}

type fakeTrends struct{ trending bool }

func (f fakeTrends) Trending(context.Context, string) (bool, error) { return f.trending, nil }

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func threeProblems() []scorer.ExtractedProblem {
	out := make([]scorer.ExtractedProblem, 3)
	for i := range out {
		out[i] = scorer.ExtractedProblem{
			Title:          fmt.Sprintf("Career problem %d", i+1),
			Subtitle:       "subtitle",
			Category:       "career",
			Sentiment:      "exploding",
			PainPoints:     []string{"one", "two"},
			HiddenInsight:  models.HiddenInsight{SurfaceAsk: "s", RealProblem: "r", HiddenSignal: "h"},
			DemandVelocity: 100 + i*40,
			CompetitionGap: 60 + i*20,
		}
	}
	return out
}

// viralVideos splits to 200k views per problem with ~10% engagement.
func viralVideos() []fetcher.Video {
	return []fetcher.Video{
		{ID: "a", PlayCount: 400_000, DiggCount: 40_000, ShareCount: 3_000, CommentCount: 2_000, CollectCount: 900},
		{ID: "b", PlayCount: 200_000, DiggCount: 15_000, ShareCount: 1_000, CommentCount: 500, CollectCount: 300},
	}
}

type harness struct {
	svc    *Service
	db     *gorm.DB
	videos *fakeVideos
	posts  *fakePosts
	ai     *fakeAI
	clock  *clock
}

func newHarness(t *testing.T, r metrics.Rand) *harness {
	t.Helper()
	st, db := storetest.New(t)
	h := &harness{
		db:     db,
		videos: &fakeVideos{videos: viralVideos()},
		posts:  &fakePosts{},
		ai:     &fakeAI{tiktok: scorer.Extraction{Kind: scorer.KindAI, Problems: threeProblems()}},
		clock:  &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.svc = New(st, h.videos, h.posts, h.ai, logger.Nop(),
		WithRand(r), WithClock(h.clock.now), WithTrends(fakeTrends{trending: true}))
	return h
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Count(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n
}

func TestScanTikTokCareerEndToEnd(t *testing.T) {
	h := newHarness(t, midDraw)
	resp, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatalf("ScanTikTok: %v", err)
	}

	if len(resp.Data) != 3 {
		t.Fatalf("data length = %d, want 3", len(resp.Data))
	}
	if resp.Source != SourceLive || resp.VideosAnalyzed != 2 || len(resp.Queries) != 2 {
		t.Errorf("response meta = %+v", resp)
	}
	for _, r := range resp.Data {
		if r.OpportunityScore < 0 || r.OpportunityScore > 100 {
			t.Errorf("%s: opportunity %d out of range", r.Title, r.OpportunityScore)
		}
		if r.OpportunityScore != metrics.OpportunityScore(r.DemandVelocity, r.CompetitionGap) {
			t.Errorf("%s: opportunity not derived from dv/cg", r.Title)
		}
		var tags []string
		for _, s := range r.Sources {
			tags = append(tags, s.Source)
		}
		if diff := cmp.Diff([]string{"tiktok", "google_trends", "reddit"}, tags); diff != "" {
			t.Errorf("source tags mismatch (-want +got):\n%s", diff)
		}
		if !r.Sources[1].Trending {
			t.Error("google trends entry should be marked trending")
		}
		if r.Views != 200_000 || !r.IsViral {
			t.Errorf("%s: views=%d viral=%v", r.Title, r.Views, r.IsViral)
		}
	}

	if resp.ViralCount != 3 || resp.PersistedCount != 3 {
		t.Errorf("viral=%d persisted=%d, want 3/3", resp.ViralCount, resp.PersistedCount)
	}
	if got := h.count(t, &models.Problem{}); got != 3 {
		t.Errorf("stored problems = %d, want 3", got)
	}
	if got := h.count(t, &models.SearchCache{}); got != 1 {
		t.Errorf("cache rows = %d, want 1", got)
	}

	st := store.New(h.db)
	scan, err := st.GetChannelScan(context.Background(), "tiktok:career")
	if err != nil {
		t.Fatal(err)
	}
	if scan.ProblemsFound != 3 || scan.ViralCount != 3 || scan.ItemsAnalyzed != 2 {
		t.Errorf("channel scan = %+v", scan)
	}
}

func TestScanTikTokOpportunityClamped(t *testing.T) {
	h := newHarness(t, midDraw)
	h.ai.tiktok.Problems = []scorer.ExtractedProblem{{Title: "Huge", DemandVelocity: 900, CompetitionGap: 900}}
	resp, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	r := resp.Data[0]
	if r.DemandVelocity != 200 || r.CompetitionGap != 95 || r.OpportunityScore != 100 {
		t.Errorf("dv=%d cg=%d opp=%d", r.DemandVelocity, r.CompetitionGap, r.OpportunityScore)
	}
}

func TestScanTikTokDoesNotDuplicate(t *testing.T) {
	h := newHarness(t, midDraw)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		resp, err := h.svc.ScanTikTok(ctx, TikTokRequest{Niche: "career", ForceRefresh: true})
		if err != nil {
			t.Fatal(err)
		}
		want := 3
		if i == 1 {
			want = 0
		}
		if resp.PersistedCount != want {
			t.Errorf("run %d persisted = %d, want %d", i+1, resp.PersistedCount, want)
		}
	}
	if got := h.count(t, &models.Problem{}); got != 3 {
		t.Errorf("stored problems = %d, want 3", got)
	}
	if got := h.count(t, &models.SearchCache{}); got != 1 {
		t.Errorf("cache rows = %d, want 1 after replacement", got)
	}
}

func TestScanTikTokPersistsOnlyViral(t *testing.T) {
	h := newHarness(t, midDraw)
	h.videos.videos = []fetcher.Video{{PlayCount: 90_000, DiggCount: 9_000}}
	resp, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 3 || resp.ViralCount != 0 || resp.PersistedCount != 0 {
		t.Errorf("data=%d viral=%d persisted=%d", len(resp.Data), resp.ViralCount, resp.PersistedCount)
	}
	if got := h.count(t, &models.Problem{}); got != 0 {
		t.Errorf("stored problems = %d, want 0", got)
	}
}

func TestScanTikTokCacheRoundTrip(t *testing.T) {
	h := newHarness(t, midDraw)
	ctx := context.Background()

	live, err := h.svc.ScanTikTok(ctx, TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}

	h.clock.t = h.clock.t.Add(time.Hour)
	cached, err := h.svc.ScanTikTok(ctx, TikTokRequest{Niche: "career"})
	if err != nil {
		t.Fatal(err)
	}
	if cached.Source != SourceCache {
		t.Fatalf("source = %q, want cache", cached.Source)
	}
	if diff := cmp.Diff(live.Data, cached.Data); diff != "" {
		t.Errorf("cached data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(live.Queries, cached.Queries); diff != "" {
		t.Errorf("cached queries mismatch (-want +got):\n%s", diff)
	}
	if h.videos.calls != 1 {
		t.Errorf("scraper calls = %d, want 1", h.videos.calls)
	}

	forced, err := h.svc.ScanTikTok(ctx, TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if forced.Source != SourceLive || h.videos.calls != 2 {
		t.Errorf("forceRefresh should bypass cache: source=%s calls=%d", forced.Source, h.videos.calls)
	}

	h.clock.t = h.clock.t.Add(CacheTTL + time.Minute)
	expired, err := h.svc.ScanTikTok(ctx, TikTokRequest{Niche: "career"})
	if err != nil {
		t.Fatal(err)
	}
	if expired.Source != SourceLive || h.videos.calls != 3 {
		t.Errorf("expired cache should run live: source=%s calls=%d", expired.Source, h.videos.calls)
	}
}

func TestScanTikTokAIFailure(t *testing.T) {
	h := newHarness(t, midDraw)
	h.ai.tiktok = scorer.Extraction{Kind: scorer.KindFallback, Err: errors.New("gateway down")}

	resp, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatalf("AI failure should not be an error: %v", err)
	}
	if !resp.Success || len(resp.Data) != 0 || resp.Message == "" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Data == nil {
		t.Error("data should be an empty list, not null")
	}
	if got := h.count(t, &models.SearchCache{}); got != 0 {
		t.Errorf("cache rows = %d, want 0", got)
	}
	if got := h.count(t, &models.ChannelScan{}); got != 1 {
		t.Fatalf("channel scans = %d, want 1", got)
	}
	var scan models.ChannelScan
	if err := h.db.First(&scan, "id = ?", models.ScanID(models.PlatformTikTok, "career")).Error; err != nil {
		t.Fatal(err)
	}
	want := models.ChannelScan{ItemsAnalyzed: 2, ProblemsFound: 0, ViralCount: 0, ScanCount: 1}
	got := models.ChannelScan{ItemsAnalyzed: scan.ItemsAnalyzed, ProblemsFound: scan.ProblemsFound, ViralCount: scan.ViralCount, ScanCount: scan.ScanCount}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("channel scan mismatch (-want +got):\n%s", diff)
	}
}

func TestScanTikTokBlankTitlesDoNotDiluteViews(t *testing.T) {
	h := newHarness(t, midDraw)
	// 150k views total: viral only when split across the single titled problem.
	h.videos.videos = []fetcher.Video{{PlayCount: 150_000, DiggCount: 15_000, ShareCount: 600, CollectCount: 300}}
	problems := threeProblems()
	problems[1].Title = "   "
	problems[2].Title = ""
	h.ai.tiktok = scorer.Extraction{Kind: scorer.KindAI, Problems: problems}

	resp, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("data = %d, want 1", len(resp.Data))
	}
	got := resp.Data[0]
	if got.Views != 150_000 || got.Shares != 600 || got.Saves != 300 {
		t.Errorf("views=%d shares=%d saves=%d, want the full totals", got.Views, got.Shares, got.Saves)
	}
	if !got.IsViral || resp.PersistedCount != 1 {
		t.Errorf("viral=%v persisted=%d, want viral and stored", got.IsViral, resp.PersistedCount)
	}
}

func TestScanTikTokScraperError(t *testing.T) {
	h := newHarness(t, midDraw)
	h.videos.err = fetcher.ErrRunTimedOut
	_, err := h.svc.ScanTikTok(context.Background(), TikTokRequest{Niche: "career", ForceRefresh: true})
	if !errors.Is(err, fetcher.ErrRunTimedOut) {
		t.Fatalf("err = %v, want ErrRunTimedOut", err)
	}
}

func redditPosts() []fetcher.Post {
	return []fetcher.Post{
		{ID: "p1", Title: "Small post", Score: 10, NumComments: 1},
		{ID: "p2", Title: strings.Repeat("é", 150), Score: 400, NumComments: 90, SelfText: "I tried everything. Nothing works."},
		{ID: "p3", Title: "Medium post", Score: 120, NumComments: 12},
		{ID: "p4", Title: "Big post", Score: 800, NumComments: 3},
		{ID: "p5", Title: "Tiny", Score: 1, NumComments: 0},
		{ID: "p6", Title: "Zero", Score: 0, NumComments: 0},
	}
}

func TestScanRedditFallback(t *testing.T) {
	tests := []struct {
		name string
		ext  scorer.Extraction
	}{
		{name: "ai error", ext: scorer.Extraction{Kind: scorer.KindFallback, Err: errors.New("boom")}},
		{name: "zero problems", ext: scorer.Extraction{Kind: scorer.KindAI}},
		{name: "only blank titles", ext: scorer.Extraction{Kind: scorer.KindAI, Problems: []scorer.ExtractedProblem{{Title: " "}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, midDraw)
			h.posts.posts = redditPosts()
			h.ai.reddit = tt.ext

			resp, err := h.svc.ScanReddit(context.Background(), RedditRequest{Subreddit: "r/startups"})
			if err != nil {
				t.Fatal(err)
			}
			if resp.AnalysisSource != AnalysisFallback || resp.Subreddit != "startups" {
				t.Errorf("analysis=%s subreddit=%s", resp.AnalysisSource, resp.Subreddit)
			}

			type row struct {
				Title string
				Score int
			}
			var got []row
			for _, r := range resp.Data {
				got = append(got, row{r.Title, r.OpportunityScore})
			}
			want := []row{
				{"Big post", 95},
				{strings.Repeat("é", 120), 95},
				{"Medium post", 91},
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("fallback mismatch (-want +got):\n%s", diff)
			}
			if got := h.count(t, &models.Problem{}); got != 3 {
				t.Errorf("stored problems = %d, want 3", got)
			}
		})
	}
}

func TestRedditFallbackIsDeterministic(t *testing.T) {
	h := newHarness(t, midDraw)
	posts := redditPosts()
	a := h.svc.redditFallback("startups", posts)
	b := h.svc.redditFallback("startups", posts)
	for i := range a {
		if a[i].Title != b[i].Title {
			t.Errorf("title %d differs", i)
		}
		if diff := cmp.Diff(a[i].PainPoints, b[i].PainPoints); diff != "" {
			t.Errorf("pain points %d differ (-a +b):\n%s", i, diff)
		}
	}
	if got := a[1].PainPoints[0]; got != "I tried everything." {
		t.Errorf("first pain point = %q", got)
	}
	if len(h.svc.redditFallback("startups", posts[:2])) != 2 {
		t.Error("fewer than three posts should yield one problem per post")
	}
}

func TestScanRedditTrustsAIScore(t *testing.T) {
	h := newHarness(t, midDraw)
	h.posts.posts = redditPosts()
	h.posts.commentErrs = map[string]error{"p2": errors.New("rate limited")}
	h.ai.reddit = scorer.Extraction{Kind: scorer.KindAI, Problems: []scorer.ExtractedProblem{
		{Title: "Founders cannot find cofounders", OpportunityScore: 97, DemandVelocity: 150, CompetitionGap: 40},
		{Title: "Pricing is guesswork", OpportunityScore: 12, DemandVelocity: 30, CompetitionGap: 90},
	}}

	resp, err := h.svc.ScanReddit(context.Background(), RedditRequest{Subreddit: "startups", Sort: "top", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if resp.AnalysisSource != AnalysisAI || len(resp.Data) != 2 {
		t.Fatalf("analysis=%s data=%d", resp.AnalysisSource, len(resp.Data))
	}
	if resp.Data[0].OpportunityScore != 97 || resp.Data[1].OpportunityScore != 12 {
		t.Errorf("scores = %d, %d", resp.Data[0].OpportunityScore, resp.Data[1].OpportunityScore)
	}
	src := resp.Data[0].Sources
	if len(src) != 1 || src[0].Name != "reddit" || src[0].Subreddit != "startups" {
		t.Errorf("sources = %+v", src)
	}
	if len(h.posts.commented) != 5 {
		t.Errorf("comment fetches = %v, want top 5", h.posts.commented)
	}

	h.ai.reddit.Problems[0].OpportunityScore = 50
	if _, err := h.svc.ScanReddit(context.Background(), RedditRequest{Subreddit: "startups"}); err != nil {
		t.Fatal(err)
	}
	if got := h.count(t, &models.Problem{}); got != 2 {
		t.Errorf("stored problems = %d, want 2 after upsert", got)
	}
	var p models.Problem
	if err := h.db.First(&p, "title = ?", "Founders cannot find cofounders").Error; err != nil {
		t.Fatal(err)
	}
	if p.OpportunityScore != 50 {
		t.Errorf("upsert did not update score: %d", p.OpportunityScore)
	}

	scan, err := store.New(h.db).GetChannelScan(context.Background(), "reddit:startups")
	if err != nil {
		t.Fatal(err)
	}
	if scan.ScanCount != 2 {
		t.Errorf("scan count = %d, want 2", scan.ScanCount)
	}
}

func TestNormalizeSubreddit(t *testing.T) {
	tests := map[string]string{
		"startups":    "startups",
		"r/startups":  "startups",
		"R/Startups":  "Startups",
		"/r/startups": "startups",
		" r/x_y ":     "x_y",
	}
	for in, want := range tests {
		if got := NormalizeSubreddit(in); got != want {
			t.Errorf("NormalizeSubreddit(%q) = %q, want %q", in, got, want)
		}
	}
}

func seedProblem(t *testing.T, db *gorm.DB, p *models.Problem) *models.Problem {
	t.Helper()
	if err := db.Create(p).Error; err != nil {
		t.Fatal(err)
	}
	return p
}

func TestRefreshBoundsOnExtremeDraws(t *testing.T) {
	for _, draw := range []fixedRand{lowDraw, highDraw} {
		t.Run(fmt.Sprintf("draw %.2f", draw.f), func(t *testing.T) {
			h := newHarness(t, draw)
			existing := &models.Problem{Title: "existing", DemandVelocity: 199, CompetitionGap: 31, OpportunityScore: 99, Views: 1}
			existing.SetSources(metrics.StandardSources(1, 1, 199, false, draw))
			fresh := &models.Problem{Title: "fresh", Views: 50_000_000, Shares: 90_000}
			seedProblem(t, h.db, existing)
			seedProblem(t, h.db, fresh)

			res, err := h.svc.Refresh(context.Background(), "")
			if err != nil {
				t.Fatal(err)
			}
			if res.Updated != 2 || res.Failed != 0 || res.Total != 2 {
				t.Fatalf("result = %+v", res)
			}

			var got []models.Problem
			h.db.Order("title").Find(&got)
			for _, p := range got {
				dvb, cgb := metrics.DemandVelocityBounds, metrics.CompetitionGapBounds
				if p.Title == "fresh" {
					dvb, cgb = metrics.FreshDemandVelocityBounds, metrics.FreshCompetitionGapBounds
				}
				if p.DemandVelocity < dvb.Min || p.DemandVelocity > dvb.Max {
					t.Errorf("%s: demand velocity %d outside %v", p.Title, p.DemandVelocity, dvb)
				}
				if p.CompetitionGap < cgb.Min || p.CompetitionGap > cgb.Max {
					t.Errorf("%s: competition gap %d outside %v", p.Title, p.CompetitionGap, cgb)
				}
				if p.OpportunityScore < 0 || p.OpportunityScore > 100 {
					t.Errorf("%s: opportunity %d", p.Title, p.OpportunityScore)
				}
			}
		})
	}
}

func TestRefreshPreservesSourceShape(t *testing.T) {
	h := newHarness(t, midDraw)
	reddit := &models.Problem{Title: "reddit one", Niche: "startups", DemandVelocity: 80, CompetitionGap: 60, OpportunityScore: 70}
	reddit.SetSources(metrics.RedditSources("startups", 300, 40, midDraw))
	legacy := &models.Problem{Title: "legacy reddit", Niche: "saas", DemandVelocity: 80, CompetitionGap: 60, OpportunityScore: 70}
	legacy.SetSources([]models.Source{{Source: "reddit", Value: 12}})
	standard := &models.Problem{Title: "tiktok one", DemandVelocity: 80, CompetitionGap: 60, OpportunityScore: 70, Views: 10_000}
	standard.SetSources(metrics.StandardSources(10_000, 10, 80, true, midDraw))
	for _, p := range []*models.Problem{reddit, legacy, standard} {
		seedProblem(t, h.db, p)
	}

	if _, err := h.svc.Refresh(context.Background(), ""); err != nil {
		t.Fatal(err)
	}

	load := func(title string) []models.Source {
		var p models.Problem
		if err := h.db.First(&p, "title = ?", title).Error; err != nil {
			t.Fatal(err)
		}
		return p.SourceList()
	}
	if src := load("reddit one"); len(src) != 1 || src[0].Name != "reddit" || src[0].Subreddit != "startups" {
		t.Errorf("reddit sources = %+v", src)
	}
	if src := load("legacy reddit"); len(src) != 1 || src[0].Subreddit != "saas" {
		t.Errorf("legacy sources = %+v", src)
	}
	src := load("tiktok one")
	if len(src) != 3 || src[0].Source != "tiktok" || !src[1].Trending {
		t.Errorf("standard sources = %+v", src)
	}
}

func TestRefreshBackfillsInsightAndSolutionsOnce(t *testing.T) {
	h := newHarness(t, midDraw)
	h.ai.insightErr = errors.New("no model")
	p := seedProblem(t, h.db, &models.Problem{Title: "Gym dropouts", Category: "fitness", OpportunityScore: 90, DemandVelocity: 100, CompetitionGap: 70})
	ctx := context.Background()

	res, err := h.svc.Refresh(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Total != 1 || res.InsightsBackfilled != 1 || res.SolutionsCreated != 2 {
		t.Errorf("result = %+v", res)
	}

	st := store.New(h.db)
	got, err := st.GetProblem(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	hi, ok := got.Insight()
	if !ok || !strings.Contains(hi.SurfaceAsk, "Gym dropouts") {
		t.Errorf("insight = %+v ok=%v", hi, ok)
	}
	for _, s := range got.Solutions {
		if !s.AIGenerated || s.MarketFit > 88 {
			t.Errorf("solution %q fit=%d ai=%v", s.Title, s.MarketFit, s.AIGenerated)
		}
	}

	res, err = h.svc.Refresh(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.InsightsBackfilled != 0 || res.SolutionsCreated != 0 {
		t.Errorf("second refresh should not backfill: %+v", res)
	}
	if h.ai.insights != 1 {
		t.Errorf("insight calls = %d, want 1", h.ai.insights)
	}
	if got := h.count(t, &models.Solution{}); got != 2 {
		t.Errorf("solutions = %d, want 2", got)
	}
}

func TestRefreshUnknownProblem(t *testing.T) {
	h := newHarness(t, midDraw)
	if _, err := h.svc.Refresh(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSampleQueries(t *testing.T) {
	got := SampleQueries("Career", 2, lowDraw)
	if diff := cmp.Diff(nicheQueries["career"][:2], got); diff != "" {
		t.Errorf("low draw mismatch (-want +got):\n%s", diff)
	}
	got = SampleQueries("career", 2, highDraw)
	if got[0] == got[1] {
		t.Errorf("queries not distinct: %v", got)
	}
	if nicheQueries["career"][0] != "job search frustration" {
		t.Error("sampling mutated the query table")
	}

	generic := SampleQueries("beekeeping", 2, lowDraw)
	if diff := cmp.Diff([]string{"beekeeping problems", "beekeeping struggles"}, generic); diff != "" {
		t.Errorf("generic mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSolutionsTemplates(t *testing.T) {
	tests := []struct {
		category string
		wantCap  int
	}{
		{category: "small business", wantCap: 92},
		{category: "career", wantCap: 90},
		{category: "mental health", wantCap: 88},
		{category: "gardening", wantCap: 85},
	}
	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			p := &models.Problem{ID: "p", Title: "Thing", Category: tt.category, OpportunityScore: 100}
			sols := BuildSolutions(p, highDraw)
			if len(sols) != 2 {
				t.Fatalf("solutions = %d", len(sols))
			}
			for _, s := range sols {
				if s.MarketFit != tt.wantCap {
					t.Errorf("market fit = %d, want cap %d", s.MarketFit, tt.wantCap)
				}
				if s.ProblemID != "p" || !s.AIGenerated {
					t.Errorf("solution = %+v", s)
				}
			}
		})
	}
}
