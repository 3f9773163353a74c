package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
	"problem-radar/internal/scorer"
)

const (
	AnalysisAI       = "ai"
	AnalysisFallback = "fallback"
)

const (
	DefaultRedditSort  = "hot"
	DefaultRedditLimit = 25

	commentedPosts   = 5
	commentWorkers   = 3
	fallbackProblems = 3
	maxTitleRunes    = 120
)

type RedditRequest struct {
	Subreddit string
	Sort      string
	Limit     int
}

type RedditResponse struct {
	Success        bool                   `json:"success"`
	Data           []models.ProblemResult `json:"data"`
	PostsAnalyzed  int                    `json:"postsAnalyzed"`
	Subreddit      string                 `json:"subreddit"`
	AnalysisSource string                 `json:"analysisSource"`
	PersistedCount int                    `json:"persistedCount"`
}

// NormalizeSubreddit strips an "r/" or "/r/" prefix.
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	for _, prefix := range []string{"/r/", "r/"} {
		if strings.HasPrefix(lower, prefix) {
			return name[len(prefix):]
		}
	}
	return name
}

// ScanReddit reads a subreddit, extracts problems with the model (or derives
// them from the top posts when it cannot) and upserts every result by title.
func (s *Service) ScanReddit(ctx context.Context, req RedditRequest) (*RedditResponse, error) {
	sub := NormalizeSubreddit(req.Subreddit)
	sortBy := req.Sort
	if sortBy == "" {
		sortBy = DefaultRedditSort
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultRedditLimit
	}
	log := s.log.With("subreddit", sub)

	posts, err := s.posts.Posts(ctx, sub, sortBy, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch posts for r/%s: %w", sub, err)
	}
	log.Info("Fetched Reddit posts", "posts", len(posts), "sort", sortBy)

	comments := s.topComments(ctx, log, posts)

	resp := &RedditResponse{
		Success:       true,
		PostsAnalyzed: len(posts),
		Subreddit:     sub,
	}

	ext := s.ai.ExtractRedditProblems(ctx, sub, posts, comments)
	if ext.Kind == scorer.KindAI {
		resp.Data = s.redditResults(sub, posts, ext.Problems)
		resp.AnalysisSource = AnalysisAI
	}
	if len(resp.Data) == 0 {
		if ext.Err != nil {
			log.Warn("AI extraction failed, using fallback", "error", ext.Err)
		} else {
			log.Info("AI extraction returned no problems, using fallback")
		}
		resp.Data = s.redditFallback(sub, posts)
		resp.AnalysisSource = AnalysisFallback
	}

	resp.PersistedCount = s.upsertAll(ctx, log, resp.Data)
	s.recordScan(ctx, models.PlatformReddit, sub, len(posts), len(resp.Data), 0)

	log.Info("Reddit scan complete", "problems", len(resp.Data), "analysis", resp.AnalysisSource, "persisted", resp.PersistedCount)
	return resp, nil
}

// topComments fetches comments for the highest-scoring posts. A post whose
// comments cannot be read is left out of the map.
func (s *Service) topComments(ctx context.Context, log *logger.Logger, posts []fetcher.Post) map[string][]fetcher.Comment {
	var mu sync.Mutex
	comments := make(map[string][]fetcher.Comment)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(commentWorkers)
	for _, p := range fetcher.TopByScore(posts, commentedPosts) {
		g.Go(func() error {
			cs, err := s.posts.Comments(gctx, p)
			if err != nil {
				log.Warn("Skipping comments", "post_id", p.ID, "error", err)
				return nil
			}
			mu.Lock()
			comments[p.ID] = cs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return comments
}

// redditResults keeps the model's opportunity score as emitted.
func (s *Service) redditResults(sub string, posts []fetcher.Post, problems []scorer.ExtractedProblem) []models.ProblemResult {
	results := make([]models.ProblemResult, 0, len(problems))
	if len(problems) == 0 {
		return results
	}

	var upvotes, comments int64
	for _, p := range posts {
		upvotes += int64(p.Score)
		comments += int64(p.NumComments)
	}
	n := int64(len(problems))

	for _, ep := range problems {
		title := strings.TrimSpace(ep.Title)
		if title == "" {
			continue
		}
		category := ep.Category
		if category == "" {
			category = sub
		}
		results = append(results, models.ProblemResult{
			ID:               uuid.NewString(),
			Title:            truncateRunes(title, maxTitleRunes),
			Subtitle:         ep.Subtitle,
			Category:         category,
			Niche:            sub,
			Sentiment:        models.ParseSentiment(ep.Sentiment),
			PainPoints:       nonNil(ep.PainPoints),
			HiddenInsight:    ep.HiddenInsight,
			DemandVelocity:   ep.DemandVelocity,
			CompetitionGap:   ep.CompetitionGap,
			OpportunityScore: ep.OpportunityScore,
			Sources:          metrics.RedditSources(sub, upvotes/n, comments/n, s.rand),
			Platform:         models.PlatformReddit,
		})
	}
	return results
}

// redditFallback derives one problem from each of the top posts by score.
func (s *Service) redditFallback(sub string, posts []fetcher.Post) []models.ProblemResult {
	top := fetcher.TopByScore(posts, fallbackProblems)
	results := make([]models.ProblemResult, 0, len(top))
	for _, p := range top {
		opp := metrics.RedditFallbackScore(p.Score, p.NumComments)
		sentiment := models.SentimentRising
		if p.Score >= 1000 {
			sentiment = models.SentimentExploding
		}
		results = append(results, models.ProblemResult{
			ID:               uuid.NewString(),
			Title:            truncateRunes(strings.TrimSpace(p.Title), maxTitleRunes),
			Subtitle:         fmt.Sprintf("Discussed in r/%s", sub),
			Category:         sub,
			Niche:            sub,
			Sentiment:        sentiment,
			PainPoints:       fallbackPainPoints(sub, p),
			HiddenInsight:    redditFallbackInsight(sub, p),
			DemandVelocity:   metrics.DemandVelocityBounds.Clamp(40 + p.Score/50 + p.NumComments/5),
			CompetitionGap:   metrics.CompetitionGapBounds.Clamp(100 - opp/2),
			OpportunityScore: opp,
			Sources:          metrics.RedditSources(sub, int64(p.Score), int64(p.NumComments), s.rand),
			Platform:         models.PlatformReddit,
		})
	}
	return results
}

func fallbackPainPoints(sub string, p fetcher.Post) []string {
	first := firstSentence(p.SelfText)
	if first == "" {
		first = truncateRunes(strings.TrimSpace(p.Title), 200)
	}
	return []string{
		first,
		fmt.Sprintf("%d people upvoted this in r/%s", p.Score, sub),
		fmt.Sprintf("%d comments from people dealing with the same thing", p.NumComments),
	}
}

func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if idx := strings.IndexAny(text, ".!?\n"); idx > 0 {
		text = text[:idx+1]
	}
	return truncateRunes(strings.TrimSpace(text), 200)
}

func (s *Service) upsertAll(ctx context.Context, log *logger.Logger, results []models.ProblemResult) int {
	persisted := 0
	for _, r := range results {
		if err := s.store.UpsertProblemByTitle(ctx, r.ToProblem()); err != nil {
			log.Warn("Failed to upsert problem", "title", r.Title, "error", err)
			continue
		}
		persisted++
	}
	return persisted
}
