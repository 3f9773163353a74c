package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
	"problem-radar/internal/scorer"
)

const (
	SourceLive  = "live"
	SourceCache = "cache"
)

const queriesPerScan = 2

type TikTokRequest struct {
	Niche        string
	ForceRefresh bool
}

type TikTokResponse struct {
	Success        bool                   `json:"success"`
	Data           []models.ProblemResult `json:"data"`
	VideosAnalyzed int                    `json:"videosAnalyzed"`
	Queries        []string               `json:"queries"`
	Source         string                 `json:"source"`
	ViralCount     int                    `json:"viralCount"`
	PersistedCount int                    `json:"persistedCount"`
	Message        string                 `json:"message,omitempty"`
	CachedAt       *time.Time             `json:"cachedAt,omitempty"`
}

// ScanTikTok serves niche from cache when possible, otherwise scrapes videos,
// extracts problems, caches the result set and stores the viral problems.
func (s *Service) ScanTikTok(ctx context.Context, req TikTokRequest) (*TikTokResponse, error) {
	niche := strings.ToLower(strings.TrimSpace(req.Niche))
	log := s.log.With("niche", niche)

	if !req.ForceRefresh {
		resp, err := s.fromCache(ctx, niche)
		if err != nil {
			log.Warn("Cache read failed, running live scan", "error", err)
		} else if resp != nil {
			log.Debug("Serving TikTok scan from cache", "problems", len(resp.Data))
			return resp, nil
		}
	}

	queries := SampleQueries(niche, queriesPerScan, s.rand)
	videos, err := s.videos.SearchVideos(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("search videos for %s: %w", niche, err)
	}
	log.Info("Fetched TikTok videos", "videos", len(videos), "queries", queries)

	resp := &TikTokResponse{
		Success:        true,
		Data:           []models.ProblemResult{},
		VideosAnalyzed: len(videos),
		Queries:        queries,
		Source:         SourceLive,
	}

	ext := s.ai.ExtractTikTokProblems(ctx, niche, videos)
	if ext.Kind == scorer.KindFallback {
		log.Warn("AI extraction failed", "error", ext.Err)
		resp.Message = "AI extraction failed, so no problems could be derived from the fetched videos. Try again later."
		s.recordScan(ctx, models.PlatformTikTok, niche, len(videos), 0, 0)
		return resp, nil
	}

	resp.Data = s.tiktokResults(ctx, niche, videos, ext.Problems)
	for _, r := range resp.Data {
		if r.IsViral {
			resp.ViralCount++
		}
	}

	s.writeCache(ctx, log, niche, resp)
	resp.PersistedCount = s.persistViral(ctx, log, resp.Data)
	s.recordScan(ctx, models.PlatformTikTok, niche, len(videos), len(resp.Data), resp.ViralCount)

	log.Info("TikTok scan complete", "problems", len(resp.Data), "viral", resp.ViralCount, "persisted", resp.PersistedCount)
	return resp, nil
}

type videoTotals struct {
	views, likes, comments, shares, saves int64
}

func sumVideos(videos []fetcher.Video) videoTotals {
	var t videoTotals
	for _, v := range videos {
		t.views += v.PlayCount
		t.likes += v.DiggCount
		t.comments += v.CommentCount
		t.shares += v.ShareCount
		t.saves += v.CollectCount
	}
	return t
}

func (s *Service) tiktokResults(ctx context.Context, niche string, videos []fetcher.Video, problems []scorer.ExtractedProblem) []models.ProblemResult {
	kept := make([]scorer.ExtractedProblem, 0, len(problems))
	for _, ep := range problems {
		ep.Title = strings.TrimSpace(ep.Title)
		if ep.Title != "" {
			kept = append(kept, ep)
		}
	}
	results := make([]models.ProblemResult, 0, len(kept))
	if len(kept) == 0 {
		return results
	}

	totals := sumVideos(videos)
	n := int64(len(kept))
	views, shares, saves := totals.views/n, totals.shares/n, totals.saves/n
	engagement := metrics.EngagementRate(totals.views, totals.likes, totals.comments, totals.shares)
	viral := metrics.IsViral(views, engagement)
	trending := s.isTrending(ctx, niche)

	for _, ep := range kept {
		title := ep.Title
		dv := metrics.DemandVelocityBounds.Clamp(ep.DemandVelocity)
		cg := metrics.CompetitionGapBounds.Clamp(ep.CompetitionGap)
		category := ep.Category
		if category == "" {
			category = niche
		}
		results = append(results, models.ProblemResult{
			ID:               uuid.NewString(),
			Title:            title,
			Subtitle:         ep.Subtitle,
			Category:         category,
			Niche:            niche,
			Sentiment:        models.ParseSentiment(ep.Sentiment),
			PainPoints:       nonNil(ep.PainPoints),
			HiddenInsight:    ep.HiddenInsight,
			DemandVelocity:   dv,
			CompetitionGap:   cg,
			OpportunityScore: metrics.OpportunityScore(dv, cg),
			Views:            views,
			Shares:           shares,
			Saves:            saves,
			EngagementRate:   engagement,
			IsViral:          viral,
			Sources:          metrics.StandardSources(views, shares, dv, trending, s.rand),
			Platform:         models.PlatformTikTok,
		})
	}
	return results
}

func (s *Service) isTrending(ctx context.Context, niche string) bool {
	if s.trends == nil {
		return false
	}
	trending, err := s.trends.Trending(ctx, niche)
	if err != nil {
		s.log.Debug("Google Trends lookup failed", "niche", niche, "error", err)
		return false
	}
	return trending
}

func (s *Service) fromCache(ctx context.Context, niche string) (*TikTokResponse, error) {
	entry, err := s.store.LiveCache(ctx, niche, s.now().UTC())
	if err != nil || entry == nil {
		return nil, err
	}

	resp := &TikTokResponse{
		Success:        true,
		Data:           []models.ProblemResult{},
		VideosAnalyzed: entry.VideosAnalyzed,
		Queries:        []string{},
		Source:         SourceCache,
	}
	if err := json.Unmarshal(entry.Results, &resp.Data); err != nil {
		return nil, fmt.Errorf("decode cached results: %w", err)
	}
	if len(entry.Queries) > 0 {
		if err := json.Unmarshal(entry.Queries, &resp.Queries); err != nil {
			return nil, fmt.Errorf("decode cached queries: %w", err)
		}
	}
	for _, r := range resp.Data {
		if r.IsViral {
			resp.ViralCount++
		}
	}
	created := entry.CreatedAt
	resp.CachedAt = &created
	return resp, nil
}

func (s *Service) writeCache(ctx context.Context, log *logger.Logger, niche string, resp *TikTokResponse) {
	results, err := json.Marshal(resp.Data)
	if err != nil {
		log.Error("Failed to encode results for cache", "error", err)
		return
	}
	queries, err := json.Marshal(resp.Queries)
	if err != nil {
		log.Error("Failed to encode queries for cache", "error", err)
		return
	}

	now := s.now().UTC()
	entry := &models.SearchCache{
		Niche:          niche,
		Results:        results,
		VideosAnalyzed: resp.VideosAnalyzed,
		Queries:        queries,
		CreatedAt:      now,
		ExpiresAt:      now.Add(CacheTTL),
	}
	if err := s.store.ReplaceCache(ctx, entry); err != nil {
		log.Error("Failed to write search cache", "error", err)
	}
}

// persistViral inserts viral results whose title is not stored yet.
func (s *Service) persistViral(ctx context.Context, log *logger.Logger, results []models.ProblemResult) int {
	persisted := 0
	for _, r := range results {
		if !r.IsViral {
			continue
		}
		exists, err := s.store.ProblemExistsByTitle(ctx, r.Title)
		if err != nil {
			log.Warn("Dedup check failed", "title", r.Title, "error", err)
			continue
		}
		if exists {
			log.Debug("Problem already stored", "title", r.Title)
			continue
		}
		if err := s.store.CreateProblem(ctx, r.ToProblem()); err != nil {
			log.Warn("Failed to store problem", "title", r.Title, "error", err)
			continue
		}
		persisted++
	}
	return persisted
}
