// Package pipeline runs the TikTok and Reddit scans that turn social signals
// into problems, and the refresh job that keeps stored problems current.
package pipeline

import (
	"context"
	"time"

	"problem-radar/internal/fetcher"
	"problem-radar/internal/logger"
	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
	"problem-radar/internal/scorer"
	"problem-radar/internal/store"
)

// CacheTTL is how long a live TikTok result set is served from cache.
const CacheTTL = 24 * time.Hour

type VideoSearcher interface {
	SearchVideos(ctx context.Context, queries []string) ([]fetcher.Video, error)
}

type PostSource interface {
	Posts(ctx context.Context, subreddit, sortBy string, limit int) ([]fetcher.Post, error)
	Comments(ctx context.Context, post fetcher.Post) ([]fetcher.Comment, error)
}

type TrendChecker interface {
	Trending(ctx context.Context, niche string) (bool, error)
}

type Extractor interface {
	ExtractTikTokProblems(ctx context.Context, niche string, videos []fetcher.Video) scorer.Extraction
	ExtractRedditProblems(ctx context.Context, subreddit string, posts []fetcher.Post, comments map[string][]fetcher.Comment) scorer.Extraction
	GenerateHiddenInsight(ctx context.Context, p *models.Problem) (models.HiddenInsight, error)
}

type Service struct {
	store  *store.Store
	videos VideoSearcher
	posts  PostSource
	trends TrendChecker
	ai     Extractor
	log    *logger.Logger
	rand   metrics.Rand
	now    func() time.Time
}

type Option func(*Service)

func WithRand(r metrics.Rand) Option {
	return func(s *Service) { s.rand = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTrends enables the Google Trends signal on TikTok scans.
func WithTrends(t TrendChecker) Option {
	return func(s *Service) { s.trends = t }
}

func New(st *store.Store, videos VideoSearcher, posts PostSource, ai Extractor, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:  st,
		videos: videos,
		posts:  posts,
		ai:     ai,
		log:    log.With("component", "pipeline"),
		rand:   metrics.DefaultRand,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) recordScan(ctx context.Context, platform, channel string, items, found, viral int) {
	scan := &models.ChannelScan{
		ID:            models.ScanID(platform, channel),
		Platform:      platform,
		Channel:       channel,
		LastScannedAt: s.now().UTC(),
		ItemsAnalyzed: items,
		ProblemsFound: found,
		ViralCount:    viral,
	}
	if err := s.store.UpsertChannelScan(ctx, scan); err != nil {
		s.log.Warn("Failed to record channel scan", "scan_id", scan.ID, "error", err)
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
