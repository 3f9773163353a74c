package metrics

import (
	"math"

	"problem-radar/internal/models"
)

const (
	SourceTikTok       = "tiktok"
	SourceGoogleTrends = "google_trends"
	SourceReddit       = "reddit"
)

// Reddit-only change is drifted within RedditChangeBand and kept in
// [0, MaxRedditChange].
const (
	RedditChangeBand = 0.05
	MaxRedditChange  = 100.0
)

func clampChange(v float64) float64 {
	return math.Max(0, math.Min(MaxRedditChange, v))
}

func trendFor(change float64) string {
	switch {
	case change > 5:
		return "up"
	case change < -5:
		return "down"
	default:
		return "flat"
	}
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// StandardSources builds the three-entry TikTok / Google Trends / Reddit array.
func StandardSources(views, shares int64, demandVelocity int, trending bool, r Rand) []models.Source {
	tiktokChange := round1(float64(demandVelocity) / 2 * (0.8 + r.Float64()*0.4))
	interest := Clamp(40+demandVelocity/4+r.Intn(20), 0, 100)
	if trending {
		interest = Clamp(interest+15, 0, 100)
	}
	trendsChange := round1(float64(demandVelocity) / 3 * (0.7 + r.Float64()*0.6))
	mentions := shares/50 + 1 + int64(r.Intn(50))
	redditChange := round1(float64(demandVelocity) / 4 * (0.5 + r.Float64()))

	return []models.Source{
		{Source: SourceTikTok, Label: "TikTok", Metric: "views", Value: views, Change: tiktokChange, Trend: trendFor(tiktokChange)},
		{Source: SourceGoogleTrends, Label: "Google Trends", Metric: "search_interest", Value: int64(interest), Change: trendsChange, Trend: trendFor(trendsChange), Trending: trending},
		{Source: SourceReddit, Label: "Reddit", Metric: "mentions", Value: mentions, Change: redditChange, Trend: trendFor(redditChange)},
	}
}

// RedditSources builds the single-entry shape used by Reddit-discovered problems.
func RedditSources(subreddit string, upvotes, comments int64, r Rand) []models.Source {
	change := clampChange(round1(float64(comments)/10*(0.8+r.Float64()*0.4) + r.Float64()*5))
	return redditSource(subreddit, upvotes, change)
}

func redditSource(subreddit string, upvotes int64, change float64) []models.Source {
	return []models.Source{{
		Source:    SourceReddit,
		Name:      SourceReddit,
		Label:     "r/" + subreddit,
		Metric:    "upvotes",
		Value:     upvotes,
		Change:    change,
		Trend:     trendFor(change),
		Subreddit: subreddit,
	}}
}

// IsRedditOnly reports whether sources use the Reddit-only shape. Both the
// name marker and the single reddit entry heuristic are honoured.
func IsRedditOnly(sources []models.Source) bool {
	for _, s := range sources {
		if s.Name == SourceReddit {
			return true
		}
	}
	return len(sources) == 1 && sources[0].Source == SourceReddit
}

// RegenerateSources rebuilds the sources array while keeping its shape.
func RegenerateSources(p *models.Problem, r Rand) []models.Source {
	existing := p.SourceList()
	if IsRedditOnly(existing) {
		prev := existing[0]
		for _, s := range existing {
			if s.Name == SourceReddit {
				prev = s
				break
			}
		}
		sub := prev.Subreddit
		if sub == "" {
			sub = p.Niche
		}
		upvotes := int64(Jitter(int(prev.Value), DemandVelocityBand, Bounds{Min: 0, Max: math.MaxInt32}, r))
		change := clampChange(round1(prev.Change * (1 + (r.Float64()*2-1)*RedditChangeBand)))
		return redditSource(sub, upvotes, change)
	}

	trending := false
	for _, s := range existing {
		if s.Source == SourceGoogleTrends && s.Trending {
			trending = true
		}
	}
	return StandardSources(p.Views, p.Shares, p.DemandVelocity, trending, r)
}
