// Package metrics holds the scoring formulas shared by the scan pipelines and
// the refresh job. Randomness is injected so callers and tests control it.
package metrics

import (
	"math"
	"math/rand/v2"
)

// Rand is the subset of *math/rand.Rand the formulas need.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) Intn(n int) int   { return rand.IntN(n) }

// DefaultRand draws from the goroutine-safe math/rand/v2 source.
var DefaultRand Rand = globalRand{}

// Bounds is an inclusive [Min, Max] clamp range.
type Bounds struct {
	Min, Max int
}

func (b Bounds) Clamp(v int) int {
	return Clamp(v, b.Min, b.Max)
}

var (
	DemandVelocityBounds      = Bounds{Min: 20, Max: 200}
	FreshDemandVelocityBounds = Bounds{Min: 30, Max: 200}
	CompetitionGapBounds      = Bounds{Min: 30, Max: 95}
	FreshCompetitionGapBounds = Bounds{Min: 40, Max: 95}
	OpportunityBounds         = Bounds{Min: 0, Max: 100}
)

// Jitter bands applied when a metric is recomputed from its previous value.
const (
	DemandVelocityBand = 0.05
	CompetitionGapBand = 0.03
	OpportunityBand    = 0.03
)

const (
	ViralViewThreshold       int64   = 100_000
	ViralEngagementThreshold float64 = 3.0
)

func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(f float64) int {
	return int(math.Round(f))
}

// OpportunityScore weights demand velocity 60% and competition gap 40%.
func OpportunityScore(demandVelocity, competitionGap int) int {
	return OpportunityBounds.Clamp(round(float64(demandVelocity)*0.6 + float64(competitionGap)*0.4))
}

// EngagementRate returns (likes+comments+shares)/views as a percentage.
func EngagementRate(views, likes, comments, shares int64) float64 {
	if views <= 0 {
		return 0
	}
	rate := float64(likes+comments+shares) / float64(views) * 100
	return math.Round(rate*100) / 100
}

// IsViral requires both the view and engagement thresholds.
func IsViral(views int64, engagementRate float64) bool {
	return views >= ViralViewThreshold && engagementRate >= ViralEngagementThreshold
}

// Jitter multiplies value by a factor drawn from [1-band, 1+band) and clamps.
func Jitter(value int, band float64, b Bounds, r Rand) int {
	factor := 1 + (r.Float64()*2-1)*band
	return b.Clamp(round(float64(value) * factor))
}

// RefreshDemandVelocity drifts a known value or derives a fresh one from
// log-scaled views, a share bonus and the opportunity score.
func RefreshDemandVelocity(prev int, views, shares int64, opportunity int, r Rand) int {
	if prev > 0 {
		return Jitter(prev, DemandVelocityBand, DemandVelocityBounds, r)
	}
	shareBonus := math.Min(30, float64(shares)/1000)
	fresh := math.Log10(float64(views)+1)*20 + shareBonus + float64(opportunity)*0.3 + r.Float64()*20
	return FreshDemandVelocityBounds.Clamp(round(fresh))
}

// RefreshCompetitionGap drifts a known value or derives a fresh one that
// shrinks as the opportunity score grows.
func RefreshCompetitionGap(prev, opportunity int, r Rand) int {
	if prev > 0 {
		return Jitter(prev, CompetitionGapBand, CompetitionGapBounds, r)
	}
	fresh := 100 - float64(opportunity)*0.4 + (r.Float64()*20 - 10)
	return FreshCompetitionGapBounds.Clamp(round(fresh))
}

// RefreshOpportunity drifts a known score; a zero score is derived from the
// other two metrics instead.
func RefreshOpportunity(prev, demandVelocity, competitionGap int, r Rand) int {
	if prev > 0 {
		return Jitter(prev, OpportunityBand, OpportunityBounds, r)
	}
	return OpportunityScore(demandVelocity, competitionGap)
}

// RedditFallbackScore scores a raw post when AI extraction is unavailable.
func RedditFallbackScore(score, comments int) int {
	v := float64(score)/200*40 + float64(comments)/30*30 + 55
	return round(math.Min(95, math.Max(55, v)))
}
