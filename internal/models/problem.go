package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Sentiment string

const (
	SentimentExploding Sentiment = "exploding"
	SentimentRising    Sentiment = "rising"
	SentimentStable    Sentiment = "stable"
	SentimentDeclining Sentiment = "declining"
)

// ParseSentiment maps free-form AI output onto the enum, defaulting to rising.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentExploding, SentimentRising, SentimentStable, SentimentDeclining:
		return Sentiment(s)
	default:
		return SentimentRising
	}
}

// HiddenInsight is the surface ask / real problem / hidden signal triple.
type HiddenInsight struct {
	SurfaceAsk   string `json:"surfaceAsk"`
	RealProblem  string `json:"realProblem"`
	HiddenSignal string `json:"hiddenSignal"`
}

// Source is one per-platform trend signal. Reddit-only problems carry a single
// entry marked with Name "reddit"; the standard shape uses Source only.
type Source struct {
	Source    string  `json:"source,omitempty"`
	Name      string  `json:"name,omitempty"`
	Label     string  `json:"label,omitempty"`
	Metric    string  `json:"metric,omitempty"`
	Value     int64   `json:"value"`
	Change    float64 `json:"change"`
	Trend     string  `json:"trend,omitempty"`
	Trending  bool    `json:"trending,omitempty"`
	Subreddit string  `json:"subreddit,omitempty"`
}

const (
	PlatformTikTok = "tiktok"
	PlatformReddit = "reddit"
)

type Problem struct {
	ID               string         `gorm:"primaryKey" json:"id"`
	Title            string         `gorm:"uniqueIndex;not null" json:"title"`
	Subtitle         string         `json:"subtitle"`
	Description      string         `json:"description"`
	Category         string         `gorm:"index" json:"category"`
	Niche            string         `gorm:"index" json:"niche"`
	Sentiment        Sentiment      `json:"sentiment"`
	PainPoints       datatypes.JSON `json:"pain_points"`
	HiddenInsight    datatypes.JSON `json:"hidden_insight"`
	OpportunityScore int            `json:"opportunity_score"`
	DemandVelocity   int            `json:"demand_velocity"`
	CompetitionGap   int            `json:"competition_gap"`
	Views            int64          `json:"views"`
	Shares           int64          `json:"shares"`
	Saves            int64          `json:"saves"`
	SlotsFilled      int            `json:"slots_filled"`
	SlotsTotal       int            `gorm:"default:10" json:"slots_total"`
	IsViral          bool           `json:"is_viral"`
	Sources          datatypes.JSON `json:"sources"`
	SourcePlatform   string         `json:"source_platform"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	Solutions []Solution `gorm:"foreignKey:ProblemID" json:"solutions,omitempty"`
}

func (p *Problem) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *Problem) PainPointList() []string {
	var out []string
	if len(p.PainPoints) == 0 {
		return out
	}
	_ = json.Unmarshal(p.PainPoints, &out)
	return out
}

func (p *Problem) SetPainPoints(points []string) {
	if points == nil {
		points = []string{}
	}
	p.PainPoints = mustJSON(points)
}

// Insight decodes the hidden insight. ok is false when the column is empty,
// malformed, or has no surface ask.
func (p *Problem) Insight() (HiddenInsight, bool) {
	var hi HiddenInsight
	if len(p.HiddenInsight) == 0 {
		return hi, false
	}
	if err := json.Unmarshal(p.HiddenInsight, &hi); err != nil {
		return HiddenInsight{}, false
	}
	return hi, hi.SurfaceAsk != ""
}

func (p *Problem) SetInsight(hi HiddenInsight) {
	p.HiddenInsight = mustJSON(hi)
}

func (p *Problem) SourceList() []Source {
	var out []Source
	if len(p.Sources) == 0 {
		return out
	}
	_ = json.Unmarshal(p.Sources, &out)
	return out
}

func (p *Problem) SetSources(sources []Source) {
	if sources == nil {
		sources = []Source{}
	}
	p.Sources = mustJSON(sources)
}

// Solution is an AI-generated build suggestion attached to a problem.
type Solution struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	ProblemID   string         `gorm:"index;not null" json:"problem_id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Approach    string         `json:"approach"`
	TechStack   datatypes.JSON `json:"tech_stack"`
	MarketFit   int            `json:"market_fit"`
	AIGenerated bool           `gorm:"column:ai_generated;index" json:"ai_generated"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (s *Solution) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (s *Solution) SetTechStack(stack []string) {
	s.TechStack = mustJSON(stack)
}

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}
