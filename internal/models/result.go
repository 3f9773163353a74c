package models

// ProblemResult is the API shape of a freshly extracted problem.
type ProblemResult struct {
	ID               string        `json:"id"`
	Title            string        `json:"title"`
	Subtitle         string        `json:"subtitle"`
	Category         string        `json:"category"`
	Niche            string        `json:"niche"`
	Sentiment        Sentiment     `json:"sentiment"`
	PainPoints       []string      `json:"painPoints"`
	HiddenInsight    HiddenInsight `json:"hiddenInsight"`
	DemandVelocity   int           `json:"demandVelocity"`
	CompetitionGap   int           `json:"competitionGap"`
	OpportunityScore int           `json:"opportunityScore"`
	Views            int64         `json:"views"`
	Shares           int64         `json:"shares"`
	Saves            int64         `json:"saves"`
	EngagementRate   float64       `json:"engagementRate"`
	IsViral          bool          `json:"isViral"`
	Sources          []Source      `json:"sources"`
	Platform         string        `json:"platform"`
}

// ToProblem converts a result into a row for the problems table.
func (r ProblemResult) ToProblem() *Problem {
	p := &Problem{
		ID:               r.ID,
		Title:            r.Title,
		Subtitle:         r.Subtitle,
		Description:      r.Subtitle,
		Category:         r.Category,
		Niche:            r.Niche,
		Sentiment:        r.Sentiment,
		OpportunityScore: r.OpportunityScore,
		DemandVelocity:   r.DemandVelocity,
		CompetitionGap:   r.CompetitionGap,
		Views:            r.Views,
		Shares:           r.Shares,
		Saves:            r.Saves,
		SlotsTotal:       10,
		IsViral:          r.IsViral,
		SourcePlatform:   r.Platform,
	}
	p.SetPainPoints(r.PainPoints)
	p.SetInsight(r.HiddenInsight)
	p.SetSources(r.Sources)
	return p
}

// VerificationResult is the computed outcome of a builder verification.
type VerificationResult struct {
	GitHub   GitHubCheck   `json:"github"`
	Payment  PaymentCheck  `json:"payment"`
	Supabase SupabaseCheck `json:"supabase"`
	Score    int           `json:"score"`
	Verified bool          `json:"verified"`
}

type GitHubCheck struct {
	Valid          bool   `json:"valid"`
	Username       string `json:"username,omitempty"`
	RepoCount      int    `json:"repoCount"`
	TotalStars     int    `json:"totalStars"`
	HasStarredRepo bool   `json:"hasStarredRepo"`
	Error          string `json:"error,omitempty"`
}

type PaymentCheck struct {
	Provided   bool   `json:"provided"`
	Provider   string `json:"provider,omitempty"`
	Valid      bool   `json:"valid"`
	IsLive     bool   `json:"isLive"`
	HasRevenue bool   `json:"hasRevenue"`
}

type SupabaseCheck struct {
	Provided bool   `json:"provided"`
	Valid    bool   `json:"valid"`
	Format   string `json:"format,omitempty"`
}
