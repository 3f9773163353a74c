package pipeline

import (
	"context"
	"fmt"
	"time"

	"problem-radar/internal/metrics"
	"problem-radar/internal/models"
	"problem-radar/internal/store"
)

type RefreshResult struct {
	Success            bool `json:"success"`
	Updated            int  `json:"updated"`
	Failed             int  `json:"failed"`
	Total              int  `json:"total"`
	InsightsBackfilled int  `json:"insightsBackfilled"`
	SolutionsCreated   int  `json:"solutionsCreated"`
}

// Refresh recomputes metrics and sources for one problem (problemID set) or
// all of them, backfilling insights and solutions. A failing problem is
// logged and counted; the batch continues.
func (s *Service) Refresh(ctx context.Context, problemID string) (*RefreshResult, error) {
	problems, err := s.store.ProblemsForRefresh(ctx, problemID)
	if err != nil {
		return nil, err
	}
	if problemID != "" && len(problems) == 0 {
		return nil, store.ErrNotFound
	}

	res := &RefreshResult{Success: true, Total: len(problems)}
	for i := range problems {
		p := &problems[i]
		insight, solutions, err := s.refreshOne(ctx, p)
		if err != nil {
			s.log.Error("Failed to refresh problem", "problem_id", p.ID, "error", err)
			res.Failed++
			continue
		}
		res.Updated++
		res.SolutionsCreated += solutions
		if insight {
			res.InsightsBackfilled++
		}
	}

	s.log.Info("Refresh complete", "total", res.Total, "updated", res.Updated, "failed", res.Failed)
	return res, nil
}

func (s *Service) refreshOne(ctx context.Context, p *models.Problem) (bool, int, error) {
	p.DemandVelocity = metrics.RefreshDemandVelocity(p.DemandVelocity, p.Views, p.Shares, p.OpportunityScore, s.rand)
	p.CompetitionGap = metrics.RefreshCompetitionGap(p.CompetitionGap, p.OpportunityScore, s.rand)
	p.OpportunityScore = metrics.RefreshOpportunity(p.OpportunityScore, p.DemandVelocity, p.CompetitionGap, s.rand)
	p.SetSources(metrics.RegenerateSources(p, s.rand))

	backfilled := false
	if _, ok := p.Insight(); !ok {
		hi, err := s.ai.GenerateHiddenInsight(ctx, p)
		if err != nil || hi.SurfaceAsk == "" {
			s.log.Debug("Hidden insight generation failed, using template", "problem_id", p.ID, "error", err)
			hi = TemplateInsight(p)
		}
		p.SetInsight(hi)
		backfilled = true
	}

	if err := s.store.SaveRefreshedProblem(ctx, p); err != nil {
		return false, 0, err
	}

	count, err := s.store.CountAISolutions(ctx, p.ID)
	if err != nil {
		return backfilled, 0, err
	}
	if count > 0 {
		return backfilled, 0, nil
	}
	solutions := BuildSolutions(p, s.rand)
	if err := s.store.CreateSolutions(ctx, solutions); err != nil {
		return backfilled, 0, fmt.Errorf("backfill solutions: %w", err)
	}
	return backfilled, len(solutions), nil
}

// RunPeriodicRefresh refreshes every problem now and then on every tick
// until ctx is cancelled.
func (s *Service) RunPeriodicRefresh(ctx context.Context, interval time.Duration) {
	s.runScheduledRefresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runScheduledRefresh(ctx)
		}
	}
}

func (s *Service) runScheduledRefresh(ctx context.Context) {
	s.log.Info("Starting scheduled refresh")
	if _, err := s.Refresh(ctx, ""); err != nil {
		s.log.Error("Scheduled refresh failed", "error", err)
	}
}
