package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"problem-radar/internal/models"
)

// ProblemExistsByTitle is the dedup check run before inserting a discovery.
func (s *Store) ProblemExistsByTitle(ctx context.Context, title string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Problem{}).Where("title = ?", title).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check problem title: %w", err)
	}
	return count > 0, nil
}

func (s *Store) CreateProblem(ctx context.Context, p *models.Problem) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create problem: %w", err)
	}
	return nil
}

// UpsertProblemByTitle inserts p or refreshes the signal columns of the row
// that already has its title.
func (s *Store) UpsertProblemByTitle(ctx context.Context, p *models.Problem) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "title"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subtitle", "description", "sentiment", "pain_points", "hidden_insight",
			"opportunity_score", "demand_velocity", "competition_gap", "is_viral",
			"views", "shares", "saves", "sources", "updated_at",
		}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert problem: %w", err)
	}
	return nil
}

type ProblemFilter struct {
	Niche     string
	Sentiment string
	MinScore  int
	Limit     int
}

func (s *Store) ListProblems(ctx context.Context, f ProblemFilter) ([]models.Problem, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).
		Where("opportunity_score >= ?", f.MinScore).
		Order("opportunity_score DESC").
		Order("created_at DESC").
		Limit(limit)
	if f.Niche != "" {
		q = q.Where("niche = ?", f.Niche)
	}
	if f.Sentiment != "" {
		q = q.Where("sentiment = ?", f.Sentiment)
	}

	var problems []models.Problem
	if err := q.Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	return problems, nil
}

func (s *Store) GetProblem(ctx context.Context, id string) (*models.Problem, error) {
	var p models.Problem
	err := s.db.WithContext(ctx).
		Preload("Solutions", func(db *gorm.DB) *gorm.DB { return db.Order("market_fit DESC") }).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ProblemsForRefresh returns one problem when id is set, otherwise all.
func (s *Store) ProblemsForRefresh(ctx context.Context, id string) ([]models.Problem, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if id != "" {
		q = q.Where("id = ?", id)
	}
	var problems []models.Problem
	if err := q.Find(&problems).Error; err != nil {
		return nil, fmt.Errorf("load problems: %w", err)
	}
	return problems, nil
}

// SaveRefreshedProblem writes the columns the refresh job recomputes.
func (s *Store) SaveRefreshedProblem(ctx context.Context, p *models.Problem) error {
	err := s.db.WithContext(ctx).Model(p).
		Select("demand_velocity", "competition_gap", "opportunity_score", "sources", "hidden_insight", "updated_at").
		Updates(p).Error
	if err != nil {
		return fmt.Errorf("save problem %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) CountAISolutions(ctx context.Context, problemID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Solution{}).
		Where("problem_id = ? AND ai_generated = ?", problemID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count solutions: %w", err)
	}
	return count, nil
}

func (s *Store) CreateSolutions(ctx context.Context, solutions []models.Solution) error {
	if len(solutions) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&solutions).Error; err != nil {
		return fmt.Errorf("create solutions: %w", err)
	}
	return nil
}

type PlatformCount struct {
	Platform string `json:"platform"`
	Count    int64  `json:"count"`
}

type Stats struct {
	Total           int64           `json:"total"`
	Viral           int64           `json:"viral"`
	AvgOpportunity  float64         `json:"avg_opportunity"`
	Platforms       []PlatformCount `json:"platforms"`
	ChannelsScanned int64           `json:"channels_scanned"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	db := s.db.WithContext(ctx)

	if err := db.Model(&models.Problem{}).Count(&st.Total).Error; err != nil {
		return st, fmt.Errorf("count problems: %w", err)
	}
	if err := db.Model(&models.Problem{}).Where("is_viral = ?", true).Count(&st.Viral).Error; err != nil {
		return st, fmt.Errorf("count viral: %w", err)
	}
	var avg *float64
	if err := db.Model(&models.Problem{}).Select("AVG(opportunity_score)").Scan(&avg).Error; err != nil {
		return st, fmt.Errorf("average opportunity: %w", err)
	}
	if avg != nil {
		st.AvgOpportunity = *avg
	}
	if err := db.Model(&models.Problem{}).
		Select("source_platform AS platform, COUNT(*) AS count").
		Group("source_platform").
		Scan(&st.Platforms).Error; err != nil {
		return st, fmt.Errorf("platform counts: %w", err)
	}
	if err := db.Model(&models.ChannelScan{}).Count(&st.ChannelsScanned).Error; err != nil {
		return st, fmt.Errorf("count scans: %w", err)
	}
	return st, nil
}
