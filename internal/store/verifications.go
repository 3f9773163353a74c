package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"problem-radar/internal/models"
)

// UpsertVerification replaces the user's previous verification.
func (s *Store) UpsertVerification(ctx context.Context, v *models.BuilderVerification) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"github", "payment", "supabase", "score", "verified", "verified_at", "updated_at"}),
	}).Create(v).Error
	if err != nil {
		return fmt.Errorf("upsert verification: %w", err)
	}
	return nil
}

func (s *Store) GetVerification(ctx context.Context, userID string) (*models.BuilderVerification, error) {
	var v models.BuilderVerification
	if err := s.db.WithContext(ctx).First(&v, "user_id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}
