package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"problem-radar/internal/models"
)

// LiveCache returns the unexpired cache row for niche, or nil on a miss.
func (s *Store) LiveCache(ctx context.Context, niche string, now time.Time) (*models.SearchCache, error) {
	var rows []models.SearchCache
	err := s.db.WithContext(ctx).
		Where("niche = ? AND expires_at > ?", niche, now).
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", niche, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ReplaceCache deletes every row for the niche and writes entry in its place.
func (s *Store) ReplaceCache(ctx context.Context, entry *models.SearchCache) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("niche = ?", entry.Niche).Delete(&models.SearchCache{}).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
	if err != nil {
		return fmt.Errorf("replace cache %s: %w", entry.Niche, err)
	}
	return nil
}
