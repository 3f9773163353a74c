package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"problem-radar/internal/models"
)

// UpsertChannelScan records a scan, bumping scan_count on repeat scans.
func (s *Store) UpsertChannelScan(ctx context.Context, scan *models.ChannelScan) error {
	if scan.ScanCount == 0 {
		scan.ScanCount = 1
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"last_scanned_at": scan.LastScannedAt,
			"items_analyzed":  scan.ItemsAnalyzed,
			"problems_found":  scan.ProblemsFound,
			"viral_count":     scan.ViralCount,
			"scan_count":      gorm.Expr("channel_scans.scan_count + 1"),
			"updated_at":      gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(scan).Error
	if err != nil {
		return fmt.Errorf("upsert channel scan %s: %w", scan.ID, err)
	}
	return nil
}

func (s *Store) GetChannelScan(ctx context.Context, id string) (*models.ChannelScan, error) {
	var scan models.ChannelScan
	if err := s.db.WithContext(ctx).First(&scan, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &scan, nil
}
