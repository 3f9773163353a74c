package ratelimit

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// PostgresStore delegates to the check_rate_limit SQL function, which locks
// the counter row for the duration of the check.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rateLimitRow struct {
	Allowed    bool
	Current    int
	Limit      int  `gorm:"column:limit"`
	Remaining  *int
	RetryAfter *int `gorm:"column:retry_after"`
}

func (s *PostgresStore) CheckAndIncrement(ctx context.Context, identifier, endpoint string, cfg Config) (Result, error) {
	var row rateLimitRow
	err := s.db.WithContext(ctx).
		Raw(`SELECT allowed, "current", "limit", remaining, retry_after FROM check_rate_limit(?, ?, ?, ?)`,
			identifier, endpoint, cfg.MaxRequests, cfg.WindowMinutes).
		Scan(&row).Error
	if err != nil {
		return Result{}, fmt.Errorf("check_rate_limit: %w", err)
	}
	return Result{
		Allowed:    row.Allowed,
		Current:    row.Current,
		Limit:      row.Limit,
		Remaining:  row.Remaining,
		RetryAfter: row.RetryAfter,
	}, nil
}
