// Package storetest opens throwaway sqlite databases for package tests.
package storetest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"problem-radar/internal/models"
	"problem-radar/internal/store"
)

// Open returns a migrated in-memory database bound to a single connection.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// New returns a Store over a fresh database.
func New(t *testing.T) (*store.Store, *gorm.DB) {
	t.Helper()
	db := Open(t)
	return store.New(db), db
}
