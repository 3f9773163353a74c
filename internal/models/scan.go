package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SearchCache holds the last live result set for a niche until ExpiresAt.
type SearchCache struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	Niche          string         `gorm:"index;not null" json:"niche"`
	Results        datatypes.JSON `json:"results"`
	VideosAnalyzed int            `json:"videos_analyzed"`
	Queries        datatypes.JSON `json:"queries"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `gorm:"index" json:"expires_at"`
}

func (SearchCache) TableName() string { return "search_cache" }

func (c *SearchCache) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ChannelScan tracks the last scan of a niche or subreddit.
type ChannelScan struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Platform      string    `gorm:"index" json:"platform"`
	Channel       string    `json:"channel"`
	LastScannedAt time.Time `json:"last_scanned_at"`
	ItemsAnalyzed int       `json:"items_analyzed"`
	ProblemsFound int       `json:"problems_found"`
	ViralCount    int       `json:"viral_count"`
	ScanCount     int       `json:"scan_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ScanID derives the channel scan key, e.g. "tiktok:career".
func ScanID(platform, channel string) string {
	return platform + ":" + channel
}

// BuilderVerification is the latest verification attempt for a user.
type BuilderVerification struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	UserID     string         `gorm:"uniqueIndex;not null" json:"user_id"`
	GitHub     datatypes.JSON `gorm:"column:github" json:"github"`
	Payment    datatypes.JSON `json:"payment"`
	Supabase   datatypes.JSON `json:"supabase"`
	Score      int            `json:"score"`
	Verified   bool           `json:"verified"`
	VerifiedAt time.Time      `json:"verified_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (v *BuilderVerification) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// All lists every model for AutoMigrate in tests and local development.
func All() []any {
	return []any{&Problem{}, &Solution{}, &SearchCache{}, &ChannelScan{}, &BuilderVerification{}}
}
