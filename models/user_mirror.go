package models

import (
	"time"
)

// UserMirror is a local read-only copy of public profile data from the
// profile service, kept fresh by the profile sync worker. The leaderboard
// joins against it for display names.
type UserMirror struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string `gorm:"uniqueIndex;not null" json:"user_id"`
	Username  string `gorm:"index" json:"username"`
	AvatarURL string `gorm:"type:text" json:"avatar_url,omitempty"`

	// Timestamp reported by the profile service, not this table's row times
	ProfileUpdatedAt time.Time `json:"profile_updated_at"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
