package models

import (
	"time"
)

// PointLedger is the append-only audit trail of every point award.
// Period leaderboards (weekly/monthly) are computed from these rows.
type PointLedger struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Points    int64     `gorm:"not null" json:"points"`
	Reason    string    `gorm:"size:255" json:"reason"`
	EventType string    `gorm:"size:64;index" json:"event_type"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
