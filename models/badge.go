package models

import (
	"time"
)

// BadgeType: static catalog entry (seeded at startup, extendable via admin API)
type BadgeType struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	Code        string           `gorm:"uniqueIndex;not null" json:"code"` // e.g., "FIRST_LESSON", "WEEK_STREAK"
	Name        string           `gorm:"not null" json:"name"`             // "First Steps", "Regular Visitor"
	Description string           `json:"description"`
	IconURL     string           `gorm:"type:text" json:"icon_url"`                       // R2 URL to SVG/png
	Rarity      string           `gorm:"type:varchar(16);default:'common'" json:"rarity"` // common, rare, epic, legendary
	Threshold   map[string]int64 `gorm:"serializer:json" json:"threshold,omitempty"`      // e.g., {"lessons_completed": 10}
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance. The composite unique index makes unlocks
// insert-once — a second unlock for the same (user, badge) pair is a no-op.
type UserBadge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeTypeID string    `gorm:"uniqueIndex:idx_user_badge;not null" json:"badge_type_id"`
	AwardedAt   time.Time `gorm:"autoCreateTime" json:"awarded_at"`
	Metadata    string    `gorm:"type:text" json:"metadata,omitempty"` // e.g., {"lesson_id": "..."}
}

// BadgeCatalog holds the built-in badge definitions, keyed off UserProgress
// counters. Threshold key "event" means the badge is granted on any
// qualifying event (e.g., signup).
var BadgeCatalog = []BadgeType{
	{
		Code:        "WELCOME",
		Name:        "Welcome Aboard!",
		Description: "Joined the Investor Hub",
		Rarity:      "common",
		Threshold:   map[string]int64{"event": 1},
	},
	{
		Code:        "FIRST_LESSON",
		Name:        "First Steps",
		Description: "Completed your first lesson",
		Rarity:      "common",
		Threshold:   map[string]int64{"lessons_completed": 1},
	},
	{
		Code:        "DEDICATED_LEARNER",
		Name:        "Dedicated Learner",
		Description: "Completed 10 lessons",
		Rarity:      "rare",
		Threshold:   map[string]int64{"lessons_completed": 10},
	},
	{
		Code:        "FIRST_CHALLENGE",
		Name:        "Challenge Accepted",
		Description: "Completed your first challenge",
		Rarity:      "common",
		Threshold:   map[string]int64{"challenges_completed": 1},
	},
	{
		Code:        "WEEK_STREAK",
		Name:        "Regular Visitor",
		Description: "Logged in 7 days in a row",
		Rarity:      "rare",
		Threshold:   map[string]int64{"login_streak": 7},
	},
	{
		Code:        "STUDY_HABIT",
		Name:        "Study Habit",
		Description: "Learned 7 days in a row",
		Rarity:      "rare",
		Threshold:   map[string]int64{"learning_streak": 7},
	},
	{
		Code:        "POINT_COLLECTOR",
		Name:        "Point Collector",
		Description: "Earned 1,000 points",
		Rarity:      "epic",
		Threshold:   map[string]int64{"points": 1000},
	},
	{
		Code:        "RISING_INVESTOR",
		Name:        "Rising Investor",
		Description: "Reached level 10",
		Rarity:      "epic",
		Threshold:   map[string]int64{"level": 10},
	},
}
