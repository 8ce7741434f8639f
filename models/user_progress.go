package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress tracks gamified progression for each user (denormalized for performance)
type UserProgress struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // links to profile service

	// Core progression
	Points     int64 `json:"points" gorm:"default:0"`
	Experience int64 `json:"experience" gorm:"default:0"`
	Level      int   `json:"level" gorm:"default:1"`

	// Streaks — continuity is UTC calendar-day based
	LoginStreak           int        `json:"login_streak" gorm:"default:0"`
	LearningStreak        int        `json:"learning_streak" gorm:"default:0"`
	LongestLoginStreak    int        `json:"longest_login_streak" gorm:"default:0"`
	LongestLearningStreak int        `json:"longest_learning_streak" gorm:"default:0"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	LastLearningAt        *time.Time `json:"last_learning_at,omitempty"`

	// Activity counters
	LessonsCompleted    int64 `json:"lessons_completed" gorm:"default:0"`
	ChallengesCompleted int64 `json:"challenges_completed" gorm:"default:0"`
	TotalLogins         int64 `json:"total_logins" gorm:"default:0"`

	// Milestones
	LastLevelUpAt *time.Time `json:"last_level_up_at,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
