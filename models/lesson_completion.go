package models

import (
	"time"
)

// LessonCompletion records that a user finished a lesson. Insert-once:
// the composite unique index turns duplicate completions into no-ops,
// which is what guards the "first lesson" rewards against double-granting.
type LessonCompletion struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"uniqueIndex:idx_lesson_completion;not null" json:"user_id"`
	LessonID    string    `gorm:"uniqueIndex:idx_lesson_completion;not null" json:"lesson_id"`
	CompletedAt time.Time `gorm:"autoCreateTime" json:"completed_at"`
}
