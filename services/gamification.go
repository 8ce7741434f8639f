package services

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"investhub-gamification/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventType names a trackable domain event.
type EventType string

const (
	EventLogin                   EventType = "login"
	EventLessonCompleted         EventType = "lesson_completed"
	EventChallengeCompleted      EventType = "challenge_completed"
	EventRiskAssessmentCompleted EventType = "risk_assessment_completed"
	EventSimulationRun           EventType = "simulation_run"
	EventProfileCompleted        EventType = "profile_completed"
)

// StreakType selects which streak counter an activity feeds.
type StreakType string

const (
	StreakLogin    StreakType = "login"
	StreakLearning StreakType = "learning"
)

// PointWeights define relative point values per event (tunable via config/env later)
type PointWeights struct {
	Login          int64
	Lesson         int64
	Challenge      int64
	RiskAssessment int64
	Simulation     int64
	Profile        int64
}

var DefaultPointWeights = PointWeights{
	Login:          10,
	Lesson:         50,
	Challenge:      100,
	RiskAssessment: 75,
	Simulation:     25,
	Profile:        20,
}

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelForExperience maps accumulated experience to a level by walking the
// cumulative curve. Experience never decreases, so neither does the level.
func levelForExperience(xp int64) int {
	level := 1
	var need int64
	for {
		need += xpForNextLevel(level)
		if xp < need {
			return level
		}
		level++
	}
}

// TrackEventResult reports what a tracked event changed.
type TrackEventResult struct {
	Progress      *models.UserProgress `json:"progress"`
	PointsAwarded int64                `json:"points_awarded"`
	NewBadges     []string             `json:"new_badges,omitempty"`
	Duplicate     bool                 `json:"duplicate,omitempty"`
}

// Achievement is an unlocked badge joined with its catalog metadata.
type Achievement struct {
	BadgeTypeID string    `json:"badge_type_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IconURL     string    `json:"icon_url"`
	Rarity      string    `json:"rarity"`
	AwardedAt   time.Time `json:"awarded_at"`
}

// ProgressProjection is the aggregate read model for one user.
type ProgressProjection struct {
	*models.UserProgress
	NextLevelXP  int64         `json:"next_level_experience"`
	Achievements []Achievement `json:"achievements"`
}

// UserStats summarizes activity counters plus ledger aggregates.
type UserStats struct {
	Points              int64 `json:"points"`
	Experience          int64 `json:"experience"`
	Level               int   `json:"level"`
	LoginStreak         int   `json:"login_streak"`
	LearningStreak      int   `json:"learning_streak"`
	LongestLoginStreak  int   `json:"longest_login_streak"`
	LongestLearnStreak  int   `json:"longest_learning_streak"`
	LessonsCompleted    int64 `json:"lessons_completed"`
	ChallengesCompleted int64 `json:"challenges_completed"`
	TotalLogins         int64 `json:"total_logins"`
	BadgesUnlocked      int64 `json:"badges_unlocked"`
	TotalAwards         int64 `json:"total_awards"`
	PointsThisWeek      int64 `json:"points_this_week"`
}

// GamificationService is the single authority for reading and mutating a
// user's gamification state. Every write runs inside one GORM transaction;
// state-transition rewards are guarded by unique-constraint inserts, not
// application-level locks.
type GamificationService struct {
	DB      *gorm.DB
	Weights PointWeights

	now func() time.Time // swapped out in tests
}

func NewGamificationService(db *gorm.DB) *GamificationService {
	return &GamificationService{
		DB:      db,
		Weights: DefaultPointWeights,
		now:     time.Now,
	}
}

// GetUserProgress returns the full progress projection for a user, or
// ErrNotFound when no progress record exists. Side-effect-free.
func (s *GamificationService) GetUserProgress(userID string) (*ProgressProjection, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}

	var prog models.UserProgress
	if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	achievements, err := s.achievementsFor(s.DB, userID)
	if err != nil {
		return nil, err
	}

	return &ProgressProjection{
		UserProgress: &prog,
		NextLevelXP:  xpForNextLevel(prog.Level),
		Achievements: achievements,
	}, nil
}

// GetUserStats returns counters plus ledger aggregates for a user.
func (s *GamificationService) GetUserStats(userID string) (*UserStats, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}

	var prog models.UserProgress
	if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var badgeCount, awardCount int64
	if err := s.DB.Model(&models.UserBadge{}).Where("user_id = ?", userID).Count(&badgeCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.PointLedger{}).Where("user_id = ?", userID).Count(&awardCount).Error; err != nil {
		return nil, err
	}

	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	var weekPoints int64
	if err := s.DB.Model(&models.PointLedger{}).
		Where("user_id = ? AND created_at >= ?", userID, weekAgo).
		Select("COALESCE(SUM(points), 0)").
		Scan(&weekPoints).Error; err != nil {
		return nil, err
	}

	return &UserStats{
		Points:              prog.Points,
		Experience:          prog.Experience,
		Level:               prog.Level,
		LoginStreak:         prog.LoginStreak,
		LearningStreak:      prog.LearningStreak,
		LongestLoginStreak:  prog.LongestLoginStreak,
		LongestLearnStreak:  prog.LongestLearningStreak,
		LessonsCompleted:    prog.LessonsCompleted,
		ChallengesCompleted: prog.ChallengesCompleted,
		TotalLogins:         prog.TotalLogins,
		BadgesUnlocked:      badgeCount,
		TotalAwards:         awardCount,
		PointsThisWeek:      weekPoints,
	}, nil
}

// AwardPoints increments points and experience by a positive amount, records
// the reason in the ledger, and re-runs badge thresholds — one transaction.
func (s *GamificationService) AwardPoints(userID string, points int64, reason string) (*models.UserProgress, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}
	if points <= 0 {
		return nil, NewValidationError("points must be a positive amount")
	}

	var updated *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prog, _, err := s.awardPointsTx(tx, userID, points, reason, "manual_award")
		if err != nil {
			return err
		}
		updated = prog
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎯 Points awarded: %s → +%d (total=%d, lvl=%d, reason: %s)",
		userID, points, updated.Points, updated.Level, reason)
	return updated, nil
}

// UnlockBadge inserts a UserBadge row for the given badge type. Returns
// whether the unlock was newly applied — "already unlocked" is an expected
// outcome, not an error.
func (s *GamificationService) UnlockBadge(userID, badgeID string) (bool, error) {
	if userID == "" {
		return false, NewValidationError("user id is required")
	}
	if badgeID == "" {
		return false, NewValidationError("badge id is required")
	}

	var newlyUnlocked bool
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		// id is a uuid column — comparing a non-uuid input against it makes
		// postgres raise a cast error, so only use it when the input parses
		query := tx.Where("code = ?", badgeID)
		if _, err := uuid.Parse(badgeID); err == nil {
			query = tx.Where("id = ?", badgeID)
		}

		var badge models.BadgeType
		if err := query.First(&badge).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if _, err := s.ensureProgressTx(tx, userID); err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserBadge{
			ID:          uuid.NewString(),
			UserID:      userID,
			BadgeTypeID: badge.ID,
		})
		if res.Error != nil {
			return res.Error
		}
		newlyUnlocked = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if newlyUnlocked {
		log.Printf("🎖️ Badge unlocked: %s → %s", badgeID, userID)
	}
	return newlyUnlocked, nil
}

// UpdateStreak applies one qualifying activity to the given streak counter.
// Continuity policy: UTC calendar day. Same day → unchanged, previous day →
// +1, anything older (or no prior activity) → reset to 1.
func (s *GamificationService) UpdateStreak(userID string, streakType StreakType) (*models.UserProgress, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}
	if streakType != StreakLogin && streakType != StreakLearning {
		return nil, NewValidationError(fmt.Sprintf("unknown streak type %q", streakType))
	}

	var updated *models.UserProgress
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		prog, err := s.updateStreakTx(tx, userID, streakType)
		if err != nil {
			return err
		}
		updated = prog
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// TrackEvent records a domain event and applies its point/streak/badge
// effects atomically. Safe to call repeatedly for the same logical event:
// rewards tied to state transitions (lesson completions, badges) are
// deduplicated by unique-constraint inserts.
func (s *GamificationService) TrackEvent(userID string, eventType EventType, eventData map[string]interface{}) (*TrackEventResult, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}

	res := &TrackEventResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		switch eventType {
		case EventLogin:
			if _, err := s.updateStreakTx(tx, userID, StreakLogin); err != nil {
				return err
			}
			if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).
				Update("total_logins", gorm.Expr("total_logins + 1")).Error; err != nil {
				return err
			}
			return s.applyAward(tx, res, userID, s.Weights.Login, "daily login", eventType)

		case EventLessonCompleted:
			lessonID, _ := eventData["lesson_id"].(string)
			if lessonID == "" {
				return NewValidationError("lesson_id is required for lesson_completed events")
			}
			if _, err := s.ensureProgressTx(tx, userID); err != nil {
				return err
			}
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.LessonCompletion{
				ID:       uuid.NewString(),
				UserID:   userID,
				LessonID: lessonID,
			})
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected == 0 {
				// Lesson already completed — no rewards, report current state
				res.Duplicate = true
				prog, err := s.getProgressTx(tx, userID)
				if err != nil {
					return err
				}
				res.Progress = prog
				return nil
			}
			if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).
				Update("lessons_completed", gorm.Expr("lessons_completed + 1")).Error; err != nil {
				return err
			}
			if _, err := s.updateStreakTx(tx, userID, StreakLearning); err != nil {
				return err
			}
			return s.applyAward(tx, res, userID, s.Weights.Lesson, fmt.Sprintf("lesson %s completed", lessonID), eventType)

		case EventChallengeCompleted:
			if _, err := s.ensureProgressTx(tx, userID); err != nil {
				return err
			}
			if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).
				Update("challenges_completed", gorm.Expr("challenges_completed + 1")).Error; err != nil {
				return err
			}
			if _, err := s.updateStreakTx(tx, userID, StreakLearning); err != nil {
				return err
			}
			return s.applyAward(tx, res, userID, s.Weights.Challenge, "challenge completed", eventType)

		case EventRiskAssessmentCompleted:
			return s.applyAward(tx, res, userID, s.Weights.RiskAssessment, "risk assessment completed", eventType)

		case EventSimulationRun:
			return s.applyAward(tx, res, userID, s.Weights.Simulation, "portfolio simulation run", eventType)

		case EventProfileCompleted:
			return s.applyAward(tx, res, userID, s.Weights.Profile, "profile completed", eventType)

		default:
			return NewValidationError(fmt.Sprintf("unknown event type %q", eventType))
		}
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎮 Event tracked: %s → %s (+%d pts, %d new badge(s))",
		userID, eventType, res.PointsAwarded, len(res.NewBadges))
	return res, nil
}

// --- transaction-scoped helpers ---

// applyAward runs awardPointsTx and folds the outcome into the event result.
func (s *GamificationService) applyAward(tx *gorm.DB, res *TrackEventResult, userID string, points int64, reason string, eventType EventType) error {
	prog, newBadges, err := s.awardPointsTx(tx, userID, points, reason, string(eventType))
	if err != nil {
		return err
	}
	res.Progress = prog
	res.PointsAwarded += points
	res.NewBadges = append(res.NewBadges, newBadges...)
	return nil
}

// ensureProgressTx makes sure a UserProgress row exists (idempotent — the
// unique index on user_id absorbs concurrent creates).
func (s *GamificationService) ensureProgressTx(tx *gorm.DB, userID string) (*models.UserProgress, error) {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserProgress{
		ID:     uuid.NewString(),
		UserID: userID,
		Level:  1,
	})
	if res.Error != nil {
		return nil, res.Error
	}
	return s.getProgressTx(tx, userID)
}

func (s *GamificationService) getProgressTx(tx *gorm.DB, userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	if err := tx.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &prog, nil
}

// awardPointsTx increments points/experience via atomic column expressions,
// recomputes the level, appends the ledger row, and re-runs badge thresholds.
func (s *GamificationService) awardPointsTx(tx *gorm.DB, userID string, points int64, reason, eventType string) (*models.UserProgress, []string, error) {
	if _, err := s.ensureProgressTx(tx, userID); err != nil {
		return nil, nil, err
	}

	if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points":     gorm.Expr("points + ?", points),
			"experience": gorm.Expr("experience + ?", points),
		}).Error; err != nil {
		return nil, nil, err
	}

	prog, err := s.getProgressTx(tx, userID)
	if err != nil {
		return nil, nil, err
	}

	if newLevel := levelForExperience(prog.Experience); newLevel > prog.Level {
		now := s.now()
		if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"level":            newLevel,
				"last_level_up_at": now,
			}).Error; err != nil {
			return nil, nil, err
		}
		prog.Level = newLevel
		prog.LastLevelUpAt = &now
	}

	ledger := models.PointLedger{
		ID:        uuid.NewString(),
		UserID:    userID,
		Points:    points,
		Reason:    reason,
		EventType: eventType,
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return nil, nil, err
	}

	awarded, err := NewBadgeService(tx).AutoAwardBadges(userID)
	if err != nil {
		return nil, nil, err
	}
	codes := make([]string, 0, len(awarded))
	for _, b := range awarded {
		codes = append(codes, b.Code)
	}

	return prog, codes, nil
}

// updateStreakTx applies one qualifying activity under the calendar-day
// continuity policy and maintains the longest-streak high-water mark.
func (s *GamificationService) updateStreakTx(tx *gorm.DB, userID string, streakType StreakType) (*models.UserProgress, error) {
	prog, err := s.ensureProgressTx(tx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	var count, longest int
	var last *time.Time
	if streakType == StreakLogin {
		count, longest, last = prog.LoginStreak, prog.LongestLoginStreak, prog.LastLoginAt
	} else {
		count, longest, last = prog.LearningStreak, prog.LongestLearningStreak, prog.LastLearningAt
	}

	switch {
	case last == nil || count == 0:
		count = 1
	case calendarDaysBetween(*last, now) == 0:
		// Same day — streak unchanged, timestamp refreshed
	case calendarDaysBetween(*last, now) == 1:
		count++
	default:
		count = 1
	}
	if count > longest {
		longest = count
	}

	updates := map[string]interface{}{}
	if streakType == StreakLogin {
		updates["login_streak"] = count
		updates["longest_login_streak"] = longest
		updates["last_login_at"] = now
		prog.LoginStreak, prog.LongestLoginStreak, prog.LastLoginAt = count, longest, &now
	} else {
		updates["learning_streak"] = count
		updates["longest_learning_streak"] = longest
		updates["last_learning_at"] = now
		prog.LearningStreak, prog.LongestLearningStreak, prog.LastLearningAt = count, longest, &now
	}

	if err := tx.Model(&models.UserProgress{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return prog, nil
}

// achievementsFor joins unlocked badges with their catalog metadata.
func (s *GamificationService) achievementsFor(tx *gorm.DB, userID string) ([]Achievement, error) {
	var achievements []Achievement
	err := tx.Model(&models.UserBadge{}).
		Select("user_badges.badge_type_id, badge_types.code, badge_types.name, badge_types.description, badge_types.icon_url, badge_types.rarity, user_badges.awarded_at").
		Joins("JOIN badge_types ON badge_types.id = user_badges.badge_type_id").
		Where("user_badges.user_id = ?", userID).
		Order("user_badges.awarded_at ASC").
		Scan(&achievements).Error
	return achievements, err
}

// GetUserAchievements is the read used by the achievements endpoint.
func (s *GamificationService) GetUserAchievements(userID string) ([]Achievement, error) {
	if userID == "" {
		return nil, NewValidationError("user id is required")
	}
	return s.achievementsFor(s.DB, userID)
}

// calendarDaysBetween counts UTC calendar-day boundaries crossed between two
// instants. 0 = same day, 1 = consecutive days.
func calendarDaysBetween(from, to time.Time) int {
	fy, fm, fd := from.UTC().Date()
	ty, tm, td := to.UTC().Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
