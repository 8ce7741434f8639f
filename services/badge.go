package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"investhub-gamification/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// SeedCatalog upserts the built-in badge definitions. Existing rows (matched
// by code) are left untouched so admin edits survive restarts.
func (s *BadgeService) SeedCatalog() error {
	for _, def := range models.BadgeCatalog {
		def.ID = uuid.NewString()
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&def)
		if res.Error != nil {
			return fmt.Errorf("failed to seed badge %s: %w", def.Code, res.Error)
		}
	}
	return nil
}

// ListCatalog returns the full badge catalog.
func (s *BadgeService) ListCatalog() ([]models.BadgeType, error) {
	var badges []models.BadgeType
	err := s.DB.Order("created_at ASC").Find(&badges).Error
	return badges, err
}

// CreateBadge adds a catalog entry from admin input. The code is derived
// from the display name (slugged, upper snake case).
func (s *BadgeService) CreateBadge(name, description, rarity, iconURL string, threshold map[string]int64) (*models.BadgeType, error) {
	if strings.TrimSpace(name) == "" {
		return nil, NewValidationError("badge name is required")
	}
	switch rarity {
	case "", "common", "rare", "epic", "legendary":
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown rarity %q", rarity))
	}
	if rarity == "" {
		rarity = "common"
	}

	badge := models.BadgeType{
		ID:          uuid.NewString(),
		Code:        strings.ToUpper(strings.ReplaceAll(slug.Make(name), "-", "_")),
		Name:        name,
		Description: description,
		IconURL:     iconURL,
		Rarity:      rarity,
		Threshold:   threshold,
	}
	if err := s.DB.Create(&badge).Error; err != nil {
		return nil, err
	}
	log.Printf("🆕 Badge created: %s (%s)", badge.Name, badge.Code)
	return &badge, nil
}

// AutoAwardBadges checks all catalog thresholds for a user after a progress
// update and unlocks anything newly earned. Deduplication is delegated to the
// (user_id, badge_type_id) unique index, so concurrent awards cannot
// double-issue a badge.
func (s *BadgeService) AutoAwardBadges(userID string) ([]models.BadgeType, error) {
	var prog models.UserProgress
	if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var catalog []models.BadgeType
	if err := s.DB.Find(&catalog).Error; err != nil {
		return nil, err
	}

	var awarded []models.BadgeType
	for _, badge := range catalog {
		if !meetsThreshold(&prog, badge.Threshold) {
			continue
		}
		res := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserBadge{
			ID:          uuid.NewString(),
			UserID:      userID,
			BadgeTypeID: badge.ID,
		})
		if res.Error != nil {
			return awarded, res.Error
		}
		if res.RowsAffected > 0 {
			awarded = append(awarded, badge)
			log.Printf("🎖️ Badge awarded: %s → %s", badge.Name, userID)
		}
	}
	return awarded, nil
}

func meetsThreshold(prog *models.UserProgress, req map[string]int64) bool {
	if len(req) == 0 {
		return false
	}
	for key, required := range req {
		switch key {
		case "lessons_completed":
			if prog.LessonsCompleted < required {
				return false
			}
		case "challenges_completed":
			if prog.ChallengesCompleted < required {
				return false
			}
		case "total_logins":
			if prog.TotalLogins < required {
				return false
			}
		case "login_streak":
			if int64(prog.LoginStreak) < required {
				return false
			}
		case "learning_streak":
			if int64(prog.LearningStreak) < required {
				return false
			}
		case "points":
			if prog.Points < required {
				return false
			}
		case "level":
			if int64(prog.Level) < required {
				return false
			}
		case "event":
			// granted on any qualifying event; other keys in the map still apply
		default:
			return false
		}
	}
	return true
}
