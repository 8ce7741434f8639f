package services

import (
	"testing"

	"investhub-gamification/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: databases are per-connection — keep the pool at one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.UserProgress{},
		&models.BadgeType{},
		&models.UserBadge{},
		&models.LessonCompletion{},
		&models.PointLedger{},
		&models.UserMirror{},
	))
	return db
}

func newTestService(t *testing.T) (*GamificationService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, NewBadgeService(db).SeedCatalog())
	return NewGamificationService(db), db
}
