package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"investhub-gamification/models"
	"investhub-gamification/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
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

	gamificationService := services.NewGamificationService(db)
	badgeService := services.NewBadgeService(db)
	require.NoError(t, badgeService.SeedCatalog())
	leaderboardService := services.NewLeaderboardService(db, nil)

	app := fiber.New()
	SetupGamificationRoutes(app, gamificationService, badgeService, leaderboardService)
	SetupAdminRoutes(app, gamificationService, badgeService, nil)
	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path, userID string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	var payload map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func TestSecuredRoutesRequireUserContext(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "GET", "/s/user/progress", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, payload, "error")
}

func TestProgressNotFoundEnvelope(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "GET", "/s/user/progress", "user-1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, payload, "error")
	assert.NotContains(t, payload, "success")
}

func TestTrackEventAndProgressRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "POST", "/s/user/track-event", "user-1", map[string]interface{}{
		"event_type": "lesson_completed",
		"event_data": map[string]interface{}{"lesson_id": "lesson-1"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])

	resp, payload = doJSON(t, app, "GET", "/s/user/progress", "user-1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["success"])
	data := payload["data"].(map[string]interface{})
	assert.EqualValues(t, 50, data["points"])
}

func TestAwardPointsValidationEnvelope(t *testing.T) {
	app, db := newTestApp(t)

	resp, payload := doJSON(t, app, "POST", "/s/user/award-points", "user-1", map[string]interface{}{
		"points": -5,
		"reason": "x",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, payload, "error")

	var count int64
	require.NoError(t, db.Model(&models.UserProgress{}).Count(&count).Error)
	assert.Zero(t, count, "rejected award must not mutate state")
}

func TestUnlockBadgeConflictIsSuccess(t *testing.T) {
	app, db := newTestApp(t)

	var badge models.BadgeType
	require.NoError(t, db.Where("code = ?", "WELCOME").First(&badge).Error)

	body := map[string]interface{}{"badge_id": badge.ID}

	resp, payload := doJSON(t, app, "POST", "/s/user/unlock-badge", "user-1", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, true, data["newly_unlocked"])

	resp, payload = doJSON(t, app, "POST", "/s/user/unlock-badge", "user-1", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "already unlocked is an expected outcome, not an error")
	assert.Equal(t, true, payload["success"])
	data = payload["data"].(map[string]interface{})
	assert.Equal(t, false, data["newly_unlocked"])
}

func TestUnlockBadgeByCodeAndUnknownBadge(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "POST", "/s/user/unlock-badge", "user-1", map[string]interface{}{
		"badge_id": "FIRST_LESSON",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, "badges are addressable by code")
	data := payload["data"].(map[string]interface{})
	assert.Equal(t, true, data["newly_unlocked"])

	resp, payload = doJSON(t, app, "POST", "/s/user/unlock-badge", "user-1", map[string]interface{}{
		"badge_id": "NO_SUCH_BADGE",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Contains(t, payload, "error")
}

func TestStreakEndpoint(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "PUT", "/s/user/streak", "user-1", map[string]interface{}{
		"streak_type": "login",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["login_streak"])

	resp, _ = doJSON(t, app, "PUT", "/s/user/streak", "user-1", map[string]interface{}{
		"streak_type": "napping",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLeaderboardEndpointClampsLimit(t *testing.T) {
	app, _ := newTestApp(t)

	for _, user := range []string{"user-a", "user-b", "user-c"} {
		resp, _ := doJSON(t, app, "POST", "/s/user/award-points", user, map[string]interface{}{
			"points": 100,
			"reason": "seed",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	resp, payload := doJSON(t, app, "GET", "/s/leaderboard?period=all_time&limit=150", "user-a", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	entries := payload["data"].([]interface{})
	assert.LessOrEqual(t, len(entries), 100)
	assert.Len(t, entries, 3)

	resp, _ = doJSON(t, app, "GET", "/s/leaderboard?period=decade", "user-a", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPublicBadgeCatalog(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "GET", "/badges", "", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	badges := payload["data"].([]interface{})
	assert.Len(t, badges, len(models.BadgeCatalog))
}

func TestAdminGrantPoints(t *testing.T) {
	app, _ := newTestApp(t)

	resp, payload := doJSON(t, app, "POST", "/s/admin/points/grant", "admin-1", map[string]interface{}{
		"user_id": "user-9",
		"points":  250,
		"reason":  "promo",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]interface{})
	assert.EqualValues(t, 250, data["points"])
	assert.Equal(t, "user-9", data["user_id"])
}
