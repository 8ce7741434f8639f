// handlers/gamification_routes.go
package handlers

import (
	"errors"
	"log"
	"strconv"

	"investhub-gamification/middleware"
	"investhub-gamification/services"

	"github.com/gofiber/fiber/v2"
)

// statusForError maps service errors onto the HTTP taxonomy: validation →
// 400, not-found → 404, everything else → opaque 500.
func statusForError(err error) int {
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}
	if errors.Is(err, services.ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func errorJSON(c *fiber.Ctx, err error, logContext string) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		log.Printf("❌ [%s] %v", logContext, err)
		return c.Status(status).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func SetupGamificationRoutes(app *fiber.App, gamificationService *services.GamificationService, badgeService *services.BadgeService, leaderboardService *services.LeaderboardService) {
	// Public catalog — no user context needed
	app.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := badgeService.ListCatalog()
		if err != nil {
			return errorJSON(c, err, "BADGES")
		}
		return c.JSON(fiber.Map{"success": true, "data": badges})
	})

	// 🔐 Secured routes — require user context injected by the Gateway
	securedGroup := app.Group("/s", middleware.UserContextMiddleware())

	securedGroup.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		projection, err := gamificationService.GetUserProgress(userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no progress record for user"})
			}
			return errorJSON(c, err, "PROGRESS")
		}
		return c.JSON(fiber.Map{"success": true, "data": projection})
	})

	securedGroup.Post("/user/track-event", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			EventType string                 `json:"event_type"`
			EventData map[string]interface{} `json:"event_data"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
		if req.EventType == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "event_type is required"})
		}

		result, err := gamificationService.TrackEvent(userID, services.EventType(req.EventType), req.EventData)
		if err != nil {
			return errorJSON(c, err, "TRACK_EVENT")
		}

		message := "event tracked"
		if result.Duplicate {
			message = "event already recorded"
		}
		return c.JSON(fiber.Map{"success": true, "message": message, "data": result})
	})

	securedGroup.Post("/user/award-points", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			Points int64  `json:"points"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}

		prog, err := gamificationService.AwardPoints(userID, req.Points, req.Reason)
		if err != nil {
			return errorJSON(c, err, "AWARD_POINTS")
		}
		return c.JSON(fiber.Map{"success": true, "message": "points awarded", "data": prog})
	})

	securedGroup.Post("/user/unlock-badge", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			BadgeID string `json:"badge_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}

		newlyUnlocked, err := gamificationService.UnlockBadge(userID, req.BadgeID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "badge not found"})
			}
			return errorJSON(c, err, "UNLOCK_BADGE")
		}

		message := "badge unlocked"
		if !newlyUnlocked {
			message = "badge already unlocked"
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": message,
			"data":    fiber.Map{"badge_id": req.BadgeID, "newly_unlocked": newlyUnlocked},
		})
	})

	securedGroup.Put("/user/streak", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			StreakType string `json:"streak_type"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}

		prog, err := gamificationService.UpdateStreak(userID, services.StreakType(req.StreakType))
		if err != nil {
			return errorJSON(c, err, "STREAK")
		}
		return c.JSON(fiber.Map{"success": true, "message": "streak updated", "data": prog})
	})

	securedGroup.Get("/user/achievements", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		achievements, err := gamificationService.GetUserAchievements(userID)
		if err != nil {
			return errorJSON(c, err, "ACHIEVEMENTS")
		}
		return c.JSON(fiber.Map{"success": true, "data": achievements})
	})

	securedGroup.Get("/user/stats", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		stats, err := gamificationService.GetUserStats(userID)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no progress record for user"})
			}
			return errorJSON(c, err, "STATS")
		}
		return c.JSON(fiber.Map{"success": true, "data": stats})
	})

	securedGroup.Get("/leaderboard", func(c *fiber.Ctx) error {
		period := c.Query("period", string(services.PeriodAllTime))
		limit, _ := strconv.Atoi(c.Query("limit", "10"))

		entries, err := leaderboardService.GetLeaderboard(c.Context(), services.LeaderboardPeriod(period), limit)
		if err != nil {
			return errorJSON(c, err, "LEADERBOARD")
		}
		return c.JSON(fiber.Map{"success": true, "data": entries})
	})
}
