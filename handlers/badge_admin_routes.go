// handlers/badge_admin_routes.go
package handlers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"investhub-gamification/middleware"
	"investhub-gamification/services"
	"investhub-gamification/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// SetupAdminRoutes mounts the admin surface: badge catalog management and
// manual point grants. The Gateway only forwards /s/admin/ to operators.
func SetupAdminRoutes(app *fiber.App, gamificationService *services.GamificationService, badgeService *services.BadgeService, store *utils.ObjectStore) {
	adminGroup := app.Group("/s/admin", middleware.UserContextMiddleware())

	adminGroup.Post("/points/grant", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"user_id"`
			Points int64  `json:"points"`
			Reason string `json:"reason"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}

		prog, err := gamificationService.AwardPoints(req.UserID, req.Points, req.Reason)
		if err != nil {
			return errorJSON(c, err, "ADMIN_GRANT")
		}
		return c.JSON(fiber.Map{"success": true, "message": "points granted", "data": prog})
	})

	// Multipart: name, description, rarity, threshold (JSON object), icon file
	adminGroup.Post("/badges", func(c *fiber.Ctx) error {
		name := c.FormValue("name")
		description := c.FormValue("description")
		rarity := c.FormValue("rarity")

		var threshold map[string]int64
		if raw := c.FormValue("threshold"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &threshold); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "threshold must be a JSON object of counter → minimum"})
			}
		}

		var iconURL string
		if fileHeader, err := c.FormFile("icon"); err == nil {
			if store == nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "object storage not configured"})
			}
			key := fmt.Sprintf("badges/%s-%s%s", slug.Make(name), uuid.NewString()[:8], filepath.Ext(fileHeader.Filename))
			iconURL, err = store.UploadFile(fileHeader, key)
			if err != nil {
				return errorJSON(c, err, "BADGE_ICON_UPLOAD")
			}
		}

		badge, err := badgeService.CreateBadge(name, description, rarity, iconURL, threshold)
		if err != nil {
			return errorJSON(c, err, "BADGE_CREATE")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": "badge created", "data": badge})
	})
}
