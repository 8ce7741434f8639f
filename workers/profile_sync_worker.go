// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"investhub-gamification/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublicProfile matches the JSON shape of the profile service's public feed.
type PublicProfile struct {
	UserID            string    `json:"user_id"`
	Username          string    `json:"username"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Profiles []PublicProfile `json:"profiles"`
}

// ProfileSyncWorker polls the profile service for changed public profiles and
// mirrors them into user_mirrors so the leaderboard can show display names
// without a cross-service call per request.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string // e.g., "http://localhost:8500"
	endpointPath string // e.g., "/api/v1/public/profiles"
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (profile-service → user_mirrors)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Initial backfill — sync from the beginning of time
	if err := w.syncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	lastSyncTime := time.Now().UTC()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Profile sync worker stopped.")
			return
		case <-ticker.C:
			tickTime := time.Now().UTC()
			if err := w.syncBatch(ctx, lastSyncTime); err != nil {
				log.Printf("❌ Profile sync failed: %v", err)
				// Do NOT advance lastSyncTime on failure — retry same window next tick
				continue
			}
			lastSyncTime = tickTime
		}
	}
}

func (w *ProfileSyncWorker) syncBatch(ctx context.Context, since time.Time) error {
	profiles, err := w.fetchChangedProfiles(ctx, since)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	mirrors := make([]models.UserMirror, 0, len(profiles))
	for _, p := range profiles {
		m := models.UserMirror{
			ID:               uuid.NewString(),
			UserID:           p.UserID,
			Username:         p.Username,
			ProfileUpdatedAt: p.UpdatedAt,
		}
		if p.ProfilePictureURL != nil {
			m.AvatarURL = *p.ProfilePictureURL
		}
		mirrors = append(mirrors, m)
	}

	// Batch upsert — one statement, keyed on the user_id unique constraint
	if err := w.db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username",
				"avatar_url",
				"profile_updated_at",
				"updated_at",
			}),
		},
	).Create(&mirrors).Error; err != nil {
		return fmt.Errorf("failed to upsert %d profile mirror(s): %w", len(mirrors), err)
	}

	log.Printf("📥 Mirrored %d profile change(s).", len(mirrors))
	return nil
}

func (w *ProfileSyncWorker) fetchChangedProfiles(ctx context.Context, since time.Time) ([]PublicProfile, error) {
	u, err := url.Parse(w.baseURL + w.endpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse profile service URL: %w", err)
	}

	q := u.Query()
	if !since.IsZero() {
		q.Set("since", since.UTC().Format(time.RFC3339))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call profile service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("profile service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode profile service response: %w", err)
	}
	return response.Profiles, nil
}
