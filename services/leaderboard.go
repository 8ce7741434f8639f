package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"investhub-gamification/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// LeaderboardPeriod selects the ranking window.
type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "all_time"
	PeriodWeekly  LeaderboardPeriod = "weekly"
	PeriodMonthly LeaderboardPeriod = "monthly"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100

	// snapshotSize bounds how many entries the scheduler precomputes per period
	snapshotSize = 500
)

// LeaderboardEntry is one ranked row. Derived, never stored in SQL.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Points   int64  `json:"points"`
}

// LeaderboardService serves ranked reads over accumulated points. When a
// redis client is wired in, reads hit the precomputed sorted set first and
// fall back to SQL on a cold or missing key; without redis it is SQL-only.
type LeaderboardService struct {
	DB    *gorm.DB
	Redis *redis.Client

	now func() time.Time
}

func NewLeaderboardService(db *gorm.DB, rdb *redis.Client) *LeaderboardService {
	return &LeaderboardService{DB: db, Redis: rdb, now: time.Now}
}

// ClampLimit normalizes a caller-supplied limit: non-positive values get the
// default, anything above the cap is clamped to it.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

// GetLeaderboard returns the top-limit users by points within the period.
// Ties break deterministically: earliest to reach the total first, then
// user id.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period LeaderboardPeriod, limit int) ([]LeaderboardEntry, error) {
	switch period {
	case PeriodAllTime, PeriodWeekly, PeriodMonthly:
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown leaderboard period %q", period))
	}
	limit = ClampLimit(limit)

	if entries, ok := s.fromCache(ctx, period, limit); ok {
		return entries, nil
	}
	return s.fromDB(ctx, period, limit)
}

func leaderboardKey(period LeaderboardPeriod) string {
	return "leaderboard:" + string(period)
}

// fromCache reads the precomputed sorted set. A miss (nil client, empty key,
// redis error) falls through to SQL — the cache is an accelerator, not the
// source of truth.
func (s *LeaderboardService) fromCache(ctx context.Context, period LeaderboardPeriod, limit int) ([]LeaderboardEntry, bool) {
	if s.Redis == nil {
		return nil, false
	}
	zs, err := s.Redis.ZRevRangeWithScores(ctx, leaderboardKey(period), 0, int64(limit)-1).Result()
	if err != nil {
		log.Printf("⚠️ Leaderboard cache read failed (%s): %v", period, err)
		return nil, false
	}
	if len(zs) == 0 {
		return nil, false
	}

	entries := make([]LeaderboardEntry, 0, len(zs))
	ids := make([]string, 0, len(zs))
	for i, z := range zs {
		userID, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			UserID: userID,
			Points: int64(z.Score), // truncation drops the tie fraction
		})
		ids = append(ids, userID)
	}
	if err := s.hydrateUsernames(ids, entries); err != nil {
		log.Printf("⚠️ Leaderboard username hydration failed: %v", err)
	}
	return entries, true
}

type rankedRow struct {
	UserID      string
	TotalPoints int64
}

func (s *LeaderboardService) fromDB(ctx context.Context, period LeaderboardPeriod, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.queryRanked(ctx, period, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	ids := make([]string, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, LeaderboardEntry{
			Rank:   i + 1,
			UserID: r.UserID,
			Points: r.TotalPoints,
		})
		ids = append(ids, r.UserID)
	}
	if err := s.hydrateUsernames(ids, entries); err != nil {
		log.Printf("⚠️ Leaderboard username hydration failed: %v", err)
	}
	return entries, nil
}

func (s *LeaderboardService) queryRanked(ctx context.Context, period LeaderboardPeriod, limit int) ([]rankedRow, error) {
	var rows []rankedRow

	if period == PeriodAllTime {
		err := s.DB.WithContext(ctx).Model(&models.UserProgress{}).
			Select("user_id, points AS total_points").
			Where("points > 0").
			Order("total_points DESC, updated_at ASC, user_id ASC").
			Limit(limit).
			Scan(&rows).Error
		return rows, err
	}

	since := s.windowStart(period)
	err := s.DB.WithContext(ctx).Model(&models.PointLedger{}).
		Select("user_id, SUM(points) AS total_points, MIN(created_at) AS first_earned").
		Where("created_at >= ?", since).
		Group("user_id").
		Order("total_points DESC, first_earned ASC, user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (s *LeaderboardService) windowStart(period LeaderboardPeriod) time.Time {
	now := s.now().UTC()
	switch period {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// hydrateUsernames fills display names from the profile mirror; users the
// mirror has not seen yet keep an empty username rather than failing the read.
func (s *LeaderboardService) hydrateUsernames(ids []string, entries []LeaderboardEntry) error {
	if len(ids) == 0 {
		return nil
	}
	var mirrors []models.UserMirror
	if err := s.DB.Where("user_id IN ?", ids).Find(&mirrors).Error; err != nil {
		return err
	}
	names := make(map[string]string, len(mirrors))
	for _, m := range mirrors {
		names[m.UserID] = m.Username
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return nil
}

// snapshotMembers converts SQL-ordered rows into sorted-set members. Equal
// point totals get a descending fractional score component so ZREVRANGE
// returns ties in the SQL tie-break order instead of reverse-lexicographic
// member order; integer truncation recovers the points on read.
func snapshotMembers(rows []rankedRow) []redis.Z {
	members := make([]redis.Z, 0, len(rows))
	for i, r := range rows {
		tie := float64(len(rows)-i) / float64(len(rows)+1)
		members = append(members, redis.Z{Score: float64(r.TotalPoints) + tie, Member: r.UserID})
	}
	return members
}

// RefreshSnapshots recomputes every period's top entries from SQL and
// replaces the redis sorted sets atomically (pipeline: delete + rebuild).
// No-op without a redis client.
func (s *LeaderboardService) RefreshSnapshots(ctx context.Context) error {
	if s.Redis == nil {
		return nil
	}

	for _, period := range []LeaderboardPeriod{PeriodAllTime, PeriodWeekly, PeriodMonthly} {
		rows, err := s.queryRanked(ctx, period, snapshotSize)
		if err != nil {
			return fmt.Errorf("snapshot query failed for %s: %w", period, err)
		}

		members := snapshotMembers(rows)

		pipe := s.Redis.TxPipeline()
		pipe.Del(ctx, leaderboardKey(period))
		if len(members) > 0 {
			pipe.ZAdd(ctx, leaderboardKey(period), members...)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("snapshot write failed for %s: %w", period, err)
		}
		log.Printf("📊 Leaderboard snapshot refreshed: %s (%d entries)", period, len(members))
	}
	return nil
}
