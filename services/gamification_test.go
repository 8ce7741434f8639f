package services

import (
	"testing"
	"time"

	"investhub-gamification/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwardPointsRejectsNonPositiveAmounts(t *testing.T) {
	svc, db := newTestService(t)

	for _, points := range []int64{0, -5} {
		_, err := svc.AwardPoints("user-1", points, "x")
		require.Error(t, err)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve)
	}

	// No state was created by the rejected calls
	var count int64
	require.NoError(t, db.Model(&models.UserProgress{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.PointLedger{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAwardPointsIsMonotonic(t *testing.T) {
	svc, _ := newTestService(t)

	var lastPoints, lastXP int64
	for _, amount := range []int64{10, 1, 500, 42} {
		prog, err := svc.AwardPoints("user-1", amount, "test sequence")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, prog.Points, lastPoints)
		assert.GreaterOrEqual(t, prog.Experience, lastXP)
		lastPoints, lastXP = prog.Points, prog.Experience
	}
	assert.EqualValues(t, 553, lastPoints)
}

func TestAwardPointsWritesLedgerAndLevelsUp(t *testing.T) {
	svc, db := newTestService(t)

	// Level 1 → 2 costs 100 XP
	prog, err := svc.AwardPoints("user-1", 100, "level up")
	require.NoError(t, err)
	assert.Equal(t, 2, prog.Level)
	require.NotNil(t, prog.LastLevelUpAt)

	var ledger []models.PointLedger
	require.NoError(t, db.Where("user_id = ?", "user-1").Find(&ledger).Error)
	require.Len(t, ledger, 1)
	assert.EqualValues(t, 100, ledger[0].Points)
	assert.Equal(t, "level up", ledger[0].Reason)
}

func TestLevelForExperienceCurve(t *testing.T) {
	assert.Equal(t, 1, levelForExperience(0))
	assert.Equal(t, 1, levelForExperience(99))
	assert.Equal(t, 2, levelForExperience(100))
	// L2 → 3 costs floor(100 * 2^1.2) = 229, cumulative 329
	assert.Equal(t, 2, levelForExperience(328))
	assert.Equal(t, 3, levelForExperience(329))
}

func TestUnlockBadgeTwiceYieldsOneRow(t *testing.T) {
	svc, db := newTestService(t)

	var badge models.BadgeType
	require.NoError(t, db.Where("code = ?", "FIRST_LESSON").First(&badge).Error)

	newly, err := svc.UnlockBadge("user-1", badge.ID)
	require.NoError(t, err)
	assert.True(t, newly)

	newly, err = svc.UnlockBadge("user-1", badge.ID)
	require.NoError(t, err)
	assert.False(t, newly, "second unlock reports already unlocked, not an error")

	var count int64
	require.NoError(t, db.Model(&models.UserBadge{}).
		Where("user_id = ? AND badge_type_id = ?", "user-1", badge.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUnlockBadgeByCode(t *testing.T) {
	svc, db := newTestService(t)

	newly, err := svc.UnlockBadge("user-1", "FIRST_LESSON")
	require.NoError(t, err)
	assert.True(t, newly)

	// Code and id address the same badge — the second unlock is a no-op
	var badge models.BadgeType
	require.NoError(t, db.Where("code = ?", "FIRST_LESSON").First(&badge).Error)
	newly, err = svc.UnlockBadge("user-1", badge.ID)
	require.NoError(t, err)
	assert.False(t, newly)
}

func TestUnlockBadgeUnknownBadge(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UnlockBadge("user-1", "no-such-badge")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStreakContinuationAndReset(t *testing.T) {
	svc, _ := newTestService(t)

	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 14, 30, 0, 0, time.UTC)
	}

	svc.now = func() time.Time { return day(1) }
	prog, err := svc.UpdateStreak("user-1", StreakLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.LoginStreak)

	// Next calendar day → continuation
	svc.now = func() time.Time { return day(2) }
	prog, err = svc.UpdateStreak("user-1", StreakLogin)
	require.NoError(t, err)
	assert.Equal(t, 2, prog.LoginStreak)

	// Same day again → unchanged
	svc.now = func() time.Time { return day(2).Add(5 * time.Hour) }
	prog, err = svc.UpdateStreak("user-1", StreakLogin)
	require.NoError(t, err)
	assert.Equal(t, 2, prog.LoginStreak)

	// Gap of two days → reset to 1, not 0
	svc.now = func() time.Time { return day(5) }
	prog, err = svc.UpdateStreak("user-1", StreakLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.LoginStreak)
	assert.Equal(t, 2, prog.LongestLoginStreak, "high-water mark survives the reset")
}

func TestUpdateStreakTypesAreIndependent(t *testing.T) {
	svc, _ := newTestService(t)

	prog, err := svc.UpdateStreak("user-1", StreakLogin)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.LoginStreak)
	assert.Equal(t, 0, prog.LearningStreak)

	prog, err = svc.UpdateStreak("user-1", StreakLearning)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.LearningStreak)
}

func TestUpdateStreakRejectsUnknownType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateStreak("user-1", StreakType("gardening"))
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestTrackEventLoginAppliesStreakAndPoints(t *testing.T) {
	svc, _ := newTestService(t)

	res, err := svc.TrackEvent("user-1", EventLogin, nil)
	require.NoError(t, err)
	assert.EqualValues(t, svc.Weights.Login, res.PointsAwarded)
	assert.Equal(t, 1, res.Progress.LoginStreak)
	assert.EqualValues(t, 1, res.Progress.TotalLogins)
	assert.Contains(t, res.NewBadges, "WELCOME")
}

func TestTrackEventLessonIdempotent(t *testing.T) {
	svc, db := newTestService(t)

	data := map[string]interface{}{"lesson_id": "lesson-101"}

	res, err := svc.TrackEvent("user-1", EventLessonCompleted, data)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.EqualValues(t, svc.Weights.Lesson, res.PointsAwarded)
	assert.Contains(t, res.NewBadges, "FIRST_LESSON")
	firstPoints := res.Progress.Points

	// Same lesson again — no points, no badge, no counter bump
	res, err = svc.TrackEvent("user-1", EventLessonCompleted, data)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Zero(t, res.PointsAwarded)
	assert.Empty(t, res.NewBadges)
	assert.Equal(t, firstPoints, res.Progress.Points)
	assert.EqualValues(t, 1, res.Progress.LessonsCompleted)

	var completions int64
	require.NoError(t, db.Model(&models.LessonCompletion{}).
		Where("user_id = ? AND lesson_id = ?", "user-1", "lesson-101").
		Count(&completions).Error)
	assert.EqualValues(t, 1, completions)

	var badges int64
	require.NoError(t, db.Model(&models.UserBadge{}).
		Joins("JOIN badge_types ON badge_types.id = user_badges.badge_type_id").
		Where("user_badges.user_id = ? AND badge_types.code = ?", "user-1", "FIRST_LESSON").
		Count(&badges).Error)
	assert.EqualValues(t, 1, badges, "first lesson badge granted exactly once")
}

func TestTrackEventLessonRequiresLessonID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TrackEvent("user-1", EventLessonCompleted, nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestTrackEventUnknownType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TrackEvent("user-1", EventType("teleported"), nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestGetUserProgressNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetUserProgress("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetUserProgressProjection(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TrackEvent("user-1", EventLessonCompleted, map[string]interface{}{"lesson_id": "l1"})
	require.NoError(t, err)

	projection, err := svc.GetUserProgress("user-1")
	require.NoError(t, err)
	assert.EqualValues(t, svc.Weights.Lesson, projection.Points)
	assert.NotEmpty(t, projection.Achievements)
	assert.Positive(t, projection.NextLevelXP)
}

func TestGetUserStats(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TrackEvent("user-1", EventLogin, nil)
	require.NoError(t, err)
	_, err = svc.TrackEvent("user-1", EventSimulationRun, nil)
	require.NoError(t, err)

	stats, err := svc.GetUserStats("user-1")
	require.NoError(t, err)
	assert.EqualValues(t, svc.Weights.Login+svc.Weights.Simulation, stats.Points)
	assert.EqualValues(t, 2, stats.TotalAwards)
	assert.EqualValues(t, stats.Points, stats.PointsThisWeek)
	assert.Positive(t, stats.BadgesUnlocked)
}
