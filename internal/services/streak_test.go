package services

import (
	"context"
	"testing"
	"time"

	"keyopolls/internal/models"
	"keyopolls/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var streakDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

// answerOn 模拟某天答了 n 道题，返回最后一次的快照
func answerOn(t *testing.T, env *testEnv, profileID, communityID uint, day time.Time, n int) *StreakSnapshot {
	t.Helper()
	var snap *StreakSnapshot
	for i := 0; i < n; i++ {
		err := env.db.Transaction(func(tx *gorm.DB) error {
			s, err := env.streaks.UpdateCommunityStreak(context.Background(), tx, profileID, communityID, day.Add(9*time.Hour))
			snap = s
			return err
		})
		require.NoError(t, err)
	}
	return snap
}

func TestStreakContiguousDays(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	c := env.fx.Community("go")

	for i := 0; i < 3; i++ {
		snap := answerOn(t, env, p.ID, c.ID, streakDay.AddDate(0, 0, i), 2)
		assert.True(t, snap.TargetJustMet)
		assert.Equal(t, i+1, snap.CurrentStreak)
	}

	var streak models.CommunityStreak
	require.NoError(t, env.db.Where("profile_id = ? AND community_id = ?", p.ID, c.ID).Take(&streak).Error)
	assert.Equal(t, 3, streak.CurrentStreak)
	assert.GreaterOrEqual(t, streak.MaxStreak, 3)
	require.NotNil(t, streak.StreakStartDate)
	assert.True(t, DayOf(*streak.StreakStartDate).Equal(streakDay))
}

func TestStreakGapResets(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	c := env.fx.Community("go")

	answerOn(t, env, p.ID, c.ID, streakDay, 2)
	answerOn(t, env, p.ID, c.ID, streakDay.AddDate(0, 0, 1), 2)
	snap := answerOn(t, env, p.ID, c.ID, streakDay.AddDate(0, 0, 3), 2)

	assert.Equal(t, 1, snap.CurrentStreak)
	assert.Equal(t, 2, snap.MaxStreak)
	require.NotNil(t, snap.StreakStartDate)
	assert.True(t, snap.StreakStartDate.Equal(streakDay.AddDate(0, 0, 3)))
}

func TestStreakTargetCrossedOncePerDay(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	c := env.fx.Community("go")

	snap := answerOn(t, env, p.ID, c.ID, streakDay, 1)
	assert.False(t, snap.TargetMet)
	assert.Equal(t, 0, snap.CurrentStreak)
	assert.Nil(t, snap.LastActivityDate)

	snap = answerOn(t, env, p.ID, c.ID, streakDay, 1)
	assert.True(t, snap.TargetMet)
	assert.True(t, snap.TargetJustMet)
	assert.Equal(t, 1, snap.CurrentStreak)

	snap = answerOn(t, env, p.ID, c.ID, streakDay, 3)
	assert.True(t, snap.TargetMet)
	assert.False(t, snap.TargetJustMet)
	assert.Equal(t, 5, snap.PollsToday)
	assert.Equal(t, 1, snap.CurrentStreak)
}

func TestProcessQualifyingDayIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	c := env.fx.Community("go")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, env.streaks.ProcessQualifyingDay(ctx, env.db, p.ID, c.ID, streakDay))
	}
	// 比最后活动日更早的日期不回退
	require.NoError(t, env.streaks.ProcessQualifyingDay(ctx, env.db, p.ID, c.ID, streakDay.AddDate(0, 0, 1)))
	require.NoError(t, env.streaks.ProcessQualifyingDay(ctx, env.db, p.ID, c.ID, streakDay))

	var streak models.CommunityStreak
	require.NoError(t, env.db.Where("profile_id = ? AND community_id = ?", p.ID, c.ID).Take(&streak).Error)
	assert.Equal(t, 2, streak.CurrentStreak)
	assert.Equal(t, 2, streak.MaxStreak)
	require.NotNil(t, streak.LastActivityDate)
	assert.True(t, DayOf(*streak.LastActivityDate).Equal(streakDay.AddDate(0, 0, 1)))
}

func TestStreaksArePerCommunity(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	goC := env.fx.Community("go")
	rustC := env.fx.Community("rust")

	answerOn(t, env, p.ID, goC.ID, streakDay, 2)
	answerOn(t, env, p.ID, goC.ID, streakDay.AddDate(0, 0, 1), 2)
	answerOn(t, env, p.ID, rustC.ID, streakDay.AddDate(0, 0, 1), 1)

	ctx := context.Background()
	today := streakDay.AddDate(0, 0, 1)

	snap, err := env.streaks.GetStreak(ctx, p.ID, goC.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.CurrentStreak)
	assert.Equal(t, 2, snap.PollsToday)
	assert.True(t, snap.TargetMet)

	snap, err = env.streaks.GetStreak(ctx, p.ID, rustC.ID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.CurrentStreak)
	assert.Equal(t, 1, snap.PollsToday)
	assert.False(t, snap.TargetMet)

	_, err = env.streaks.GetStreak(ctx, p.ID, 9999, today)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	summary, err := env.streaks.Summary(ctx, p.ID, today)
	require.NoError(t, err)
	require.Len(t, summary, 1, "rust never qualified a day")
	assert.Equal(t, "go", summary[0].CommunityName)
	assert.True(t, summary[0].IsActive)
	require.NotNil(t, summary[0].LastActivityDate)
	assert.Equal(t, "2026-03-11", *summary[0].LastActivityDate)
}

func TestStreakCalendar(t *testing.T) {
	env := newTestEnv(t)
	p := env.fx.Profile("p")
	c := env.fx.Community("go")
	ctx := context.Background()

	answerOn(t, env, p.ID, c.ID, streakDay, 2)
	answerOn(t, env, p.ID, c.ID, streakDay.AddDate(0, 0, 2), 1)
	today := streakDay.AddDate(0, 0, 2)

	cal, err := env.streaks.Calendar(ctx, p.ID, c.ID, 3, today)
	require.NoError(t, err)
	require.Len(t, cal.Calendar, 3)
	assert.Equal(t, "2026-03-10", cal.Calendar[0].Date)
	assert.True(t, cal.Calendar[0].TargetMet)
	assert.Equal(t, 2, cal.Calendar[0].PollsCount)
	assert.Equal(t, 0, cal.Calendar[1].PollsCount)
	assert.Equal(t, 1, cal.Calendar[2].PollsCount)
	assert.True(t, cal.Calendar[2].IsToday)
	assert.Equal(t, 1, cal.TotalDaysActive)
	assert.Equal(t, 2, cal.TargetPollsPerDay)
	assert.Equal(t, 1, cal.CurrentStreak)
	require.NotNil(t, cal.StreakStartDate)
	assert.Equal(t, "2026-03-10", *cal.StreakStartDate)

	cal, err = env.streaks.Calendar(ctx, p.ID, c.ID, 0, today)
	require.NoError(t, err)
	assert.Len(t, cal.Calendar, defaultCalendarDays)

	cal, err = env.streaks.Calendar(ctx, p.ID, c.ID, 5000, today)
	require.NoError(t, err)
	assert.Len(t, cal.Calendar, maxCalendarDays)

	_, err = env.streaks.Calendar(ctx, p.ID, c.ID, -1, today)
	assert.ErrorIs(t, err, utils.ErrValidation)
}
