package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
)

func TestGetDailyStatsHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("aggregates per calendar day", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")

		// Two sessions today, one yesterday.
		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-3*time.Hour), 30)
		seedCompletedSession(t, sessionRepo, "s-2", testNow.Add(-1*time.Hour), 45)
		seedCompletedSession(t, sessionRepo, "s-3", testNow.Add(-26*time.Hour), 60)

		h := NewGetDailyStatsHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		result, err := h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID, Days: 7})
		require.NoError(t, err)

		require.Len(t, result.Days, 2)
		assert.Equal(t, 60, result.Days[0].TotalMinutes)
		assert.Equal(t, 1, result.Days[0].SessionCount)
		assert.Equal(t, 75, result.Days[1].TotalMinutes)
		assert.Equal(t, 2, result.Days[1].SessionCount)

		assert.Equal(t, 135, result.TotalMinutes)
		assert.Equal(t, 2, result.ActiveDays)

		assert.Equal(t, 3, result.Summary.TotalSessions)
		assert.Equal(t, 135, result.Summary.TotalMinutes)
		assert.Equal(t, 45.0, result.Summary.AverageSessionLength)
	})

	t.Run("goal achieved flag follows user preferences", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		u := seedUser(t, userRepo, "UTC")
		u.Preferences.DailyGoalMinutes = 40

		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-2*time.Hour), 45)
		seedCompletedSession(t, sessionRepo, "s-2", testNow.Add(-26*time.Hour), 20)

		h := NewGetDailyStatsHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		result, err := h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID})
		require.NoError(t, err)

		require.Len(t, result.Days, 2)
		assert.False(t, result.Days[0].GoalAchieved) // 20 < 40
		assert.True(t, result.Days[1].GoalAchieved)  // 45 >= 40
	})

	t.Run("fills empty days when asked", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")
		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-2*time.Hour), 30)

		h := NewGetDailyStatsHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		result, err := h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID, Days: 3, FillEmptyDays: true})
		require.NoError(t, err)

		require.Len(t, result.Days, 3)
		assert.Equal(t, 0, result.Days[0].TotalMinutes)
		assert.Equal(t, 0, result.Days[1].TotalMinutes)
		assert.Equal(t, 30, result.Days[2].TotalMinutes)
		assert.Equal(t, 1, result.ActiveDays)
	})

	t.Run("days are cut in the user's timezone", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "Asia/Almaty") // UTC+5

		// 22:00 UTC yesterday = 03:00 today in Almaty.
		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-17*time.Hour), 30)

		h := NewGetDailyStatsHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		result, err := h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID, Days: 2})
		require.NoError(t, err)

		require.Len(t, result.Days, 1)
		assert.Equal(t, "2024-03-10", result.Days[0].DateFormatted)
	})

	t.Run("midnight crossers belong to the day they started", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")

		// Starts 23:30 yesterday, ends 00:30 today.
		seedCompletedSession(t, sessionRepo, "s-cross", testNow.Add(-15*time.Hour-30*time.Minute), 60)

		h := NewGetDailyStatsHandler(userRepo, sessionRepo, clock.NewFake(testNow))

		result, err := h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID, Days: 2})
		require.NoError(t, err)
		require.Len(t, result.Days, 1)
		assert.Equal(t, "2024-03-09", result.Days[0].DateFormatted)
		assert.Equal(t, 60, result.Days[0].TotalMinutes)

		// A one-day window starting today must not leak a bucket dated
		// before the window.
		result, err = h.Handle(ctx, GetDailyStatsQuery{UserID: testUserID, Days: 1})
		require.NoError(t, err)
		assert.Empty(t, result.Days)
	})

	t.Run("explicit inverted range is rejected", func(t *testing.T) {
		h := NewGetDailyStatsHandler(newFakeUserRepo(), newFakeSessionRepo(), clock.NewFake(testNow))
		_, err := h.Handle(ctx, GetDailyStatsQuery{
			UserID: testUserID,
			From:   testNow,
			To:     testNow.Add(-24 * time.Hour),
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}
