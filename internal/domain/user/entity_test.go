package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

var userNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestUser(t *testing.T) *User {
	t.Helper()
	u, err := NewUser(
		"44444444-4444-4444-4444-444444444444",
		"Learner@Example.COM",
		"Learner",
		"$2a$10$hash",
		"Asia/Almaty",
		userNow,
	)
	require.NoError(t, err)
	return u
}

func TestNewUser(t *testing.T) {
	t.Run("normalizes email", func(t *testing.T) {
		u := newTestUser(t)
		assert.Equal(t, "learner@example.com", u.Email)
	})

	t.Run("defaults timezone to UTC", func(t *testing.T) {
		u, err := NewUser("id", "a@b.com", "A", "hash", "", userNow)
		require.NoError(t, err)
		assert.Equal(t, DefaultTimezone, u.Timezone)
	})

	t.Run("rejects invalid timezone", func(t *testing.T) {
		_, err := NewUser("id", "a@b.com", "A", "hash", "Mars/Olympus", userNow)
		assert.ErrorIs(t, err, shared.ErrInvalidTimezone)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := NewUser("id", "not-an-email", "A", "hash", "UTC", userNow)
		assert.ErrorIs(t, err, shared.ErrInvalidFormat)
	})

	t.Run("starts with default preferences and empty stats", func(t *testing.T) {
		u := newTestUser(t)
		assert.Equal(t, 60, u.Preferences.DailyGoalMinutes)
		assert.Equal(t, 0, u.Statistics.TotalSessions)
		assert.Nil(t, u.Statistics.LastStudyDate)
	})
}

func TestStatisticsApplySessionCompletion(t *testing.T) {
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("accumulates totals and recomputes average", func(t *testing.T) {
		var s Statistics
		s.ApplySessionCompletion(30, day)
		s.ApplySessionCompletion(60, day)

		assert.Equal(t, 2, s.TotalSessions)
		assert.InDelta(t, 1.5, s.TotalStudyHours, 1e-9)
		assert.InDelta(t, 45.0, s.AverageSessionLength, 1e-9)
		require.NotNil(t, s.LastStudyDate)
		assert.Equal(t, day, *s.LastStudyDate)
	})

	t.Run("negative minutes clamp to zero", func(t *testing.T) {
		var s Statistics
		s.ApplySessionCompletion(-10, day)
		assert.Equal(t, 1, s.TotalSessions)
		assert.Equal(t, 0.0, s.TotalStudyHours)
	})
}

func TestStatisticsApplyStreaks(t *testing.T) {
	t.Run("longest streak is monotonic", func(t *testing.T) {
		s := Statistics{LongestStreak: 10}
		s.ApplyStreaks(3, 7, nil)
		assert.Equal(t, 3, s.CurrentStreak)
		assert.Equal(t, 10, s.LongestStreak)

		s.ApplyStreaks(12, 12, nil)
		assert.Equal(t, 12, s.LongestStreak)
	})
}

func TestAchievements(t *testing.T) {
	t.Run("first session unlocks on first completion", func(t *testing.T) {
		u := newTestUser(t)
		u.Statistics.ApplySessionCompletion(25, userNow)

		unlocked := u.CheckAchievements(userNow)
		require.Len(t, unlocked, 1)
		assert.Equal(t, AchievementFirstSession, unlocked[0].Type)
	})

	t.Run("already unlocked achievements are not repeated", func(t *testing.T) {
		u := newTestUser(t)
		u.Statistics.ApplySessionCompletion(25, userNow)
		u.UnlockAchievements(u.CheckAchievements(userNow))

		assert.Empty(t, u.CheckAchievements(userNow))
		assert.True(t, u.HasAchievement(AchievementFirstSession))
	})

	t.Run("streak and hour thresholds", func(t *testing.T) {
		u := newTestUser(t)
		u.Statistics = Statistics{
			TotalSessions:   60,
			TotalStudyHours: 101,
			CurrentStreak:   30,
			LongestStreak:   30,
			CompletedTopics: 5,
		}

		unlocked := u.CheckAchievements(userNow)
		types := make(map[AchievementType]bool)
		for _, a := range unlocked {
			types[a.Type] = true
		}
		assert.True(t, types[AchievementStreak7])
		assert.True(t, types[AchievementStreak30])
		assert.True(t, types[AchievementHours10])
		assert.True(t, types[AchievementHours100])
		assert.True(t, types[AchievementSessions50])
		assert.True(t, types[AchievementTopicMaster])
	})
}

func TestUserLocation(t *testing.T) {
	t.Run("returns configured location", func(t *testing.T) {
		u := newTestUser(t)
		loc := u.Location()
		require.NotNil(t, loc)
		assert.Equal(t, "Asia/Almaty", loc.String())
	})

	t.Run("falls back to UTC on corrupt value", func(t *testing.T) {
		u := newTestUser(t)
		u.Timezone = "Broken/Zone"
		assert.Equal(t, time.UTC, u.Location())
	})
}
