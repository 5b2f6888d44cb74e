package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/pkg/clock"
)

func TestGetStudyStreaksHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("recomputes streaks from session history", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")

		// Three consecutive days ending today.
		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-48*time.Hour), 30)
		seedCompletedSession(t, sessionRepo, "s-2", testNow.Add(-24*time.Hour), 30)
		seedCompletedSession(t, sessionRepo, "s-3", testNow.Add(-1*time.Hour), 30)

		h := NewGetStudyStreaksHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		dto, err := h.Handle(ctx, GetStudyStreaksQuery{UserID: testUserID})
		require.NoError(t, err)

		assert.Equal(t, 3, dto.CurrentStreak)
		assert.Equal(t, 3, dto.LongestStreak)
		assert.Equal(t, 3, dto.TotalStudyDays)
		assert.True(t, dto.StudiedToday)
		assert.False(t, dto.AtRisk)
	})

	t.Run("streak ending yesterday is alive but at risk", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")

		seedCompletedSession(t, sessionRepo, "s-1", testNow.Add(-48*time.Hour), 30)
		seedCompletedSession(t, sessionRepo, "s-2", testNow.Add(-24*time.Hour), 30)

		h := NewGetStudyStreaksHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		dto, err := h.Handle(ctx, GetStudyStreaksQuery{UserID: testUserID})
		require.NoError(t, err)

		assert.Equal(t, 2, dto.CurrentStreak)
		assert.False(t, dto.StudiedToday)
		assert.True(t, dto.AtRisk)
	})

	t.Run("a session completed without ever starting counts its end day", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		sessionRepo := newFakeSessionRepo()
		seedUser(t, userRepo, "UTC")

		// Logged after the fact: completed straight from planned,
		// so the session carries an end time but no start time.
		planned, err := session.NewStudySession(session.NewSessionParams{
			ID:              "s-logged",
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            session.TypeReview,
			PlannedDuration: 30,
		}, testNow.Add(-25*time.Hour))
		require.NoError(t, err)
		done, err := session.Complete(planned, session.CompletionData{}, testNow.Add(-24*time.Hour))
		require.NoError(t, err)
		require.Nil(t, done.StartTime)
		require.NoError(t, sessionRepo.Create(ctx, done))

		seedCompletedSession(t, sessionRepo, "s-today", testNow.Add(-time.Hour), 30)

		h := NewGetStudyStreaksHandler(userRepo, sessionRepo, clock.NewFake(testNow))
		dto, err := h.Handle(ctx, GetStudyStreaksQuery{UserID: testUserID})
		require.NoError(t, err)

		assert.Equal(t, 2, dto.CurrentStreak)
		assert.Equal(t, 2, dto.TotalStudyDays)
		assert.True(t, dto.StudiedToday)
	})

	t.Run("empty history gives zero streaks", func(t *testing.T) {
		userRepo := newFakeUserRepo()
		seedUser(t, userRepo, "UTC")

		h := NewGetStudyStreaksHandler(userRepo, newFakeSessionRepo(), clock.NewFake(testNow))
		dto, err := h.Handle(ctx, GetStudyStreaksQuery{UserID: testUserID})
		require.NoError(t, err)

		assert.Zero(t, dto.CurrentStreak)
		assert.Zero(t, dto.LongestStreak)
		assert.Nil(t, dto.LastStudyDate)
		assert.False(t, dto.AtRisk)
	})
}
