package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
)

func TestListSessionsHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("newest sessions come first", func(t *testing.T) {
		sessionRepo := newFakeSessionRepo()
		seedCompletedSession(t, sessionRepo, "s-old", testNow.Add(-48*time.Hour), 30)
		seedCompletedSession(t, sessionRepo, "s-new", testNow.Add(-1*time.Hour), 30)

		h := NewListSessionsHandler(sessionRepo)
		result, err := h.Handle(ctx, ListSessionsQuery{UserID: testUserID})
		require.NoError(t, err)

		require.Len(t, result.Sessions, 2)
		assert.Equal(t, "s-new", result.Sessions[0].ID)
		assert.Equal(t, "s-old", result.Sessions[1].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		sessionRepo := newFakeSessionRepo()
		seedCompletedSession(t, sessionRepo, "s-done", testNow.Add(-2*time.Hour), 30)

		planned, err := session.NewStudySession(session.NewSessionParams{
			ID:              "s-planned",
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            session.TypePomodoro,
			PlannedDuration: 25,
		}, testNow)
		require.NoError(t, err)
		require.NoError(t, sessionRepo.Create(ctx, planned))

		h := NewListSessionsHandler(sessionRepo)
		result, err := h.Handle(ctx, ListSessionsQuery{UserID: testUserID, Status: "completed"})
		require.NoError(t, err)

		require.Len(t, result.Sessions, 1)
		assert.Equal(t, "s-done", result.Sessions[0].ID)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		h := NewListSessionsHandler(newFakeSessionRepo())
		_, err := h.Handle(ctx, ListSessionsQuery{UserID: testUserID, Status: "done"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("limit is capped", func(t *testing.T) {
		h := NewListSessionsHandler(newFakeSessionRepo())
		result, err := h.Handle(ctx, ListSessionsQuery{UserID: testUserID, Limit: 10000})
		require.NoError(t, err)
		assert.Equal(t, MaxSessionsLimit, result.Limit)
	})
}

func TestGetActiveSessionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the running session with elapsed time", func(t *testing.T) {
		sessionRepo := newFakeSessionRepo()

		planned, err := session.NewStudySession(session.NewSessionParams{
			ID:              "s-active",
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            session.TypeFocused,
			PlannedDuration: 60,
		}, testNow.Add(-20*time.Minute))
		require.NoError(t, err)
		active, err := session.Start(planned, testNow.Add(-20*time.Minute))
		require.NoError(t, err)
		require.NoError(t, sessionRepo.Create(ctx, active))

		h := NewGetActiveSessionHandler(sessionRepo, clock.NewFake(testNow))
		dto, err := h.Handle(ctx, GetActiveSessionQuery{UserID: testUserID})
		require.NoError(t, err)

		assert.Equal(t, "s-active", dto.ID)
		assert.Equal(t, 20, dto.ElapsedMinutes)
		assert.Equal(t, 40, dto.RemainingMinutes)
	})

	t.Run("no active session", func(t *testing.T) {
		h := NewGetActiveSessionHandler(newFakeSessionRepo(), clock.NewFake(testNow))
		_, err := h.Handle(ctx, GetActiveSessionQuery{UserID: testUserID})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
