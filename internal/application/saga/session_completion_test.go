package saga

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

const (
	testUserID  = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	testTopicID = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
)

type completionFixture struct {
	saga         *CompletionSaga
	sessionRepo  *fakeSessionRepo
	userRepo     *fakeUserRepo
	progressRepo *fakeProgressRepo
	topicRepo    *fakeTopicRepo
	bus          *fakeEventBus
	clk          *clock.Fake
}

func newCompletionFixture(t *testing.T) *completionFixture {
	t.Helper()

	f := &completionFixture{
		sessionRepo:  newFakeSessionRepo(),
		userRepo:     newFakeUserRepo(),
		progressRepo: newFakeProgressRepo(),
		topicRepo:    newFakeTopicRepo(),
		bus:          &fakeEventBus{},
		clk:          clock.NewFake(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)),
	}
	f.saga = NewCompletionSaga(f.sessionRepo, f.userRepo, f.progressRepo, f.topicRepo, f.bus, f.clk)

	u, err := user.NewUser(testUserID, "learner@example.com", "Learner", "hash", "UTC", f.clk.Now())
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Create(context.Background(), u))

	tp, err := topic.NewTopic(topic.NewTopicParams{
		ID:       testTopicID,
		Title:    "Go Concurrency",
		Category: topic.CategoryProgramming,
	}, f.clk.Now())
	require.NoError(t, err)
	require.NoError(t, f.topicRepo.Create(context.Background(), tp))

	return f
}

// seedActiveSession plants a session that started an hour ago.
func (f *completionFixture) seedActiveSession(t *testing.T, id string) session.StudySession {
	t.Helper()
	planned, err := session.NewStudySession(session.NewSessionParams{
		ID:              id,
		UserID:          testUserID,
		TopicID:         testTopicID,
		Type:            session.TypeFocused,
		PlannedDuration: 60,
	}, f.clk.Now().Add(-time.Hour))
	require.NoError(t, err)
	active, err := session.Start(planned, f.clk.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.NoError(t, f.sessionRepo.Create(context.Background(), active))
	return active
}

func TestCompletionSaga(t *testing.T) {
	ctx := context.Background()

	t.Run("completes session and rolls up everything", func(t *testing.T) {
		f := newCompletionFixture(t)
		f.seedActiveSession(t, "s-1")

		result, err := f.saga.Execute(ctx, CompletionInput{
			SessionID: "s-1",
			UserID:    testUserID,
			Data: session.CompletionData{
				Productivity: &session.Productivity{Rating: 4},
			},
		})
		require.NoError(t, err)
		assert.Empty(t, result.Warnings)

		// Session is terminal with the duration rule applied.
		assert.Equal(t, session.StatusCompleted, result.Session.Status)
		assert.Equal(t, 60, result.Session.ActualDuration)

		// User statistics were incremented atomically.
		u, err := f.userRepo.GetByID(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Statistics.TotalSessions)
		assert.InDelta(t, 1.0, u.Statistics.TotalStudyHours, 1e-9)
		assert.Equal(t, 1, u.Statistics.CurrentStreak)
		require.NotNil(t, u.Statistics.LastStudyDate)

		// Progress record was created lazily and credited.
		p, err := f.progressRepo.GetByUserAndTopic(ctx, testUserID, testTopicID)
		require.NoError(t, err)
		assert.Equal(t, 60, p.TimeSpentMinutes)

		// Topic aggregate stats moved.
		tp, err := f.topicRepo.GetByID(ctx, testTopicID)
		require.NoError(t, err)
		assert.Equal(t, 60, tp.Stats.TotalStudyMinutes)
		assert.Equal(t, 1, tp.Stats.SessionCount)

		// First session achievement plus the completion event.
		assert.Len(t, f.bus.byType(shared.EventSessionCompleted), 1)
		assert.Len(t, f.bus.byType(shared.EventAchievementUnlocked), 1)
		assert.Len(t, f.bus.byType(shared.EventStreakUpdated), 1)
	})

	t.Run("second completion of the same session is rejected", func(t *testing.T) {
		f := newCompletionFixture(t)
		f.seedActiveSession(t, "s-1")

		_, err := f.saga.Execute(ctx, CompletionInput{SessionID: "s-1", UserID: testUserID})
		require.NoError(t, err)

		_, err = f.saga.Execute(ctx, CompletionInput{SessionID: "s-1", UserID: testUserID})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrTerminalState)

		// Exactly one completion event despite two attempts.
		assert.Len(t, f.bus.byType(shared.EventSessionCompleted), 1)
	})

	t.Run("downstream failure degrades to warning, session stays completed", func(t *testing.T) {
		f := newCompletionFixture(t)
		f.seedActiveSession(t, "s-1")
		f.userRepo.failStatsDelta = errStoreDown

		result, err := f.saga.Execute(ctx, CompletionInput{SessionID: "s-1", UserID: testUserID})
		require.NoError(t, err)
		require.NotEmpty(t, result.Warnings)
		assert.True(t, shared.IsConsistencyWarning(result.Warnings[0]))

		stored, err := f.sessionRepo.GetByID(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, session.StatusCompleted, stored.Status)

		// The completion event still went out.
		assert.Len(t, f.bus.byType(shared.EventSessionCompleted), 1)
	})

	t.Run("foreign session is invisible", func(t *testing.T) {
		f := newCompletionFixture(t)
		f.seedActiveSession(t, "s-1")

		_, err := f.saga.Execute(ctx, CompletionInput{
			SessionID: "s-1",
			UserID:    "cccccccc-cccc-cccc-cccc-cccccccccccc",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("reaching 100 percent completes the topic", func(t *testing.T) {
		f := newCompletionFixture(t)
		f.seedActiveSession(t, "s-1")

		hundred := 100
		result, err := f.saga.Execute(ctx, CompletionInput{
			SessionID:     "s-1",
			UserID:        testUserID,
			TopicProgress: &hundred,
			TopicRating:   5,
		})
		require.NoError(t, err)
		assert.True(t, result.TopicCompleted)

		tp, err := f.topicRepo.GetByID(ctx, testTopicID)
		require.NoError(t, err)
		assert.Equal(t, 1, tp.Stats.CompletionCount)
		assert.InDelta(t, 5.0, tp.Stats.AverageRating, 1e-9)

		u, err := f.userRepo.GetByID(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Statistics.CompletedTopics)

		assert.Len(t, f.bus.byType(shared.EventTopicCompleted), 1)
	})

	t.Run("streaks derive from full history", func(t *testing.T) {
		f := newCompletionFixture(t)

		// A completed session yesterday already in the store.
		yesterday := f.clk.Now().Add(-24 * time.Hour)
		planned, err := session.NewStudySession(session.NewSessionParams{
			ID:              "s-0",
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            session.TypePomodoro,
			PlannedDuration: 25,
		}, yesterday)
		require.NoError(t, err)
		active, err := session.Start(planned, yesterday)
		require.NoError(t, err)
		done, err := session.Complete(active, session.CompletionData{}, yesterday.Add(25*time.Minute))
		require.NoError(t, err)
		require.NoError(t, f.sessionRepo.Create(ctx, done))

		f.seedActiveSession(t, "s-1")
		result, err := f.saga.Execute(ctx, CompletionInput{SessionID: "s-1", UserID: testUserID})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Streaks.CurrentStreak)
		assert.Equal(t, 2, result.Streaks.LongestStreak)
	})
}
