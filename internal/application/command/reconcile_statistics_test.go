package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

type reconcileFixture struct {
	handler      *ReconcileStatisticsHandler
	userRepo     *fakeUserRepo
	sessionRepo  *fakeSessionRepo
	progressRepo *fakeProgressRepo
	bus          *fakeEventBus
	clk          *clock.Fake
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()

	f := &reconcileFixture{
		userRepo:     newFakeUserRepo(),
		sessionRepo:  newFakeSessionRepo(),
		progressRepo: newFakeProgressRepo(),
		bus:          &fakeEventBus{},
		clk:          clock.NewFake(time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)),
	}
	f.handler = NewReconcileStatisticsHandler(f.userRepo, f.sessionRepo, f.progressRepo, f.bus, f.clk)

	u, err := user.NewUser(testUserID, "learner@example.com", "Learner", "hash", "UTC", f.clk.Now())
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Create(context.Background(), u))

	return f
}

// seedCompletedSession plants a session that ran for the given number of
// minutes starting at start.
func (f *reconcileFixture) seedCompletedSession(t *testing.T, id string, start time.Time, minutes int) {
	t.Helper()
	planned, err := session.NewStudySession(session.NewSessionParams{
		ID:              id,
		UserID:          testUserID,
		TopicID:         testTopicID,
		Type:            session.TypeFocused,
		PlannedDuration: minutes,
	}, start)
	require.NoError(t, err)
	active, err := session.Start(planned, start)
	require.NoError(t, err)
	completed, err := session.Complete(active, session.CompletionData{}, start.Add(time.Duration(minutes)*time.Minute))
	require.NoError(t, err)
	require.NoError(t, f.sessionRepo.Create(context.Background(), completed))
}

func TestReconcileStatisticsHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuilds drifted statistics from the session history", func(t *testing.T) {
		f := newReconcileFixture(t)

		// A two-day history: 30 minutes yesterday, an hour today.
		today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
		f.seedCompletedSession(t, "s-1", today.AddDate(0, 0, -1), 30)
		f.seedCompletedSession(t, "s-2", today, 60)

		// One topic completed on record.
		p, err := progress.NewUserProgress("p-1", testUserID, testTopicID, f.clk.Now())
		require.NoError(t, err)
		p.SetProgress(100, f.clk.Now())
		require.NoError(t, f.progressRepo.Upsert(ctx, p))

		// The materialized statistics still say zero.
		result, err := f.handler.Handle(ctx, ReconcileStatisticsCommand{UserID: testUserID})
		require.NoError(t, err)

		assert.True(t, result.Drifted)
		assert.InDelta(t, -1.5, result.DriftHours, 1e-9)
		assert.Equal(t, -2, result.DriftSessions)

		u, err := f.userRepo.GetByID(ctx, testUserID)
		require.NoError(t, err)
		assert.InDelta(t, 1.5, u.Statistics.TotalStudyHours, 1e-9)
		assert.Equal(t, 2, u.Statistics.TotalSessions)
		assert.Equal(t, 2, u.Statistics.CurrentStreak)
		assert.Equal(t, 2, u.Statistics.LongestStreak)
		assert.Equal(t, 1, u.Statistics.CompletedTopics)
		assert.InDelta(t, 45.0, u.Statistics.AverageSessionLength, 0.01)
		require.NotNil(t, u.Statistics.LastStudyDate)

		assert.Len(t, f.bus.byType(shared.EventStatisticsReconciled), 1)
	})

	t.Run("a second run finds nothing to fix", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.seedCompletedSession(t, "s-1", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 60)

		first, err := f.handler.Handle(ctx, ReconcileStatisticsCommand{UserID: testUserID})
		require.NoError(t, err)
		require.True(t, first.Drifted)

		second, err := f.handler.Handle(ctx, ReconcileStatisticsCommand{UserID: testUserID})
		require.NoError(t, err)
		assert.False(t, second.Drifted)
		assert.Len(t, f.bus.byType(shared.EventStatisticsReconciled), 1)
	})

	t.Run("a higher stored longest streak survives the rebuild", func(t *testing.T) {
		f := newReconcileFixture(t)
		f.seedCompletedSession(t, "s-1", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), 60)

		// The user once held a 14-day streak; the reconciler must not
		// shrink it to what the retained history shows.
		require.NoError(t, f.userRepo.ReplaceStatistics(ctx, testUserID, user.Statistics{
			LongestStreak: 14,
		}))

		result, err := f.handler.Handle(ctx, ReconcileStatisticsCommand{UserID: testUserID})
		require.NoError(t, err)
		require.True(t, result.Drifted)

		u, err := f.userRepo.GetByID(ctx, testUserID)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Statistics.CurrentStreak)
		assert.Equal(t, 14, u.Statistics.LongestStreak)
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newReconcileFixture(t)

		_, err := f.handler.Handle(ctx, ReconcileStatisticsCommand{UserID: "missing"})
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
	})
}
