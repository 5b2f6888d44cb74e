package command

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

type lifecycleFixture struct {
	sessionRepo *fakeSessionRepo
	userRepo    *fakeUserRepo
	topicRepo   *fakeTopicRepo
	bus         *fakeEventBus
	clk         *clock.Fake

	plan   *PlanSessionHandler
	start  *StartSessionHandler
	pause  *PauseSessionHandler
	resume *ResumeSessionHandler
	cancel *CancelSessionHandler
	breaks *AddBreakHandler
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	f := &lifecycleFixture{
		sessionRepo: newFakeSessionRepo(),
		userRepo:    newFakeUserRepo(),
		topicRepo:   newFakeTopicRepo(),
		bus:         &fakeEventBus{},
		clk:         clock.NewFake(time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)),
	}
	f.plan = NewPlanSessionHandler(f.sessionRepo, f.userRepo, f.topicRepo, f.bus, f.clk)
	f.start = NewStartSessionHandler(f.sessionRepo, f.bus, f.clk)
	f.pause = NewPauseSessionHandler(f.sessionRepo, f.bus, f.clk)
	f.resume = NewResumeSessionHandler(f.sessionRepo, f.bus, f.clk)
	f.cancel = NewCancelSessionHandler(f.sessionRepo, f.bus, f.clk)
	f.breaks = NewAddBreakHandler(f.sessionRepo, f.clk)

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

// planSession plans a fresh focused session and returns it.
func (f *lifecycleFixture) planSession(t *testing.T) session.StudySession {
	t.Helper()
	result, err := f.plan.Handle(context.Background(), PlanSessionCommand{
		UserID:          testUserID,
		TopicID:         testTopicID,
		Type:            "focused",
		PlannedDuration: 45,
	})
	require.NoError(t, err)
	return result.Session
}

// startSession plans and starts a session in one go.
func (f *lifecycleFixture) startSession(t *testing.T) session.StudySession {
	t.Helper()
	planned := f.planSession(t)
	result, err := f.start.Handle(context.Background(), StartSessionCommand{
		SessionID: planned.ID,
		UserID:    testUserID,
	})
	require.NoError(t, err)
	return result.Session
}

func TestPlanSessionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("plans a session in the planned state", func(t *testing.T) {
		f := newLifecycleFixture(t)

		result, err := f.plan.Handle(ctx, PlanSessionCommand{
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            "pomodoro",
			PlannedDuration: 25,
			Notes:           "sync package deep dive",
			Tags:            []string{"go"},
		})
		require.NoError(t, err)

		s := result.Session
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, session.StatusPlanned, s.Status)
		assert.Equal(t, session.TypePomodoro, s.Type)
		assert.Equal(t, 25, s.PlannedDuration)
		assert.Nil(t, s.StartTime)

		stored, err := f.sessionRepo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.ID, stored.ID)

		assert.Len(t, f.bus.byType(shared.EventSessionPlanned), 1)
	})

	t.Run("rejects an unknown user", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.plan.Handle(ctx, PlanSessionCommand{
			UserID:          "missing",
			TopicID:         testTopicID,
			Type:            "focused",
			PlannedDuration: 45,
		})
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
	})

	t.Run("rejects an unknown topic", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.plan.Handle(ctx, PlanSessionCommand{
			UserID:          testUserID,
			TopicID:         "missing",
			Type:            "focused",
			PlannedDuration: 45,
		})
		assert.ErrorIs(t, err, shared.ErrTopicNotFound)
	})

	t.Run("rejects an out-of-range duration", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.plan.Handle(ctx, PlanSessionCommand{
			UserID:          testUserID,
			TopicID:         testTopicID,
			Type:            "focused",
			PlannedDuration: 0,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidDuration)
		assert.Empty(t, f.sessionRepo.sessions)
	})
}

func TestStartSessionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("moves planned to active and stamps the start time", func(t *testing.T) {
		f := newLifecycleFixture(t)
		planned := f.planSession(t)

		result, err := f.start.Handle(ctx, StartSessionCommand{
			SessionID: planned.ID,
			UserID:    testUserID,
		})
		require.NoError(t, err)

		assert.Equal(t, session.StatusActive, result.Session.Status)
		require.NotNil(t, result.Session.StartTime)
		assert.Equal(t, f.clk.Now(), *result.Session.StartTime)
		assert.Len(t, f.bus.byType(shared.EventSessionStarted), 1)
	})

	t.Run("another user's session is invisible", func(t *testing.T) {
		f := newLifecycleFixture(t)
		planned := f.planSession(t)

		_, err := f.start.Handle(ctx, StartSessionCommand{
			SessionID: planned.ID,
			UserID:    "cccccccc-cccc-cccc-cccc-cccccccccccc",
		})
		assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	})

	t.Run("cannot start an already active session", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		_, err := f.start.Handle(ctx, StartSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		assert.ErrorIs(t, err, shared.ErrSessionNotPlanned)
	})
}

func TestPauseResumeHandlers(t *testing.T) {
	ctx := context.Background()

	t.Run("pause and resume accumulate paused time", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		f.clk.Advance(30 * time.Minute)
		paused, err := f.pause.Handle(ctx, PauseSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		require.NoError(t, err)
		assert.Equal(t, session.StatusPaused, paused.Session.Status)
		assert.Len(t, f.bus.byType(shared.EventSessionPaused), 1)

		// The gap between the pause and the resume is the pause length.
		f.clk.Advance(15 * time.Minute)
		resumed, err := f.resume.Handle(ctx, ResumeSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		require.NoError(t, err)
		assert.Equal(t, session.StatusActive, resumed.Session.Status)
		assert.Equal(t, 15, resumed.PauseMinutes)
		assert.Equal(t, 15, resumed.Session.PausedTime)
		assert.Len(t, f.bus.byType(shared.EventSessionResumed), 1)
	})

	t.Run("pause requires an active session", func(t *testing.T) {
		f := newLifecycleFixture(t)
		planned := f.planSession(t)

		_, err := f.pause.Handle(ctx, PauseSessionCommand{
			SessionID: planned.ID,
			UserID:    testUserID,
		})
		assert.ErrorIs(t, err, shared.ErrSessionNotActive)
	})

	t.Run("resume requires a paused session", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		_, err := f.resume.Handle(ctx, ResumeSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		assert.ErrorIs(t, err, shared.ErrSessionNotPaused)
	})
}

func TestCancelSessionHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("cancels and appends the reason to the notes", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		result, err := f.cancel.Handle(ctx, CancelSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
			Reason:    "lost focus",
		})
		require.NoError(t, err)

		assert.Equal(t, session.StatusCancelled, result.Session.Status)
		assert.False(t, result.Session.IsCompleted)
		require.NotNil(t, result.Session.EndTime)
		assert.Contains(t, result.Session.Notes, "cancelled: lost focus")
		assert.Len(t, f.bus.byType(shared.EventSessionCancelled), 1)
	})

	t.Run("terminal sessions cannot be cancelled again", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		_, err := f.cancel.Handle(ctx, CancelSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		require.NoError(t, err)

		_, err = f.cancel.Handle(ctx, CancelSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		assert.ErrorIs(t, err, shared.ErrSessionTerminal)
	})
}

func TestAddBreakHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("records a closed break with its duration", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		start := f.clk.Now().Add(10 * time.Minute)
		end := start.Add(10 * time.Minute)
		result, err := f.breaks.Handle(ctx, AddBreakCommand{
			SessionID: active.ID,
			UserID:    testUserID,
			StartTime: start,
			EndTime:   &end,
			Kind:      "coffee",
		})
		require.NoError(t, err)

		require.Len(t, result.Session.Breaks, 1)
		b := result.Session.Breaks[0]
		assert.Equal(t, 10, b.Duration)
		assert.Equal(t, "coffee", b.Type)

		stored, err := f.sessionRepo.GetByID(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.BreakCount())
	})

	t.Run("zero start time defaults to now", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		result, err := f.breaks.Handle(ctx, AddBreakCommand{
			SessionID: active.ID,
			UserID:    testUserID,
			Kind:      "walk",
		})
		require.NoError(t, err)
		require.Len(t, result.Session.Breaks, 1)
		assert.Equal(t, f.clk.Now(), result.Session.Breaks[0].StartTime)
	})

	t.Run("rejects a break ending before it starts", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		start := f.clk.Now()
		end := start.Add(-time.Minute)
		_, err := f.breaks.Handle(ctx, AddBreakCommand{
			SessionID: active.ID,
			UserID:    testUserID,
			StartTime: start,
			EndTime:   &end,
		})
		assert.ErrorIs(t, err, shared.ErrBreakOutsideOfSession)
	})

	t.Run("rejects breaks on terminal sessions", func(t *testing.T) {
		f := newLifecycleFixture(t)
		active := f.startSession(t)

		_, err := f.cancel.Handle(ctx, CancelSessionCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		require.NoError(t, err)

		_, err = f.breaks.Handle(ctx, AddBreakCommand{
			SessionID: active.ID,
			UserID:    testUserID,
		})
		assert.ErrorIs(t, err, shared.ErrSessionTerminal)
	})
}
