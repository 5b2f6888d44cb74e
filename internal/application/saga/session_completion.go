// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
// Sagas ensure consistency across operations and handle compensation on failures.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
	"github.com/studyhub/study-tracker/pkg/retry"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION COMPLETION SAGA
// The write path behind "complete session". One completed session fans out
// into several records: the session itself, the user's statistics and
// streaks, the per-topic progress and the topic's aggregate stats.
//
// Flow: Validate → Load Session → Complete (domain) → Persist (optimistic) →
//
//	User Stats → Streaks → Progress → Topic Stats → Achievements → Publish
//
// Only the session persist is fatal. Once the session is durably completed,
// every downstream rollup failure is collected as a consistency warning and
// the saga keeps going: the reconciliation job rebuilds drifted statistics
// from the session history later. Nothing is ever unwound.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionInput contains all data required to complete a session.
type CompletionInput struct {
	// SessionID - the session to complete (required).
	SessionID string

	// UserID - the acting user; must own the session (required).
	UserID string

	// Data - optional notes, productivity, focus metrics and tags.
	Data session.CompletionData

	// TopicProgress - optional new progress percentage for the topic.
	TopicProgress *int

	// TopicRating - rating folded into the topic average if this
	// completion pushes the topic to 100%. Zero means no rating.
	TopicRating int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i CompletionInput) Validate() error {
	if i.SessionID == "" {
		return errors.New("session_completion: session id is required")
	}
	if i.UserID == "" {
		return errors.New("session_completion: user id is required")
	}
	return nil
}

// CompletionResult contains the outcome of a completed session.
type CompletionResult struct {
	// Session - the completed session snapshot.
	Session session.StudySession

	// Streaks - the recomputed streak counters.
	Streaks session.StreakResult

	// TopicCompleted - true when this completion pushed the topic to 100%.
	TopicCompleted bool

	// UnlockedAchievements - achievements earned by this completion.
	UnlockedAchievements []user.Achievement

	// Warnings - non-fatal rollup failures. The session is durably
	// completed even when this is non-empty.
	Warnings []*shared.ConsistencyWarning

	// CompletedAt - when the session was completed.
	CompletedAt time.Time
}

// CompletionStep represents a step in the completion process.
type CompletionStep string

const (
	StepValidate          CompletionStep = "validate"
	StepLoadSession       CompletionStep = "load_session"
	StepCompleteSession   CompletionStep = "complete_session"
	StepPersistSession    CompletionStep = "persist_session"
	StepUserStats         CompletionStep = "user_stats"
	StepStreaks           CompletionStep = "streaks"
	StepTopicProgress     CompletionStep = "topic_progress"
	StepTopicStats        CompletionStep = "topic_stats"
	StepAchievements      CompletionStep = "achievements"
	StepPublishEvents     CompletionStep = "publish_events"
	StepCompletionDone    CompletionStep = "done"
)

// ══════════════════════════════════════════════════════════════════════════════
// SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionSaga orchestrates the session completion write path.
type CompletionSaga struct {
	sessionRepo  session.Repository
	userRepo     user.Repository
	progressRepo progress.Repository
	topicRepo    topic.Repository
	eventBus     shared.EventPublisher
	clock        clock.Clock

	// rollupRetrier retries transient failures of downstream rollups
	// before they are downgraded to consistency warnings.
	rollupRetrier *retry.Retrier
}

// NewCompletionSaga creates a new CompletionSaga with all dependencies.
func NewCompletionSaga(
	sessionRepo session.Repository,
	userRepo user.Repository,
	progressRepo progress.Repository,
	topicRepo topic.Repository,
	eventBus shared.EventPublisher,
	clk clock.Clock,
) *CompletionSaga {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CompletionSaga{
		sessionRepo:   sessionRepo,
		userRepo:      userRepo,
		progressRepo:  progressRepo,
		topicRepo:     topicRepo,
		eventBus:      eventBus,
		clock:         clk,
		rollupRetrier: retry.RollupRetrier(),
	}
}

// Execute runs the complete session completion process.
func (s *CompletionSaga) Execute(ctx context.Context, input CompletionInput) (*CompletionResult, error) {
	if err := input.Validate(); err != nil {
		return nil, s.wrapError(StepValidate, err)
	}

	// Load and transition. Both are pure reads/computations: nothing has
	// been written yet, so any failure here is a clean rejection.
	current, err := s.sessionRepo.GetByID(ctx, input.SessionID)
	if err != nil {
		return nil, s.wrapError(StepLoadSession, err)
	}
	if current.UserID != input.UserID {
		return nil, s.wrapError(StepLoadSession, shared.ErrSessionNotFound)
	}

	now := s.clock.Now()
	completed, err := session.Complete(current, input.Data, now)
	if err != nil {
		return nil, s.wrapError(StepCompleteSession, err)
	}

	// The one fatal write. The optimistic status check makes sure exactly
	// one of two racing completions wins; the loser gets a state
	// transition error and must re-read.
	if err := s.sessionRepo.UpdateWithStatusCheck(ctx, completed, current.Status); err != nil {
		return nil, s.wrapError(StepPersistSession, err)
	}

	result := &CompletionResult{
		Session:     completed,
		CompletedAt: now,
	}

	// From here on the session is durably completed. Downstream rollups
	// are best-effort: retry transient failures, then record a warning
	// and continue.
	u := s.rollupUserStats(ctx, input, completed, result)
	s.rollupStreaks(ctx, input, u, result)
	s.rollupProgress(ctx, input, completed, result)
	s.rollupTopicStats(ctx, input, completed, result)
	s.unlockAchievements(ctx, u, result)
	s.publishEvents(input, completed, result)

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLLUP STEPS
// ══════════════════════════════════════════════════════════════════════════════

// rollupUserStats applies the atomic statistics increment and returns the
// loaded user for later steps (nil when the load failed).
func (s *CompletionSaga) rollupUserStats(
	ctx context.Context,
	input CompletionInput,
	completed session.StudySession,
	result *CompletionResult,
) *user.User {
	u, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepUserStats), "failed to load user", err))
		return nil
	}

	studyDay := startOfDayIn(completed, u.Location())
	delta := user.StatsDelta{
		StudyHours:    float64(completed.ActualDuration) / 60.0,
		Sessions:      1,
		LastStudyDate: studyDay,
	}

	err = s.rollupRetrier.Do(ctx, func(ctx context.Context) error {
		return s.userRepo.ApplyStatsDelta(ctx, input.UserID, delta)
	})
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepUserStats), "failed to apply statistics delta", err))
	}
	return u
}

// rollupStreaks recomputes streak counters from the full session history.
func (s *CompletionSaga) rollupStreaks(
	ctx context.Context,
	input CompletionInput,
	u *user.User,
	result *CompletionResult,
) {
	loc := time.UTC
	if u != nil {
		loc = u.Location()
	}

	starts, err := s.sessionRepo.GetStartTimes(ctx, input.UserID)
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepStreaks), "failed to load session history", err))
		return
	}

	streaks := session.CalculateStreaks(starts, result.CompletedAt, loc)
	result.Streaks = streaks

	err = s.rollupRetrier.Do(ctx, func(ctx context.Context) error {
		return s.userRepo.UpdateStreaks(ctx, input.UserID,
			streaks.CurrentStreak, streaks.LongestStreak, streaks.LastStudyDate)
	})
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepStreaks), "failed to save streaks", err))
		return
	}

	event := shared.NewStreakUpdatedEvent(input.UserID, streaks.CurrentStreak, streaks.LongestStreak)
	if input.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(input.CorrelationID)
	}
	_ = s.eventBus.Publish(event)
}

// rollupProgress records study time on the per-topic progress, creating
// the record lazily on first study.
func (s *CompletionSaga) rollupProgress(
	ctx context.Context,
	input CompletionInput,
	completed session.StudySession,
	result *CompletionResult,
) {
	err := s.rollupRetrier.Do(ctx, func(ctx context.Context) error {
		p, err := s.progressRepo.GetByUserAndTopic(ctx, input.UserID, completed.TopicID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			p, err = progress.NewUserProgress(uuid.NewString(), input.UserID, completed.TopicID, result.CompletedAt)
			if err != nil {
				return retry.Permanent(err)
			}
		}

		p.RecordStudyTime(completed.ActualDuration, result.CompletedAt)

		if input.TopicProgress != nil {
			if p.SetProgress(shared.Percent(*input.TopicProgress), result.CompletedAt) {
				result.TopicCompleted = true
				if input.TopicRating != 0 {
					if err := p.Complete(input.TopicRating, result.CompletedAt); err != nil {
						return retry.Permanent(err)
					}
				}
			}
		}

		return s.progressRepo.Upsert(ctx, p)
	})
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepTopicProgress), "failed to update topic progress", err))
	}

	if result.TopicCompleted {
		err := s.rollupRetrier.Do(ctx, func(ctx context.Context) error {
			return s.userRepo.ApplyStatsDelta(ctx, input.UserID, user.StatsDelta{CompletedTopics: 1})
		})
		if err != nil {
			result.Warnings = append(result.Warnings,
				shared.NewConsistencyWarning(string(StepTopicProgress), "failed to count completed topic", err))
		}

		event := shared.NewTopicCompletedEvent(completed.TopicID, input.UserID, input.TopicRating)
		if input.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(input.CorrelationID)
		}
		_ = s.eventBus.Publish(event)
	}
}

// rollupTopicStats applies the atomic increment on the topic's aggregate
// statistics.
func (s *CompletionSaga) rollupTopicStats(
	ctx context.Context,
	input CompletionInput,
	completed session.StudySession,
	result *CompletionResult,
) {
	delta := topic.StatsDelta{
		StudyMinutes: completed.ActualDuration,
		Sessions:     1,
	}
	if result.TopicCompleted {
		delta.Completions = 1
		delta.Rating = input.TopicRating
	}

	err := s.rollupRetrier.Do(ctx, func(ctx context.Context) error {
		return s.topicRepo.ApplyStatsDelta(ctx, completed.TopicID, delta)
	})
	if err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepTopicStats), "failed to update topic statistics", err))
	}
}

// unlockAchievements checks thresholds against the freshly rolled-up
// statistics and persists new unlocks.
func (s *CompletionSaga) unlockAchievements(ctx context.Context, u *user.User, result *CompletionResult) {
	if u == nil {
		return
	}

	// Fold this completion into the in-memory snapshot so threshold
	// checks see the session that was just recorded.
	u.Statistics.ApplySessionCompletion(result.Session.ActualDuration, result.CompletedAt)
	u.Statistics.ApplyStreaks(result.Streaks.CurrentStreak, result.Streaks.LongestStreak, result.Streaks.LastStudyDate)
	if result.TopicCompleted {
		u.Statistics.CompletedTopics++
	}

	unlocked := u.CheckAchievements(result.CompletedAt)
	if len(unlocked) == 0 {
		return
	}

	if err := s.userRepo.SaveAchievements(ctx, u.ID, unlocked); err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepAchievements), "failed to save achievements", err))
		return
	}

	result.UnlockedAchievements = unlocked
	for _, a := range unlocked {
		_ = s.eventBus.Publish(shared.NewAchievementUnlockedEvent(u.ID, string(a.Type)))
	}
}

// publishEvents emits the completion event itself.
func (s *CompletionSaga) publishEvents(input CompletionInput, completed session.StudySession, result *CompletionResult) {
	event := shared.NewSessionCompletedEvent(
		completed.ID,
		completed.UserID,
		completed.TopicID,
		completed.Type.String(),
		completed.ActualDuration,
		completed.PausedTime,
		*completed.EndTime,
	)
	if input.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(input.CorrelationID)
	}
	if err := s.eventBus.Publish(event); err != nil {
		result.Warnings = append(result.Warnings,
			shared.NewConsistencyWarning(string(StepPublishEvents), "failed to publish completion event", err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS & ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// startOfDayIn maps the session's end time to the start of the user's
// calendar day.
func startOfDayIn(completed session.StudySession, loc *time.Location) *time.Time {
	if completed.EndTime == nil {
		return nil
	}
	local := completed.EndTime.In(loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return &day
}

// wrapError wraps an error with saga context.
func (s *CompletionSaga) wrapError(step CompletionStep, err error) error {
	return &CompletionError{
		Step:    step,
		Cause:   err,
		Message: fmt.Sprintf("session completion failed at step '%s': %v", step, err),
	}
}

// CompletionError represents a fatal error before the session was
// durably completed.
type CompletionError struct {
	Step    CompletionStep
	Cause   error
	Message string
}

// Error implements the error interface.
func (e *CompletionError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *CompletionError) Unwrap() error {
	return e.Cause
}
