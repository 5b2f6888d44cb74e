package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STATISTICS COMMAND
// The materialized user statistics are maintained incrementally and can
// drift from the session history under rare write races or partial rollup
// failures. This command rebuilds them from the history - the single
// source of truth - and replaces the materialized values when they differ.
// ══════════════════════════════════════════════════════════════════════════════

// DriftToleranceHours is the drift below which hour totals are considered
// equal. Rounding at completion time makes exact float comparison useless.
const DriftToleranceHours = 0.01

// ReconcileStatisticsCommand reconciles one user's statistics.
type ReconcileStatisticsCommand struct {
	UserID        string
	CorrelationID string
}

// Validate validates the command.
func (c ReconcileStatisticsCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("reconcile_statistics: user_id is required")
	}
	return nil
}

// ReconcileStatisticsResult describes what the reconciliation found.
type ReconcileStatisticsResult struct {
	UserID string

	// Drifted is true when the materialized statistics were replaced.
	Drifted bool

	// DriftHours is materialized minus derived total hours.
	DriftHours float64

	// DriftSessions is materialized minus derived session count.
	DriftSessions int

	// Statistics are the authoritative values after reconciliation.
	Statistics user.Statistics
}

// ReconcileStatisticsHandler handles the ReconcileStatisticsCommand.
type ReconcileStatisticsHandler struct {
	userRepo       user.Repository
	sessionRepo    session.Repository
	progressRepo   CompletedTopicsCounter
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// CompletedTopicsCounter is the slice of the progress repository the
// reconciler needs.
type CompletedTopicsCounter interface {
	CountCompleted(ctx context.Context, userID string) (int, error)
}

// NewReconcileStatisticsHandler creates a new ReconcileStatisticsHandler.
func NewReconcileStatisticsHandler(
	userRepo user.Repository,
	sessionRepo session.Repository,
	progressRepo CompletedTopicsCounter,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *ReconcileStatisticsHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ReconcileStatisticsHandler{
		userRepo:       userRepo,
		sessionRepo:    sessionRepo,
		progressRepo:   progressRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the reconcile statistics command.
func (h *ReconcileStatisticsHandler) Handle(
	ctx context.Context,
	cmd ReconcileStatisticsCommand,
) (*ReconcileStatisticsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reconcile_statistics: validation failed: %w", err)
	}

	u, err := h.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}

	completed, err := h.sessionRepo.GetCompletedByUser(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("reconcile_statistics: failed to load sessions: %w", err)
	}

	loc := u.Location()
	now := h.clock.Now()

	agg := session.AggregateUser(completed)
	streaks := session.CalculateStreaks(completedStartTimes(completed), now, loc)

	completedTopics, err := h.progressRepo.CountCompleted(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("reconcile_statistics: failed to count topics: %w", err)
	}

	derived := user.Statistics{
		TotalStudyHours:      agg.TotalStudyHours,
		TotalSessions:        agg.TotalSessions,
		CurrentStreak:        streaks.CurrentStreak,
		LongestStreak:        maxInt(streaks.LongestStreak, u.Statistics.LongestStreak),
		LastStudyDate:        streaks.LastStudyDate,
		CompletedTopics:      completedTopics,
		AverageSessionLength: agg.AverageSessionLength,
	}

	result := &ReconcileStatisticsResult{
		UserID:        cmd.UserID,
		DriftHours:    u.Statistics.TotalStudyHours - derived.TotalStudyHours,
		DriftSessions: u.Statistics.TotalSessions - derived.TotalSessions,
		Statistics:    derived,
	}

	if !statsEqual(u.Statistics, derived) {
		if err := h.userRepo.ReplaceStatistics(ctx, cmd.UserID, derived); err != nil {
			return nil, fmt.Errorf("reconcile_statistics: failed to replace statistics: %w", err)
		}
		result.Drifted = true

		event := shared.NewStatisticsReconciledEvent(cmd.UserID, result.DriftHours, result.DriftSessions)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

// completedStartTimes extracts start times for the streak calculator.
// Sessions completed straight from planned have no start time and fall
// back to their end time.
func completedStartTimes(sessions []session.StudySession) []time.Time {
	times := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		switch {
		case s.StartTime != nil:
			times = append(times, *s.StartTime)
		case s.EndTime != nil:
			times = append(times, *s.EndTime)
		}
	}
	return times
}

func statsEqual(a, b user.Statistics) bool {
	if math.Abs(a.TotalStudyHours-b.TotalStudyHours) > DriftToleranceHours {
		return false
	}
	if a.TotalSessions != b.TotalSessions ||
		a.CurrentStreak != b.CurrentStreak ||
		a.LongestStreak != b.LongestStreak ||
		a.CompletedTopics != b.CompletedTopics {
		return false
	}
	if math.Abs(a.AverageSessionLength-b.AverageSessionLength) > 0.5 {
		return false
	}
	return true
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
