// Package jobs contains implementations of scheduled jobs for Study Tracker Hub.
// Each job keeps the materialized read models honest against the session
// history, which is the single source of truth.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studyhub/study-tracker/internal/application/command"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE STATISTICS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileStatisticsJob rebuilds every user's materialized statistics from
// their completed session history. Incremental counters drift when a process
// dies between the session write and the stats update; this job is the
// correction pass.
type ReconcileStatisticsJob struct {
	userRepo  user.Repository
	reconcile *command.ReconcileStatisticsHandler
	log       *logger.Logger

	config ReconcileStatisticsConfig

	// State (for metrics)
	lastRunStats atomic.Value // *ReconcileStats
}

// ReconcileStatisticsConfig contains configuration for the reconciliation job.
type ReconcileStatisticsConfig struct {
	// Concurrency is the number of users reconciled in parallel.
	Concurrency int

	// Timeout is the maximum duration for the entire run.
	Timeout time.Duration

	// FailureRateThreshold aborts with an error when exceeded, so the
	// scheduler surfaces a systemic problem instead of a per-user one.
	FailureRateThreshold float64
}

// DefaultReconcileStatisticsConfig returns sensible defaults.
func DefaultReconcileStatisticsConfig() ReconcileStatisticsConfig {
	return ReconcileStatisticsConfig{
		Concurrency:          5,
		Timeout:              10 * time.Minute,
		FailureRateThreshold: 0.5,
	}
}

// ReconcileStats contains statistics from a reconciliation run.
type ReconcileStats struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	Duration     time.Duration
	TotalUsers   int
	CheckedCount int
	DriftedCount int
	FailedCount  int
	Errors       []ReconcileError
}

// ReconcileError represents a per-user reconciliation failure.
type ReconcileError struct {
	UserID     string
	Error      error
	OccurredAt time.Time
}

// NewReconcileStatisticsJob creates a new reconciliation job.
func NewReconcileStatisticsJob(
	userRepo user.Repository,
	reconcile *command.ReconcileStatisticsHandler,
	log *logger.Logger,
	config ReconcileStatisticsConfig,
) *ReconcileStatisticsJob {
	if log == nil {
		log = logger.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.FailureRateThreshold <= 0 {
		config.FailureRateThreshold = 0.5
	}

	return &ReconcileStatisticsJob{
		userRepo:  userRepo,
		reconcile: reconcile,
		log:       log.With(logger.String("job", "reconcile_statistics")),
		config:    config,
	}
}

// Name returns the job name.
func (j *ReconcileStatisticsJob) Name() string {
	return "reconcile_statistics"
}

// Description returns a human-readable description.
func (j *ReconcileStatisticsJob) Description() string {
	return "Rebuilds materialized user statistics from session history"
}

// Run executes the reconciliation job.
func (j *ReconcileStatisticsJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &ReconcileStats{
		StartedAt: startedAt,
		Errors:    make([]ReconcileError, 0),
	}

	j.log.Info("starting reconcile_statistics job")

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	userIDs, err := j.userRepo.GetAllIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	stats.TotalUsers = len(userIDs)
	j.log.Info("found users to reconcile", logger.Int("count", stats.TotalUsers))

	if stats.TotalUsers == 0 {
		j.finalize(stats)
		return nil
	}

	j.reconcileConcurrently(ctx, userIDs, stats)
	j.finalize(stats)

	j.log.Info("reconcile_statistics job completed",
		logger.Duration("duration", stats.Duration),
		logger.Int("total", stats.TotalUsers),
		logger.Int("checked", stats.CheckedCount),
		logger.Int("drifted", stats.DriftedCount),
		logger.Int("failed", stats.FailedCount),
	)

	failureRate := float64(stats.FailedCount) / float64(stats.TotalUsers)
	if failureRate > j.config.FailureRateThreshold {
		return fmt.Errorf("reconciliation failed for %d/%d users",
			stats.FailedCount, stats.TotalUsers)
	}

	return nil
}

// reconcileConcurrently reconciles users using a worker pool.
func (j *ReconcileStatisticsJob) reconcileConcurrently(ctx context.Context, userIDs []string, stats *ReconcileStats) {
	var (
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, j.config.Concurrency)
		mu        sync.Mutex
	)

	for _, id := range userIDs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(userID string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := j.reconcile.Handle(ctx, command.ReconcileStatisticsCommand{
				UserID: userID,
			})

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				stats.FailedCount++
				stats.Errors = append(stats.Errors, ReconcileError{
					UserID:     userID,
					Error:      err,
					OccurredAt: time.Now(),
				})
				j.log.Error("failed to reconcile user",
					logger.UserID(userID),
					logger.Err(err),
				)
				return
			}

			stats.CheckedCount++
			if result.Drifted {
				stats.DriftedCount++
				j.log.Warn("statistics drift corrected",
					logger.UserID(userID),
					logger.Float64("drift_hours", result.DriftHours),
					logger.Int("drift_sessions", result.DriftSessions),
				)
			}
		}(id)
	}

	wg.Wait()
}

func (j *ReconcileStatisticsJob) finalize(stats *ReconcileStats) {
	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	j.lastRunStats.Store(stats)
}

// LastRunStats returns statistics from the last run.
func (j *ReconcileStatisticsJob) LastRunStats() *ReconcileStats {
	stats := j.lastRunStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*ReconcileStats)
}
