package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `id, user_id, topic_id, status, progress, time_spent_minutes,
	   completed_milestones, completed_resources, is_bookmarked, notes, rating,
	   started_at, completed_at, last_studied_at, created_at, updated_at`

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// GetByUserAndTopic returns the progress record for one user-topic pair.
func (r *ProgressRepository) GetByUserAndTopic(ctx context.Context, userID, topicID string) (*progress.UserProgress, error) {
	query := fmt.Sprintf("SELECT %s FROM user_progress WHERE user_id = $1 AND topic_id = $2", progressColumns)
	return r.scanProgress(r.conn.QueryRow(ctx, query, userID, topicID))
}

// Upsert writes the whole progress record. ON CONFLICT keeps the lazy
// creation race harmless: two first interactions collapse into one row.
func (r *ProgressRepository) Upsert(ctx context.Context, p *progress.UserProgress) error {
	query := `
		INSERT INTO user_progress (
			id, user_id, topic_id, status, progress, time_spent_minutes,
			completed_milestones, completed_resources, is_bookmarked, notes, rating,
			started_at, completed_at, last_studied_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT(user_id, topic_id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			time_spent_minutes = EXCLUDED.time_spent_minutes,
			completed_milestones = EXCLUDED.completed_milestones,
			completed_resources = EXCLUDED.completed_resources,
			is_bookmarked = EXCLUDED.is_bookmarked,
			notes = EXCLUDED.notes,
			rating = EXCLUDED.rating,
			started_at = COALESCE(user_progress.started_at, EXCLUDED.started_at),
			completed_at = COALESCE(user_progress.completed_at, EXCLUDED.completed_at),
			last_studied_at = EXCLUDED.last_studied_at,
			updated_at = EXCLUDED.updated_at
	`

	milestonesJSON, err := json.Marshal(orEmptyTimeMap(p.CompletedMilestones))
	if err != nil {
		return fmt.Errorf("failed to marshal completed milestones: %w", err)
	}
	resourcesJSON, err := json.Marshal(orEmptyTimeMap(p.CompletedResources))
	if err != nil {
		return fmt.Errorf("failed to marshal completed resources: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.TopicID,
		string(p.Status),
		int(p.Progress),
		p.TimeSpentMinutes,
		milestonesJSON,
		resourcesJSON,
		p.IsBookmarked,
		p.Notes,
		p.Rating,
		p.StartedAt,
		p.CompletedAt,
		p.LastStudiedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	return nil
}

// AddStudyTime atomically credits study minutes to an existing record.
func (r *ProgressRepository) AddStudyTime(ctx context.Context, userID, topicID string, minutes int) error {
	query := `
		UPDATE user_progress SET
			time_spent_minutes = time_spent_minutes + $1,
			last_studied_at = NOW(),
			updated_at = NOW()
		WHERE user_id = $2 AND topic_id = $3
	`

	result, err := r.conn.Exec(ctx, query, minutes, userID, topicID)
	if err != nil {
		return fmt.Errorf("failed to add study time: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}
	return nil
}

// GetByUser returns all of a user's progress records.
func (r *ProgressRepository) GetByUser(ctx context.Context, userID string) ([]*progress.UserProgress, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_progress
		WHERE user_id = $1
		ORDER BY last_studied_at DESC NULLS LAST
	`, progressColumns)
	return r.queryProgress(ctx, query, userID)
}

// GetBookmarked returns the user's bookmarked topics' progress.
func (r *ProgressRepository) GetBookmarked(ctx context.Context, userID string) ([]*progress.UserProgress, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_progress
		WHERE user_id = $1 AND is_bookmarked
		ORDER BY updated_at DESC
	`, progressColumns)
	return r.queryProgress(ctx, query, userID)
}

// CountCompleted returns the number of topics the user finished.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_progress WHERE user_id = $1 AND status = 'completed'",
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count completed topics: %w", err)
	}
	return count, nil
}

// Delete removes a progress record.
func (r *ProgressRepository) Delete(ctx context.Context, userID, topicID string) error {
	result, err := r.conn.Exec(ctx,
		"DELETE FROM user_progress WHERE user_id = $1 AND topic_id = $2",
		userID, topicID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanProgress scans a progress record from a row.
func (r *ProgressRepository) scanProgress(row pgx.Row) (*progress.UserProgress, error) {
	var p progress.UserProgress
	var status string
	var progressValue int
	var milestonesJSON, resourcesJSON []byte

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.TopicID,
		&status,
		&progressValue,
		&p.TimeSpentMinutes,
		&milestonesJSON,
		&resourcesJSON,
		&p.IsBookmarked,
		&p.Notes,
		&p.Rating,
		&p.StartedAt,
		&p.CompletedAt,
		&p.LastStudiedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}

	p.Status = progress.Status(status)
	p.Progress = shared.Percent(progressValue)

	p.CompletedMilestones = make(map[string]time.Time)
	_ = json.Unmarshal(milestonesJSON, &p.CompletedMilestones)
	p.CompletedResources = make(map[string]time.Time)
	_ = json.Unmarshal(resourcesJSON, &p.CompletedResources)

	return &p, nil
}

// queryProgress runs a query and scans all returned records.
func (r *ProgressRepository) queryProgress(ctx context.Context, query string, args ...interface{}) ([]*progress.UserProgress, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var records []*progress.UserProgress
	for rows.Next() {
		p, err := r.scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}
	return records, rows.Err()
}

func orEmptyTimeMap(m map[string]time.Time) map[string]time.Time {
	if m == nil {
		return map[string]time.Time{}
	}
	return m
}
