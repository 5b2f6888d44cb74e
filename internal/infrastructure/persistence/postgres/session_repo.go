package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const sessionColumns = `id, user_id, topic_id, type, status, planned_duration,
	   actual_duration, paused_time, start_time, end_time, is_completed,
	   notes, productivity, environment, breaks, focus_metrics, tags,
	   created_at, updated_at`

// SessionRepository implements session.Repository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create stores a new session in the planned state.
func (r *SessionRepository) Create(ctx context.Context, s session.StudySession) error {
	query := `
		INSERT INTO study_sessions (
			id, user_id, topic_id, type, status, planned_duration,
			actual_duration, paused_time, start_time, end_time, is_completed,
			notes, productivity, environment, breaks, focus_metrics, tags,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	cols, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.TopicID,
		s.Type.String(),
		s.Status.String(),
		s.PlannedDuration,
		s.ActualDuration,
		s.PausedTime,
		s.StartTime,
		s.EndTime,
		s.IsCompleted,
		s.Notes,
		cols.productivity,
		cols.environment,
		cols.breaks,
		cols.focusMetrics,
		cols.tags,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID returns a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (session.StudySession, error) {
	query := fmt.Sprintf("SELECT %s FROM study_sessions WHERE id = $1", sessionColumns)
	return r.scanSession(r.conn.QueryRow(ctx, query, id))
}

// Update updates a session unconditionally. Reserved for fields outside
// the lifecycle (notes, tags); transitions go through UpdateWithStatusCheck.
func (r *SessionRepository) Update(ctx context.Context, s session.StudySession) error {
	return r.update(ctx, s, "")
}

// UpdateWithStatusCheck updates a session only if its stored status still
// matches expectedStatus. The WHERE clause makes the check-and-write a
// single atomic statement: of two racing transitions exactly one sees
// RowsAffected = 1, the other gets ErrConcurrentTransition.
func (r *SessionRepository) UpdateWithStatusCheck(ctx context.Context, s session.StudySession, expectedStatus session.Status) error {
	return r.update(ctx, s, expectedStatus)
}

func (r *SessionRepository) update(ctx context.Context, s session.StudySession, expectedStatus session.Status) error {
	query := `
		UPDATE study_sessions SET
			type = $1,
			status = $2,
			planned_duration = $3,
			actual_duration = $4,
			paused_time = $5,
			start_time = $6,
			end_time = $7,
			is_completed = $8,
			notes = $9,
			productivity = $10,
			environment = $11,
			breaks = $12,
			focus_metrics = $13,
			tags = $14,
			updated_at = $15
		WHERE id = $16
	`

	cols, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}

	args := []interface{}{
		s.Type.String(),
		s.Status.String(),
		s.PlannedDuration,
		s.ActualDuration,
		s.PausedTime,
		s.StartTime,
		s.EndTime,
		s.IsCompleted,
		s.Notes,
		cols.productivity,
		cols.environment,
		cols.breaks,
		cols.focusMetrics,
		cols.tags,
		s.UpdatedAt,
		s.ID,
	}
	if expectedStatus != "" {
		query += " AND status = $17"
		args = append(args, expectedStatus.String())
	}

	result, err := r.conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		if expectedStatus == "" {
			return shared.ErrSessionNotFound
		}
		// The row exists but the status moved, or the row is gone.
		// Distinguish the two for a precise error.
		exists, exErr := r.exists(ctx, s.ID)
		if exErr != nil {
			return exErr
		}
		if !exists {
			return shared.ErrSessionNotFound
		}
		return shared.ErrConcurrentTransition
	}

	return nil
}

// Delete removes a session.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM study_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrSessionNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// GetByUser returns a user's sessions, newest first.
func (r *SessionRepository) GetByUser(ctx context.Context, userID string, opts session.ListOptions) ([]session.StudySession, error) {
	query := fmt.Sprintf("SELECT %s FROM study_sessions WHERE user_id = $1", sessionColumns)
	args := []interface{}{userID}

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, opts.Status.String())
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	return r.querySessions(ctx, query, args...)
}

// GetByUserAndTopic returns a user's sessions for one topic.
func (r *SessionRepository) GetByUserAndTopic(ctx context.Context, userID, topicID string, opts session.ListOptions) ([]session.StudySession, error) {
	query := fmt.Sprintf("SELECT %s FROM study_sessions WHERE user_id = $1 AND topic_id = $2", sessionColumns)
	args := []interface{}{userID, topicID}

	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, opts.Status.String())
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	return r.querySessions(ctx, query, args...)
}

// GetCompletedByUser returns all of a user's completed sessions. Input
// for the statistics aggregator and the reconciliation job.
func (r *SessionRepository) GetCompletedByUser(ctx context.Context, userID string) ([]session.StudySession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM study_sessions
		WHERE user_id = $1 AND status = 'completed'
		ORDER BY end_time ASC
	`, sessionColumns)
	return r.querySessions(ctx, query, userID)
}

// GetCompletedInRange returns completed sessions whose study day falls in
// [from, to). The range is keyed on start_time so sessions crossing midnight
// land in the bucket of the day they started; end_time covers sessions
// completed straight from planned, which never started.
func (r *SessionRepository) GetCompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]session.StudySession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM study_sessions
		WHERE user_id = $1 AND status = 'completed'
		  AND COALESCE(start_time, end_time) >= $2
		  AND COALESCE(start_time, end_time) < $3
		ORDER BY COALESCE(start_time, end_time) ASC
	`, sessionColumns)
	return r.querySessions(ctx, query, userID, from, to)
}

// GetStartTimes returns the start times of a user's completed sessions.
// The minimal input for streak calculation: no row scanning overhead.
// Sessions completed straight from planned have no start time; their end
// time stands in so the day still counts toward streaks.
func (r *SessionRepository) GetStartTimes(ctx context.Context, userID string) ([]time.Time, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT COALESCE(start_time, end_time) FROM study_sessions
		WHERE user_id = $1 AND status = 'completed'
		  AND (start_time IS NOT NULL OR end_time IS NOT NULL)
		ORDER BY COALESCE(start_time, end_time) ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query start times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan start time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// GetActiveByUser returns the user's active or paused session, if any.
// The partial unique index guarantees at most one row qualifies.
func (r *SessionRepository) GetActiveByUser(ctx context.Context, userID string) (session.StudySession, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM study_sessions
		WHERE user_id = $1 AND status IN ('active', 'paused')
	`, sessionColumns)
	return r.scanSession(r.conn.QueryRow(ctx, query, userID))
}

// CountByUser returns the number of a user's sessions with the status.
func (r *SessionRepository) CountByUser(ctx context.Context, userID string, status session.Status) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM study_sessions WHERE user_id = $1 AND status = $2",
		userID, status.String(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

func (r *SessionRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM study_sessions WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

type sessionJSONColumns struct {
	productivity []byte
	environment  []byte
	breaks       []byte
	focusMetrics []byte
	tags         []byte
}

// marshalSessionJSON serializes the flexible parts of a session.
func marshalSessionJSON(s session.StudySession) (sessionJSONColumns, error) {
	var cols sessionJSONColumns
	var err error

	if s.Productivity != nil {
		if cols.productivity, err = json.Marshal(s.Productivity); err != nil {
			return cols, fmt.Errorf("failed to marshal productivity: %w", err)
		}
	}
	if cols.environment, err = json.Marshal(s.Environment); err != nil {
		return cols, fmt.Errorf("failed to marshal environment: %w", err)
	}
	breaks := s.Breaks
	if breaks == nil {
		breaks = []session.Break{}
	}
	if cols.breaks, err = json.Marshal(breaks); err != nil {
		return cols, fmt.Errorf("failed to marshal breaks: %w", err)
	}
	if cols.focusMetrics, err = json.Marshal(s.FocusMetrics); err != nil {
		return cols, fmt.Errorf("failed to marshal focus metrics: %w", err)
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	if cols.tags, err = json.Marshal(tags); err != nil {
		return cols, fmt.Errorf("failed to marshal tags: %w", err)
	}

	return cols, nil
}

// scanSession scans a session from a row.
func (r *SessionRepository) scanSession(row pgx.Row) (session.StudySession, error) {
	var s session.StudySession
	var sessionType, status string
	var productivityJSON, environmentJSON, breaksJSON, focusJSON, tagsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TopicID,
		&sessionType,
		&status,
		&s.PlannedDuration,
		&s.ActualDuration,
		&s.PausedTime,
		&s.StartTime,
		&s.EndTime,
		&s.IsCompleted,
		&s.Notes,
		&productivityJSON,
		&environmentJSON,
		&breaksJSON,
		&focusJSON,
		&tagsJSON,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if IsNoRows(err) {
		return session.StudySession{}, shared.ErrSessionNotFound
	}
	if err != nil {
		return session.StudySession{}, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Type = session.Type(sessionType)
	s.Status = session.Status(status)

	if len(productivityJSON) > 0 {
		var p session.Productivity
		if err := json.Unmarshal(productivityJSON, &p); err == nil {
			s.Productivity = &p
		}
	}
	_ = json.Unmarshal(environmentJSON, &s.Environment)
	_ = json.Unmarshal(breaksJSON, &s.Breaks)
	_ = json.Unmarshal(focusJSON, &s.FocusMetrics)
	_ = json.Unmarshal(tagsJSON, &s.Tags)

	return s, nil
}

// querySessions runs a query and scans all returned sessions.
func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]session.StudySession, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []session.StudySession
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
