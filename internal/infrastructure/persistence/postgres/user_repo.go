package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const userColumns = `id, email, password_hash, display_name, timezone, preferences,
	   total_study_hours, total_sessions, current_streak, longest_streak,
	   last_study_date, completed_topics, average_session_length,
	   created_at, updated_at`

// UserRepository implements user.Repository for PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, display_name, timezone, preferences,
			total_study_hours, total_sessions, current_streak, longest_streak,
			last_study_date, completed_topics, average_session_length,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	prefsJSON, err := json.Marshal(preferencesToMap(u.Preferences))
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	_, err = r.conn.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.DisplayName,
		u.Timezone.String(),
		prefsJSON,
		u.Statistics.TotalStudyHours,
		u.Statistics.TotalSessions,
		u.Statistics.CurrentStreak,
		u.Statistics.LongestStreak,
		u.Statistics.LastStudyDate,
		u.Statistics.CompletedTopics,
		u.Statistics.AverageSessionLength,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetByID returns a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	u, err := r.scanUser(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	u.Achievements, err = r.loadAchievements(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	u, err := r.scanUser(r.conn.QueryRow(ctx, query, email))
	if err != nil {
		return nil, err
	}
	u.Achievements, err = r.loadAchievements(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Update updates a user's profile and preferences. Statistics are not
// written here: counters move through ApplyStatsDelta and the streak
// and reconciliation paths.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users SET
			email = $1,
			password_hash = $2,
			display_name = $3,
			timezone = $4,
			preferences = $5,
			updated_at = $6
		WHERE id = $7
	`

	prefsJSON, err := json.Marshal(preferencesToMap(u.Preferences))
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		u.Email,
		u.PasswordHash,
		u.DisplayName,
		u.Timezone.String(),
		prefsJSON,
		time.Now().UTC(),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}

	return nil
}

// Delete removes a user. Sessions and progress cascade.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Statistics
// ─────────────────────────────────────────────────────────────────────────────

// ApplyStatsDelta atomically increments the materialized counters in a
// single UPDATE. Concurrent session completions cannot lose each other's
// updates because the arithmetic happens inside the database.
func (r *UserRepository) ApplyStatsDelta(ctx context.Context, userID string, delta user.StatsDelta) error {
	query := `
		UPDATE users SET
			total_study_hours = total_study_hours + $1,
			total_sessions = total_sessions + $2,
			completed_topics = completed_topics + $3,
			last_study_date = COALESCE($4, last_study_date),
			average_session_length = CASE
				WHEN total_sessions + $2 > 0
				THEN (total_study_hours + $1) * 60 / (total_sessions + $2)
				ELSE 0
			END,
			updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.conn.Exec(ctx, query,
		delta.StudyHours,
		delta.Sessions,
		delta.CompletedTopics,
		delta.LastStudyDate,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply stats delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// UpdateStreaks writes the result of a full streak recalculation.
// longest_streak only ever grows: GREATEST protects the record against
// a recalculation racing an older snapshot.
func (r *UserRepository) UpdateStreaks(ctx context.Context, userID string, current, longest int, lastStudyDate *time.Time) error {
	query := `
		UPDATE users SET
			current_streak = $1,
			longest_streak = GREATEST(longest_streak, $2),
			last_study_date = COALESCE($3, last_study_date),
			updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.conn.Exec(ctx, query, current, longest, lastStudyDate, userID)
	if err != nil {
		return fmt.Errorf("failed to update streaks: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// ReplaceStatistics overwrites the materialized statistics with
// aggregator-derived values. Used by the reconciliation job only.
func (r *UserRepository) ReplaceStatistics(ctx context.Context, userID string, stats user.Statistics) error {
	query := `
		UPDATE users SET
			total_study_hours = $1,
			total_sessions = $2,
			current_streak = $3,
			longest_streak = $4,
			last_study_date = $5,
			completed_topics = $6,
			average_session_length = $7,
			updated_at = NOW()
		WHERE id = $8
	`

	result, err := r.conn.Exec(ctx, query,
		stats.TotalStudyHours,
		stats.TotalSessions,
		stats.CurrentStreak,
		stats.LongestStreak,
		stats.LastStudyDate,
		stats.CompletedTopics,
		stats.AverageSessionLength,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace statistics: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements
// ─────────────────────────────────────────────────────────────────────────────

// SaveAchievements stores unlocked achievements. Re-saving an already
// unlocked achievement is a no-op, keeping the first unlock time.
func (r *UserRepository) SaveAchievements(ctx context.Context, userID string, achievements []user.Achievement) error {
	if len(achievements) == 0 {
		return nil
	}

	query := `
		INSERT INTO achievements (user_id, type, title, unlocked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, type) DO NOTHING
	`

	for _, a := range achievements {
		if _, err := r.conn.Exec(ctx, query, userID, string(a.Type), a.Title, a.UnlockedAt); err != nil {
			return fmt.Errorf("failed to save achievement %s: %w", a.Type, err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Bulk Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetAllIDs returns the IDs of all users, for the reconciliation job.
func (r *UserRepository) GetAllIDs(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, "SELECT id FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks if a user exists by ID.
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks if an email is taken.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence by email: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanUser scans a user from a row.
func (r *UserRepository) scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var tz string
	var prefsJSON []byte

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.DisplayName,
		&tz,
		&prefsJSON,
		&u.Statistics.TotalStudyHours,
		&u.Statistics.TotalSessions,
		&u.Statistics.CurrentStreak,
		&u.Statistics.LongestStreak,
		&u.Statistics.LastStudyDate,
		&u.Statistics.CompletedTopics,
		&u.Statistics.AverageSessionLength,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Timezone = user.Timezone(tz)
	u.Preferences = mapToPreferences(prefsJSON)

	return &u, nil
}

// loadAchievements loads a user's unlocked achievements.
func (r *UserRepository) loadAchievements(ctx context.Context, userID string) ([]user.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT type, title, unlocked_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query achievements: %w", err)
	}
	defer rows.Close()

	var achievements []user.Achievement
	for rows.Next() {
		var a user.Achievement
		var achievementType string
		if err := rows.Scan(&achievementType, &a.Title, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Type = user.AchievementType(achievementType)
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES CONVERSION
// ══════════════════════════════════════════════════════════════════════════════

// preferencesToMap converts Preferences to a map for JSON storage.
func preferencesToMap(prefs user.Preferences) map[string]interface{} {
	return map[string]interface{}{
		"daily_goal_minutes":     prefs.DailyGoalMinutes,
		"preferred_session_type": prefs.PreferredSessionType,
		"reminders_enabled":      prefs.RemindersEnabled,
	}
}

// mapToPreferences converts JSON bytes to Preferences, falling back to
// defaults for missing or malformed fields.
func mapToPreferences(data []byte) user.Preferences {
	prefs := user.DefaultPreferences()

	if len(data) == 0 {
		return prefs
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return prefs
	}

	if v, ok := m["daily_goal_minutes"].(float64); ok {
		prefs.DailyGoalMinutes = int(v)
	}
	if v, ok := m["preferred_session_type"].(string); ok {
		prefs.PreferredSessionType = v
	}
	if v, ok := m["reminders_enabled"].(bool); ok {
		prefs.RemindersEnabled = v
	}

	return prefs
}
