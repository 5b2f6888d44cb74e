package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOPIC REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const topicColumns = `id, title, description, category, difficulty, estimated_hours,
	   milestones, resources, created_by, total_study_minutes, session_count,
	   completion_count, average_rating, rating_count, created_at, updated_at`

// TopicRepository implements topic.Repository for PostgreSQL.
type TopicRepository struct {
	conn *Connection
}

// NewTopicRepository creates a new TopicRepository.
func NewTopicRepository(conn *Connection) *TopicRepository {
	return &TopicRepository{conn: conn}
}

// Create creates a new topic.
func (r *TopicRepository) Create(ctx context.Context, t *topic.Topic) error {
	query := `
		INSERT INTO topics (
			id, title, description, category, difficulty, estimated_hours,
			milestones, resources, created_by, total_study_minutes, session_count,
			completion_count, average_rating, rating_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	milestonesJSON, err := json.Marshal(orEmptyMilestones(t.Milestones))
	if err != nil {
		return fmt.Errorf("failed to marshal milestones: %w", err)
	}
	resourcesJSON, err := json.Marshal(orEmptyResources(t.Resources))
	if err != nil {
		return fmt.Errorf("failed to marshal resources: %w", err)
	}

	var createdBy *string
	if t.CreatedBy != "" {
		createdBy = &t.CreatedBy
	}

	_, err = r.conn.Exec(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		string(t.Category),
		string(t.Difficulty),
		t.EstimatedHours,
		milestonesJSON,
		resourcesJSON,
		createdBy,
		t.Stats.TotalStudyMinutes,
		t.Stats.SessionCount,
		t.Stats.CompletionCount,
		t.Stats.AverageRating,
		t.Stats.RatingCount,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create topic: %w", err)
	}

	return nil
}

// GetByID returns a topic by ID.
func (r *TopicRepository) GetByID(ctx context.Context, id string) (*topic.Topic, error) {
	query := fmt.Sprintf("SELECT %s FROM topics WHERE id = $1", topicColumns)
	return r.scanTopic(r.conn.QueryRow(ctx, query, id))
}

// Update updates a topic's catalog fields. Aggregate stats move through
// ApplyStatsDelta only.
func (r *TopicRepository) Update(ctx context.Context, t *topic.Topic) error {
	query := `
		UPDATE topics SET
			title = $1,
			description = $2,
			category = $3,
			difficulty = $4,
			estimated_hours = $5,
			milestones = $6,
			resources = $7,
			updated_at = $8
		WHERE id = $9
	`

	milestonesJSON, err := json.Marshal(orEmptyMilestones(t.Milestones))
	if err != nil {
		return fmt.Errorf("failed to marshal milestones: %w", err)
	}
	resourcesJSON, err := json.Marshal(orEmptyResources(t.Resources))
	if err != nil {
		return fmt.Errorf("failed to marshal resources: %w", err)
	}

	result, err := r.conn.Exec(ctx, query,
		t.Title,
		t.Description,
		string(t.Category),
		string(t.Difficulty),
		t.EstimatedHours,
		milestonesJSON,
		resourcesJSON,
		time.Now().UTC(),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTopicNotFound
	}
	return nil
}

// Delete removes a topic. Sessions and progress cascade.
func (r *TopicRepository) Delete(ctx context.Context, id string) error {
	result, err := r.conn.Exec(ctx, "DELETE FROM topics WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTopicNotFound
	}
	return nil
}

// List returns topics, optionally filtered by category.
func (r *TopicRepository) List(ctx context.Context, category topic.Category, offset, limit int) ([]*topic.Topic, error) {
	query := fmt.Sprintf("SELECT %s FROM topics", topicColumns)
	args := []interface{}{}

	if category != "" {
		query += " WHERE category = $1"
		args = append(args, string(category))
	}
	query += fmt.Sprintf(" ORDER BY title ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []*topic.Topic
	for rows.Next() {
		t, err := r.scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ApplyStatsDelta atomically increments the topic's aggregate counters.
// The running rating average is recomputed inside the same UPDATE so
// concurrent completions cannot lose ratings.
func (r *TopicRepository) ApplyStatsDelta(ctx context.Context, topicID string, delta topic.StatsDelta) error {
	query := `
		UPDATE topics SET
			total_study_minutes = total_study_minutes + $1,
			session_count = session_count + $2,
			completion_count = completion_count + $3,
			average_rating = CASE
				WHEN $4 > 0 THEN (average_rating * rating_count + $4) / (rating_count + 1)
				ELSE average_rating
			END,
			rating_count = CASE WHEN $4 > 0 THEN rating_count + 1 ELSE rating_count END,
			updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.conn.Exec(ctx, query,
		delta.StudyMinutes,
		delta.Sessions,
		delta.Completions,
		delta.Rating,
		topicID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply topic stats delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrTopicNotFound
	}
	return nil
}

// Exists checks if a topic exists by ID.
func (r *TopicRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM topics WHERE id = $1)",
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check topic existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

// scanTopic scans a topic from a row.
func (r *TopicRepository) scanTopic(row pgx.Row) (*topic.Topic, error) {
	var t topic.Topic
	var category, difficulty string
	var milestonesJSON, resourcesJSON []byte
	var createdBy *string

	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&category,
		&difficulty,
		&t.EstimatedHours,
		&milestonesJSON,
		&resourcesJSON,
		&createdBy,
		&t.Stats.TotalStudyMinutes,
		&t.Stats.SessionCount,
		&t.Stats.CompletionCount,
		&t.Stats.AverageRating,
		&t.Stats.RatingCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrTopicNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan topic: %w", err)
	}

	t.Category = topic.Category(category)
	t.Difficulty = topic.Difficulty(difficulty)
	if createdBy != nil {
		t.CreatedBy = *createdBy
	}
	_ = json.Unmarshal(milestonesJSON, &t.Milestones)
	_ = json.Unmarshal(resourcesJSON, &t.Resources)

	return &t, nil
}

func orEmptyMilestones(m []topic.Milestone) []topic.Milestone {
	if m == nil {
		return []topic.Milestone{}
	}
	return m
}

func orEmptyResources(res []topic.Resource) []topic.Resource {
	if res == nil {
		return []topic.Resource{}
	}
	return res
}
