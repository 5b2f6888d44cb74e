package topic

import (
	"context"
)

// StatsDelta describes an atomic increment to topic statistics. Applied as
// a single UPDATE with SET x = x + $n expressions so concurrent session
// completions against the same topic never lose updates.
type StatsDelta struct {
	StudyMinutes int
	Sessions     int
	Completions  int
	// Rating folds one completion rating into the running average.
	// Zero means no rating was supplied.
	Rating int
}

// Repository defines storage operations for topics.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create stores a new topic.
	Create(ctx context.Context, t *Topic) error

	// GetByID returns a topic by ID.
	// Returns ErrTopicNotFound when missing.
	GetByID(ctx context.Context, id string) (*Topic, error)

	// Update stores topic metadata changes (title, milestones, resources).
	Update(ctx context.Context, t *Topic) error

	// Delete removes a topic.
	Delete(ctx context.Context, id string) error

	// List returns topics filtered by category, all when category is empty.
	List(ctx context.Context, category Category, offset, limit int) ([]*Topic, error)

	// ApplyStatsDelta atomically applies a statistics increment.
	ApplyStatsDelta(ctx context.Context, topicID string, delta StatsDelta) error

	// Exists checks whether a topic exists.
	Exists(ctx context.Context, id string) (bool, error)
}
