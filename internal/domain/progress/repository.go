package progress

import (
	"context"
)

// Repository defines storage operations for per-user topic progress.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// GetByUserAndTopic returns the progress record for a (user, topic)
	// pair. Returns ErrProgressNotFound when the user has never touched
	// the topic.
	GetByUserAndTopic(ctx context.Context, userID, topicID string) (*UserProgress, error)

	// Upsert stores the record, creating it on first interaction.
	// The (user_id, topic_id) pair is unique.
	Upsert(ctx context.Context, p *UserProgress) error

	// AddStudyTime atomically adds minutes and stamps last_studied_at.
	// Used by the session completion flow so parallel completions
	// against the same topic never lose time.
	AddStudyTime(ctx context.Context, userID, topicID string, minutes int) error

	// GetByUser returns all progress records of a user.
	GetByUser(ctx context.Context, userID string) ([]*UserProgress, error)

	// GetBookmarked returns the user's bookmarked topics' progress.
	GetBookmarked(ctx context.Context, userID string) ([]*UserProgress, error)

	// CountCompleted returns how many topics the user has completed.
	CountCompleted(ctx context.Context, userID string) (int, error)

	// Delete removes a progress record.
	Delete(ctx context.Context, userID, topicID string) error
}
