package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROGRESS COMMAND
// Manual progress updates: percentage, milestones, resources, bookmarks and
// notes. The progress record is created lazily on first interaction.
// Reaching 100% completes the topic and feeds the topic's aggregate stats.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProgressCommand contains one progress mutation.
// Exactly the non-nil/non-empty fields are applied.
type UpdateProgressCommand struct {
	UserID  string
	TopicID string

	// Progress sets the completion percentage (clamped to 0-100).
	Progress *int

	// CompleteMilestoneID marks a milestone done.
	CompleteMilestoneID string

	// CompleteResourceID marks a resource covered.
	CompleteResourceID string

	// ToggleBookmark flips the bookmark flag.
	ToggleBookmark bool

	// Notes replaces the progress notes when non-nil.
	Notes *string

	// Rating is folded into the topic average when this update completes
	// the topic. Zero means no rating.
	Rating int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateProgressCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("update_progress: user_id is required")
	}
	if c.TopicID == "" {
		return errors.New("update_progress: topic_id is required")
	}
	return nil
}

// UpdateProgressResult contains the updated record.
type UpdateProgressResult struct {
	Progress *progress.UserProgress

	// TopicCompleted is true when this update pushed the topic to 100%.
	TopicCompleted bool

	// IsBookmarked is the bookmark state after the update.
	IsBookmarked bool
}

// UpdateProgressHandler handles the UpdateProgressCommand.
type UpdateProgressHandler struct {
	progressRepo   progress.Repository
	topicRepo      topic.Repository
	userRepo       user.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewUpdateProgressHandler creates a new UpdateProgressHandler.
func NewUpdateProgressHandler(
	progressRepo progress.Repository,
	topicRepo topic.Repository,
	userRepo user.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *UpdateProgressHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &UpdateProgressHandler{
		progressRepo:   progressRepo,
		topicRepo:      topicRepo,
		userRepo:       userRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the update progress command.
func (h *UpdateProgressHandler) Handle(ctx context.Context, cmd UpdateProgressCommand) (*UpdateProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_progress: validation failed: %w", err)
	}

	if ok, err := h.topicRepo.Exists(ctx, cmd.TopicID); err != nil {
		return nil, fmt.Errorf("update_progress: failed to check topic: %w", err)
	} else if !ok {
		return nil, shared.ErrTopicNotFound
	}

	now := h.clock.Now()

	// Lazy creation: first interaction materializes the record.
	p, err := h.progressRepo.GetByUserAndTopic(ctx, cmd.UserID, cmd.TopicID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("update_progress: failed to load progress: %w", err)
		}
		p, err = progress.NewUserProgress(uuid.NewString(), cmd.UserID, cmd.TopicID, now)
		if err != nil {
			return nil, err
		}
	}

	result := &UpdateProgressResult{}

	if cmd.Progress != nil {
		result.TopicCompleted = p.SetProgress(shared.Percent(*cmd.Progress), now)
	}
	if cmd.CompleteMilestoneID != "" {
		p.CompleteMilestone(cmd.CompleteMilestoneID, now)
	}
	if cmd.CompleteResourceID != "" {
		p.CompleteResource(cmd.CompleteResourceID, now)
	}
	if cmd.ToggleBookmark {
		p.ToggleBookmark(now)
	}
	if cmd.Notes != nil {
		if err := p.SetNotes(*cmd.Notes, now); err != nil {
			return nil, err
		}
	}
	if result.TopicCompleted && cmd.Rating != 0 {
		if err := p.Complete(cmd.Rating, now); err != nil {
			return nil, err
		}
	}

	if err := h.progressRepo.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("update_progress: failed to save progress: %w", err)
	}

	// Topic and user rollups and the event only on the transition to
	// completed, never on repeated updates at 100%.
	if result.TopicCompleted {
		if err := h.topicRepo.ApplyStatsDelta(ctx, cmd.TopicID, topic.StatsDelta{
			Completions: 1,
			Rating:      cmd.Rating,
		}); err != nil {
			return nil, fmt.Errorf("update_progress: failed to update topic stats: %w", err)
		}

		if err := h.userRepo.ApplyStatsDelta(ctx, cmd.UserID, user.StatsDelta{CompletedTopics: 1}); err != nil {
			return nil, fmt.Errorf("update_progress: failed to count completed topic: %w", err)
		}

		event := shared.NewTopicCompletedEvent(cmd.TopicID, cmd.UserID, cmd.Rating)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		_ = h.eventPublisher.Publish(event)
	}

	result.Progress = p
	result.IsBookmarked = p.IsBookmarked
	return result, nil
}
