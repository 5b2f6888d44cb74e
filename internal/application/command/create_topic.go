package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE TOPIC COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateTopicCommand contains the data to create a topic.
type CreateTopicCommand struct {
	Title          string
	Description    string
	Category       string
	Difficulty     string
	EstimatedHours int
	Milestones     []topic.Milestone
	Resources      []topic.Resource

	// CreatedBy is the authoring user, empty for system topics.
	CreatedBy string
}

// Validate validates the command.
func (c CreateTopicCommand) Validate() error {
	if c.Title == "" {
		return errors.New("create_topic: title is required")
	}
	return nil
}

// CreateTopicResult contains the created topic.
type CreateTopicResult struct {
	Topic *topic.Topic
}

// CreateTopicHandler handles the CreateTopicCommand.
type CreateTopicHandler struct {
	topicRepo topic.Repository
	clock     clock.Clock
}

// NewCreateTopicHandler creates a new CreateTopicHandler.
func NewCreateTopicHandler(topicRepo topic.Repository, clk clock.Clock) *CreateTopicHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CreateTopicHandler{topicRepo: topicRepo, clock: clk}
}

// Handle executes the create topic command.
func (h *CreateTopicHandler) Handle(ctx context.Context, cmd CreateTopicCommand) (*CreateTopicResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_topic: validation failed: %w", err)
	}

	// Milestones and resources get IDs here so clients can reference them.
	for i := range cmd.Milestones {
		if cmd.Milestones[i].ID == "" {
			cmd.Milestones[i].ID = uuid.NewString()
		}
	}
	for i := range cmd.Resources {
		if cmd.Resources[i].ID == "" {
			cmd.Resources[i].ID = uuid.NewString()
		}
	}

	t, err := topic.NewTopic(topic.NewTopicParams{
		ID:             uuid.NewString(),
		Title:          cmd.Title,
		Description:    cmd.Description,
		Category:       topic.Category(cmd.Category),
		Difficulty:     topic.Difficulty(cmd.Difficulty),
		EstimatedHours: cmd.EstimatedHours,
		Milestones:     cmd.Milestones,
		Resources:      cmd.Resources,
		CreatedBy:      cmd.CreatedBy,
	}, h.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := h.topicRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create_topic: failed to save: %w", err)
	}

	return &CreateTopicResult{Topic: t}, nil
}
