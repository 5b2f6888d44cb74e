// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAN SESSION COMMAND
// Creates a new study session in the planned state. The session only starts
// counting time once StartSession moves it to active.
// ══════════════════════════════════════════════════════════════════════════════

// PlanSessionCommand contains the data to plan a session.
type PlanSessionCommand struct {
	// UserID is the internal ID of the user.
	UserID string

	// TopicID is the topic the session is against.
	TopicID string

	// Type is the session type (pomodoro, focused, break, review).
	Type string

	// PlannedDuration is the intended length in minutes (1-480).
	PlannedDuration int

	// Notes are optional free-form notes.
	Notes string

	// Tags are optional labels.
	Tags []string

	// Environment describes where the session will happen.
	Environment session.Environment

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c PlanSessionCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("plan_session: user_id is required")
	}
	if c.TopicID == "" {
		return errors.New("plan_session: topic_id is required")
	}
	return nil
}

// PlanSessionResult contains the planned session.
type PlanSessionResult struct {
	Session session.StudySession
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// PlanSessionHandler handles the PlanSessionCommand.
type PlanSessionHandler struct {
	sessionRepo    session.Repository
	userRepo       user.Repository
	topicRepo      topic.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewPlanSessionHandler creates a new PlanSessionHandler.
func NewPlanSessionHandler(
	sessionRepo session.Repository,
	userRepo user.Repository,
	topicRepo topic.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *PlanSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PlanSessionHandler{
		sessionRepo:    sessionRepo,
		userRepo:       userRepo,
		topicRepo:      topicRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the plan session command.
func (h *PlanSessionHandler) Handle(ctx context.Context, cmd PlanSessionCommand) (*PlanSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("plan_session: validation failed: %w", err)
	}

	if ok, err := h.userRepo.Exists(ctx, cmd.UserID); err != nil {
		return nil, fmt.Errorf("plan_session: failed to check user: %w", err)
	} else if !ok {
		return nil, shared.ErrUserNotFound
	}
	if ok, err := h.topicRepo.Exists(ctx, cmd.TopicID); err != nil {
		return nil, fmt.Errorf("plan_session: failed to check topic: %w", err)
	} else if !ok {
		return nil, shared.ErrTopicNotFound
	}

	now := h.clock.Now()
	s, err := session.NewStudySession(session.NewSessionParams{
		ID:              uuid.NewString(),
		UserID:          cmd.UserID,
		TopicID:         cmd.TopicID,
		Type:            session.Type(cmd.Type),
		PlannedDuration: cmd.PlannedDuration,
		Notes:           cmd.Notes,
		Tags:            cmd.Tags,
		Environment:     cmd.Environment,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("plan_session: failed to save session: %w", err)
	}

	event := shared.NewSessionLifecycleEvent(shared.EventSessionPlanned, s.ID, s.UserID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &PlanSessionResult{Session: s}, nil
}
