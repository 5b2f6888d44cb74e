package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// Moves a planned session to active and stamps the start time. The write
// uses an optimistic status check: if another request already moved the
// session, this one fails with a state transition error.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand contains the data to start a session.
type StartSessionCommand struct {
	// SessionID is the session to start.
	SessionID string

	// UserID is the acting user; must own the session.
	UserID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c StartSessionCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("start_session: session_id is required")
	}
	if c.UserID == "" {
		return errors.New("start_session: user_id is required")
	}
	return nil
}

// StartSessionResult contains the started session.
type StartSessionResult struct {
	Session session.StudySession
}

// StartSessionHandler handles the StartSessionCommand.
type StartSessionHandler struct {
	sessionRepo    session.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewStartSessionHandler creates a new StartSessionHandler.
func NewStartSessionHandler(
	sessionRepo session.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *StartSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &StartSessionHandler{
		sessionRepo:    sessionRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the start session command.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("start_session: validation failed: %w", err)
	}

	current, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if current.UserID != cmd.UserID {
		return nil, shared.ErrSessionNotFound
	}

	started, err := session.Start(current, h.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.UpdateWithStatusCheck(ctx, started, current.Status); err != nil {
		return nil, err
	}

	event := shared.NewSessionStartedEvent(
		started.ID, started.UserID, started.TopicID, started.Type.String(), *started.StartTime,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &StartSessionResult{Session: started}, nil
}
