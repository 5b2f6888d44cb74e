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
// PAUSE SESSION COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// PauseSessionCommand contains the data to pause a session.
type PauseSessionCommand struct {
	SessionID     string
	UserID        string
	CorrelationID string
}

// Validate validates the command.
func (c PauseSessionCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("pause_session: session_id is required")
	}
	if c.UserID == "" {
		return errors.New("pause_session: user_id is required")
	}
	return nil
}

// PauseSessionResult contains the paused session.
type PauseSessionResult struct {
	Session session.StudySession
}

// PauseSessionHandler handles the PauseSessionCommand.
type PauseSessionHandler struct {
	sessionRepo    session.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewPauseSessionHandler creates a new PauseSessionHandler.
func NewPauseSessionHandler(
	sessionRepo session.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *PauseSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &PauseSessionHandler{
		sessionRepo:    sessionRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the pause session command.
func (h *PauseSessionHandler) Handle(ctx context.Context, cmd PauseSessionCommand) (*PauseSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("pause_session: validation failed: %w", err)
	}

	current, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if current.UserID != cmd.UserID {
		return nil, shared.ErrSessionNotFound
	}

	paused, err := session.Pause(current, h.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.UpdateWithStatusCheck(ctx, paused, current.Status); err != nil {
		return nil, err
	}

	event := shared.NewSessionLifecycleEvent(shared.EventSessionPaused, paused.ID, paused.UserID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &PauseSessionResult{Session: paused}, nil
}
