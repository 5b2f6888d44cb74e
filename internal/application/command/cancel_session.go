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
// CANCEL SESSION COMMAND
// Cancels a session from any non-terminal state. Cancelled sessions never
// contribute to statistics, streaks or topic progress.
// ══════════════════════════════════════════════════════════════════════════════

// CancelSessionCommand contains the data to cancel a session.
type CancelSessionCommand struct {
	SessionID string
	UserID    string

	// Reason is appended to the session notes.
	Reason string

	CorrelationID string
}

// Validate validates the command.
func (c CancelSessionCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("cancel_session: session_id is required")
	}
	if c.UserID == "" {
		return errors.New("cancel_session: user_id is required")
	}
	return nil
}

// CancelSessionResult contains the cancelled session.
type CancelSessionResult struct {
	Session session.StudySession
}

// CancelSessionHandler handles the CancelSessionCommand.
type CancelSessionHandler struct {
	sessionRepo    session.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewCancelSessionHandler creates a new CancelSessionHandler.
func NewCancelSessionHandler(
	sessionRepo session.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *CancelSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CancelSessionHandler{
		sessionRepo:    sessionRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the cancel session command.
func (h *CancelSessionHandler) Handle(ctx context.Context, cmd CancelSessionCommand) (*CancelSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("cancel_session: validation failed: %w", err)
	}

	current, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if current.UserID != cmd.UserID {
		return nil, shared.ErrSessionNotFound
	}

	cancelled, err := session.Cancel(current, cmd.Reason, h.clock.Now())
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.UpdateWithStatusCheck(ctx, cancelled, current.Status); err != nil {
		return nil, err
	}

	event := shared.NewSessionCancelledEvent(cancelled.ID, cancelled.UserID, cmd.Reason)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &CancelSessionResult{Session: cancelled}, nil
}
