package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
	"github.com/studyhub/study-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESUME SESSION COMMAND
// Moves a paused session back to active. The time the session spent paused
// is measured from the pause timestamp and folded into the accumulated
// pause counter, which is later subtracted from the actual duration.
// ══════════════════════════════════════════════════════════════════════════════

// ResumeSessionCommand contains the data to resume a session.
type ResumeSessionCommand struct {
	SessionID     string
	UserID        string
	CorrelationID string
}

// Validate validates the command.
func (c ResumeSessionCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("resume_session: session_id is required")
	}
	if c.UserID == "" {
		return errors.New("resume_session: user_id is required")
	}
	return nil
}

// ResumeSessionResult contains the resumed session.
type ResumeSessionResult struct {
	Session      session.StudySession
	PauseMinutes int
}

// ResumeSessionHandler handles the ResumeSessionCommand.
type ResumeSessionHandler struct {
	sessionRepo    session.Repository
	eventPublisher shared.EventPublisher
	clock          clock.Clock
}

// NewResumeSessionHandler creates a new ResumeSessionHandler.
func NewResumeSessionHandler(
	sessionRepo session.Repository,
	eventPublisher shared.EventPublisher,
	clk clock.Clock,
) *ResumeSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ResumeSessionHandler{
		sessionRepo:    sessionRepo,
		eventPublisher: eventPublisher,
		clock:          clk,
	}
}

// Handle executes the resume session command.
func (h *ResumeSessionHandler) Handle(ctx context.Context, cmd ResumeSessionCommand) (*ResumeSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("resume_session: validation failed: %w", err)
	}

	current, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if current.UserID != cmd.UserID {
		return nil, shared.ErrSessionNotFound
	}

	// The pause transition stamped UpdatedAt; the gap since then is how
	// long the session sat paused.
	now := h.clock.Now()
	pauseMinutes := timeutil.MinutesBetween(current.UpdatedAt, now)
	if pauseMinutes < 0 {
		pauseMinutes = 0
	}

	resumed, err := session.Resume(current, pauseMinutes, now)
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.UpdateWithStatusCheck(ctx, resumed, current.Status); err != nil {
		return nil, err
	}

	event := shared.NewSessionLifecycleEvent(shared.EventSessionResumed, resumed.ID, resumed.UserID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.eventPublisher.Publish(event)

	return &ResumeSessionResult{Session: resumed, PauseMinutes: pauseMinutes}, nil
}
