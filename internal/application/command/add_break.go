package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD BREAK COMMAND
// Records a break interval inside a session. Breaks are informational -
// they do not change the session status; use pause/resume for that.
// ══════════════════════════════════════════════════════════════════════════════

// AddBreakCommand contains the data to record a break.
type AddBreakCommand struct {
	SessionID string
	UserID    string

	// StartTime of the break; defaults to now.
	StartTime time.Time

	// EndTime of the break, if already over.
	EndTime *time.Time

	// Kind labels the break (coffee, walk, lunch).
	Kind string
}

// Validate validates the command.
func (c AddBreakCommand) Validate() error {
	if c.SessionID == "" {
		return errors.New("add_break: session_id is required")
	}
	if c.UserID == "" {
		return errors.New("add_break: user_id is required")
	}
	return nil
}

// AddBreakResult contains the updated session.
type AddBreakResult struct {
	Session session.StudySession
}

// AddBreakHandler handles the AddBreakCommand.
type AddBreakHandler struct {
	sessionRepo session.Repository
	clock       clock.Clock
}

// NewAddBreakHandler creates a new AddBreakHandler.
func NewAddBreakHandler(sessionRepo session.Repository, clk clock.Clock) *AddBreakHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AddBreakHandler{sessionRepo: sessionRepo, clock: clk}
}

// Handle executes the add break command.
func (h *AddBreakHandler) Handle(ctx context.Context, cmd AddBreakCommand) (*AddBreakResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_break: validation failed: %w", err)
	}

	current, err := h.sessionRepo.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if current.UserID != cmd.UserID {
		return nil, shared.ErrSessionNotFound
	}

	now := h.clock.Now()
	start := cmd.StartTime
	if start.IsZero() {
		start = now
	}

	updated, err := session.AddBreak(current, session.Break{
		StartTime: start,
		EndTime:   cmd.EndTime,
		Type:      cmd.Kind,
	}, now)
	if err != nil {
		return nil, err
	}

	if err := h.sessionRepo.UpdateWithStatusCheck(ctx, updated, current.Status); err != nil {
		return nil, err
	}

	return &AddBreakResult{Session: updated}, nil
}
