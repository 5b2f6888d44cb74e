package query

import (
	"context"
	"errors"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ACTIVE SESSION QUERY
// Возвращает текущую активную или приостановленную сессию пользователя.
// Клиент использует это для восстановления таймера после перезапуска.
// ══════════════════════════════════════════════════════════════════════════════

// GetActiveSessionQuery содержит параметры запроса активной сессии.
type GetActiveSessionQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string
}

// Validate проверяет корректность параметров.
func (q *GetActiveSessionQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// ActiveSessionDTO - активная сессия вместе с прошедшим временем.
type ActiveSessionDTO struct {
	SessionDTO

	// ElapsedMinutes - минут с момента старта за вычетом пауз.
	ElapsedMinutes int `json:"elapsed_minutes"`

	// RemainingMinutes - минут до запланированного конца (не меньше 0).
	RemainingMinutes int `json:"remaining_minutes"`
}

// GetActiveSessionHandler обрабатывает запросы активной сессии.
type GetActiveSessionHandler struct {
	sessionRepo session.Repository
	clock       clock.Clock
}

// NewGetActiveSessionHandler создаёт новый обработчик.
func NewGetActiveSessionHandler(sessionRepo session.Repository, clk clock.Clock) *GetActiveSessionHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &GetActiveSessionHandler{sessionRepo: sessionRepo, clock: clk}
}

// Handle возвращает активную сессию или ErrSessionNotFound.
func (h *GetActiveSessionHandler) Handle(ctx context.Context, query GetActiveSessionQuery) (*ActiveSessionDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetActiveSession", shared.ErrValidation, err.Error(), err)
	}

	s, err := h.sessionRepo.GetActiveByUser(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	elapsed := s.Duration(h.clock.Now())
	remaining := s.PlannedDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}

	return &ActiveSessionDTO{
		SessionDTO:       toSessionDTO(s),
		ElapsedMinutes:   elapsed,
		RemainingMinutes: remaining,
	}, nil
}
