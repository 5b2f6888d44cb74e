package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST SESSIONS QUERY
// Возвращает историю сессий пользователя с пагинацией и фильтрами
// по теме и статусу.
// ══════════════════════════════════════════════════════════════════════════════

// Пределы пагинации.
const (
	DefaultSessionsLimit = 20
	MaxSessionsLimit     = 100
)

// ListSessionsQuery содержит параметры выборки сессий.
type ListSessionsQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string

	// TopicID - фильтр по теме (пустой = все темы).
	TopicID string

	// Status - фильтр по статусу (пустой = все статусы).
	Status string

	// Offset, Limit - пагинация.
	Offset int
	Limit  int
}

// Validate проверяет и нормализует параметры.
func (q *ListSessionsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Status != "" && !session.Status(q.Status).IsValid() {
		return fmt.Errorf("unknown session status: %s", q.Status)
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultSessionsLimit
	}
	if q.Limit > MaxSessionsLimit {
		q.Limit = MaxSessionsLimit
	}
	return nil
}

// SessionDTO - сессия для внешних интерфейсов.
type SessionDTO struct {
	ID      string `json:"id"`
	TopicID string `json:"topic_id"`

	Type   string `json:"type"`
	Status string `json:"status"`

	PlannedDuration int `json:"planned_duration"`
	ActualDuration  int `json:"actual_duration"`
	PausedTime      int `json:"paused_time,omitempty"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	Notes        string                `json:"notes,omitempty"`
	Productivity *session.Productivity `json:"productivity,omitempty"`
	BreakCount   int                   `json:"break_count,omitempty"`
	Tags         []string              `json:"tags,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ListSessionsResult - результат выборки сессий.
type ListSessionsResult struct {
	Sessions []SessionDTO `json:"sessions"`
	Offset   int          `json:"offset"`
	Limit    int          `json:"limit"`
}

// ListSessionsHandler обрабатывает выборки сессий.
type ListSessionsHandler struct {
	sessionRepo session.Repository
}

// NewListSessionsHandler создаёт новый обработчик.
func NewListSessionsHandler(sessionRepo session.Repository) *ListSessionsHandler {
	return &ListSessionsHandler{sessionRepo: sessionRepo}
}

// Handle выполняет выборку.
func (h *ListSessionsHandler) Handle(ctx context.Context, query ListSessionsQuery) (*ListSessionsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ListSessions", shared.ErrValidation, err.Error(), err)
	}

	opts := session.DefaultListOptions().
		WithOffset(query.Offset).
		WithLimit(query.Limit).
		WithStatus(session.Status(query.Status))

	var (
		sessions []session.StudySession
		err      error
	)
	if query.TopicID != "" {
		sessions, err = h.sessionRepo.GetByUserAndTopic(ctx, query.UserID, query.TopicID, opts)
	} else {
		sessions, err = h.sessionRepo.GetByUser(ctx, query.UserID, opts)
	}
	if err != nil {
		return nil, err
	}

	result := &ListSessionsResult{
		Sessions: make([]SessionDTO, 0, len(sessions)),
		Offset:   query.Offset,
		Limit:    query.Limit,
	}
	for _, s := range sessions {
		result.Sessions = append(result.Sessions, toSessionDTO(s))
	}
	return result, nil
}

// toSessionDTO формирует DTO из доменной сущности.
func toSessionDTO(s session.StudySession) SessionDTO {
	return SessionDTO{
		ID:              s.ID,
		TopicID:         s.TopicID,
		Type:            s.Type.String(),
		Status:          s.Status.String(),
		PlannedDuration: s.PlannedDuration,
		ActualDuration:  s.ActualDuration,
		PausedTime:      s.PausedTime,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		Notes:           s.Notes,
		Productivity:    s.Productivity,
		BreakCount:      s.BreakCount(),
		Tags:            s.Tags,
		CreatedAt:       s.CreatedAt,
	}
}
