package query

import (
	"context"
	"errors"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/progress"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/topic"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TOPIC PROGRESS QUERY
// Возвращает тему вместе с прогрессом конкретного пользователя по ней:
// процент, статус, закрытые вехи и ресурсы, потраченное время.
//
// Запись прогресса создаётся лениво, поэтому её отсутствие - не ошибка:
// тема просто ещё не начата.
// ══════════════════════════════════════════════════════════════════════════════

// GetTopicProgressQuery содержит параметры запроса.
type GetTopicProgressQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string

	// TopicID - ID темы (обязателен).
	TopicID string
}

// Validate проверяет корректность параметров.
func (q *GetTopicProgressQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.TopicID == "" {
		return errors.New("topic_id is required")
	}
	return nil
}

// MilestoneProgressDTO - веха темы с отметкой о выполнении.
type MilestoneProgressDTO struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Order       int        `json:"order"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TopicProgressDTO - тема и прогресс пользователя по ней.
type TopicProgressDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Тема
	// ─────────────────────────────────────────────────────────────────────────

	TopicID        string  `json:"topic_id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category"`
	Difficulty     string  `json:"difficulty"`
	EstimatedHours int     `json:"estimated_hours,omitempty"`
	AverageRating  float64 `json:"average_rating,omitempty"`

	// ─────────────────────────────────────────────────────────────────────────
	// Прогресс пользователя
	// ─────────────────────────────────────────────────────────────────────────

	Status           string                 `json:"status"`
	Progress         int                    `json:"progress"`
	TimeSpentMinutes int                    `json:"time_spent_minutes"`
	IsBookmarked     bool                   `json:"is_bookmarked"`
	Rating           int                    `json:"rating,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	Milestones       []MilestoneProgressDTO `json:"milestones,omitempty"`

	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	LastStudiedAt *time.Time `json:"last_studied_at,omitempty"`
}

// GetTopicProgressHandler обрабатывает запросы прогресса по теме.
type GetTopicProgressHandler struct {
	topicRepo    topic.Repository
	progressRepo progress.Repository
}

// NewGetTopicProgressHandler создаёт новый обработчик.
func NewGetTopicProgressHandler(topicRepo topic.Repository, progressRepo progress.Repository) *GetTopicProgressHandler {
	return &GetTopicProgressHandler{
		topicRepo:    topicRepo,
		progressRepo: progressRepo,
	}
}

// Handle выполняет запрос.
func (h *GetTopicProgressHandler) Handle(ctx context.Context, query GetTopicProgressQuery) (*TopicProgressDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetTopicProgress", shared.ErrValidation, err.Error(), err)
	}

	t, err := h.topicRepo.GetByID(ctx, query.TopicID)
	if err != nil {
		return nil, err
	}

	dto := &TopicProgressDTO{
		TopicID:        t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Category:       string(t.Category),
		Difficulty:     string(t.Difficulty),
		EstimatedHours: t.EstimatedHours,
		AverageRating:  t.Stats.AverageRating,
		Status:         string(progress.StatusNotStarted),
	}

	p, err := h.progressRepo.GetByUserAndTopic(ctx, query.UserID, query.TopicID)
	if err != nil {
		if shared.IsNotFound(err) {
			// Тема не начата: отдаём каталожные данные с нулевым прогрессом.
			dto.Milestones = buildMilestones(t.Milestones, nil)
			return dto, nil
		}
		return nil, err
	}

	dto.Status = string(p.Status)
	dto.Progress = int(p.Progress)
	dto.TimeSpentMinutes = p.TimeSpentMinutes
	dto.IsBookmarked = p.IsBookmarked
	dto.Rating = p.Rating
	dto.Notes = p.Notes
	dto.StartedAt = p.StartedAt
	dto.CompletedAt = p.CompletedAt
	dto.LastStudiedAt = p.LastStudiedAt
	dto.Milestones = buildMilestones(t.Milestones, p.CompletedMilestones)

	return dto, nil
}

// buildMilestones сшивает каталожные вехи с отметками пользователя.
func buildMilestones(milestones []topic.Milestone, completed map[string]time.Time) []MilestoneProgressDTO {
	if len(milestones) == 0 {
		return nil
	}
	out := make([]MilestoneProgressDTO, 0, len(milestones))
	for _, m := range milestones {
		dto := MilestoneProgressDTO{
			ID:    m.ID,
			Title: m.Title,
			Order: m.Order,
		}
		if at, ok := completed[m.ID]; ok {
			dto.Completed = true
			t := at
			dto.CompletedAt = &t
		}
		out = append(out, dto)
	}
	return out
}
