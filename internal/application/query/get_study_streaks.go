package query

import (
	"context"
	"errors"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/clock"
	"github.com/studyhub/study-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDY STREAKS QUERY
// Пересчитывает серии учебных дней напрямую из истории сессий.
// Материализованные счётчики в профиле обновляются при завершении
// сессии; этот запрос - честный пересчёт для экрана серий и для
// случаев, когда счётчики под подозрением.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudyStreaksQuery содержит параметры запроса серий.
type GetStudyStreaksQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string
}

// Validate проверяет корректность параметров.
func (q *GetStudyStreaksQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

// StudyStreaksDTO - состояние серий пользователя.
type StudyStreaksDTO struct {
	// CurrentStreak - текущая серия дней подряд.
	CurrentStreak int `json:"current_streak"`

	// LongestStreak - рекордная серия за всю историю.
	LongestStreak int `json:"longest_streak"`

	// TotalStudyDays - всего учебных дней.
	TotalStudyDays int `json:"total_study_days"`

	// LastStudyDate - начало последнего учебного дня.
	LastStudyDate *time.Time `json:"last_study_date,omitempty"`

	// StudiedToday - сегодня уже была сессия.
	StudiedToday bool `json:"studied_today"`

	// AtRisk - серия жива, но сегодня ещё не было сессии:
	// пропуск сегодняшнего дня её оборвёт.
	AtRisk bool `json:"at_risk"`

	// GeneratedAt - время формирования ответа.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStudyStreaksHandler обрабатывает запросы серий.
type GetStudyStreaksHandler struct {
	userRepo    user.Repository
	sessionRepo session.Repository
	clock       clock.Clock
}

// NewGetStudyStreaksHandler создаёт новый обработчик.
func NewGetStudyStreaksHandler(userRepo user.Repository, sessionRepo session.Repository, clk clock.Clock) *GetStudyStreaksHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &GetStudyStreaksHandler{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		clock:       clk,
	}
}

// Handle выполняет пересчёт серий.
func (h *GetStudyStreaksHandler) Handle(ctx context.Context, query GetStudyStreaksQuery) (*StudyStreaksDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudyStreaks", shared.ErrValidation, err.Error(), err)
	}

	u, err := h.userRepo.GetByID(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	startTimes, err := h.sessionRepo.GetStartTimes(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	loc := u.Location()
	streaks := session.CalculateStreaks(startTimes, now, loc)

	studiedToday := streaks.LastStudyDate != nil && timeutil.IsToday(*streaks.LastStudyDate, now, loc)

	return &StudyStreaksDTO{
		CurrentStreak:  streaks.CurrentStreak,
		LongestStreak:  streaks.LongestStreak,
		TotalStudyDays: streaks.TotalStudyDays,
		LastStudyDate:  streaks.LastStudyDate,
		StudiedToday:   studiedToday,
		AtRisk:         streaks.CurrentStreak > 0 && !studiedToday,
		GeneratedAt:    now,
	}, nil
}
