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
// GET DAILY STATS QUERY
// Возвращает дневную статистику пользователя за период: минуты, сессии
// по типам, средний фокус и выполнение дневной цели по каждому дню.
//
// Дни считаются в часовом поясе пользователя, чтобы вечерняя сессия
// не "уезжала" на следующий день. Агрегация выполняется поверх
// завершённых сессий - это чистая функция, ей нельзя разойтись с историей.
// ══════════════════════════════════════════════════════════════════════════════

// Пределы периода выборки.
const (
	DefaultStatsDays = 7
	MaxStatsDays     = 90
)

// GetDailyStatsQuery содержит параметры запроса дневной статистики.
type GetDailyStatsQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string

	// From, To - границы периода [From, To). Пустые значения выводятся
	// из Days относительно текущего момента.
	From time.Time
	To   time.Time

	// Days - размер периода в днях, когда границы не заданы явно.
	Days int

	// FillEmptyDays - включить в ответ дни без сессий (с нулями).
	FillEmptyDays bool
}

// Validate проверяет и нормализует параметры.
func (q *GetDailyStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Days <= 0 {
		q.Days = DefaultStatsDays
	}
	if q.Days > MaxStatsDays {
		q.Days = MaxStatsDays
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return errors.New("from must be before to")
	}
	return nil
}

// DailyStatsDTO - статистика одного календарного дня.
type DailyStatsDTO struct {
	// Date - начало дня в поясе пользователя.
	Date time.Time `json:"date"`

	// DateFormatted - дата в формате YYYY-MM-DD.
	DateFormatted string `json:"date_formatted"`

	// SessionCount - завершённых сессий за день.
	SessionCount int `json:"session_count"`

	// TotalMinutes - наработано минут за день.
	TotalMinutes int `json:"total_minutes"`

	// SessionsByType - разбивка по типам сессий.
	SessionsByType map[string]int `json:"sessions_by_type,omitempty"`

	// AverageFocusLevel - средний фокус (1-10), 0 если не измерялся.
	AverageFocusLevel float64 `json:"average_focus_level,omitempty"`

	// GoalAchieved - дневная цель достигнута.
	GoalAchieved bool `json:"goal_achieved"`
}

// PeriodSummaryDTO - сводный rollup за весь период, пересчитанный
// напрямую из истории сессий.
type PeriodSummaryDTO struct {
	TotalSessions        int     `json:"total_sessions"`
	TotalMinutes         int     `json:"total_minutes"`
	AverageSessionLength float64 `json:"average_session_length"`
	AverageProductivity  float64 `json:"average_productivity,omitempty"`
	AverageFocusLevel    float64 `json:"average_focus_level,omitempty"`
	TotalBreaks          int     `json:"total_breaks"`
}

// GetDailyStatsResult - результат запроса дневной статистики.
type GetDailyStatsResult struct {
	// Days - дни периода, старые первыми.
	Days []DailyStatsDTO `json:"days"`

	// From, To - фактические границы периода.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// TotalMinutes - суммарные минуты за период.
	TotalMinutes int `json:"total_minutes"`

	// ActiveDays - дней с хотя бы одной сессией.
	ActiveDays int `json:"active_days"`

	// Summary - сводка по периоду.
	Summary PeriodSummaryDTO `json:"summary"`

	// GeneratedAt - время формирования ответа.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetDailyStatsHandler обрабатывает запросы дневной статистики.
type GetDailyStatsHandler struct {
	userRepo    user.Repository
	sessionRepo session.Repository
	clock       clock.Clock
}

// NewGetDailyStatsHandler создаёт новый обработчик.
func NewGetDailyStatsHandler(userRepo user.Repository, sessionRepo session.Repository, clk clock.Clock) *GetDailyStatsHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &GetDailyStatsHandler{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		clock:       clk,
	}
}

// Handle выполняет запрос дневной статистики.
func (h *GetDailyStatsHandler) Handle(ctx context.Context, query GetDailyStatsQuery) (*GetDailyStatsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetDailyStats", shared.ErrValidation, err.Error(), err)
	}

	u, err := h.userRepo.GetByID(ctx, query.UserID)
	if err != nil {
		return nil, err
	}
	loc := u.Location()
	now := h.clock.Now()

	from, to := query.From, query.To
	if from.IsZero() || to.IsZero() {
		// Период заканчивается концом сегодняшнего дня.
		to = timeutil.StartOfDay(now, loc).AddDate(0, 0, 1)
		from = to.AddDate(0, 0, -query.Days)
	}

	sessions, err := h.sessionRepo.GetCompletedInRange(ctx, query.UserID, from, to)
	if err != nil {
		return nil, err
	}

	aggregates := session.AggregateDaily(sessions, loc)
	byDay := make(map[time.Time]session.DailyAggregate, len(aggregates))
	for _, a := range aggregates {
		byDay[a.Date] = a
	}

	goal := u.Preferences.DailyGoalMinutes
	result := &GetDailyStatsResult{
		From:        from,
		To:          to,
		GeneratedAt: now,
	}

	if query.FillEmptyDays {
		for day := timeutil.StartOfDay(from, loc); day.Before(to); day = day.AddDate(0, 0, 1) {
			result.Days = append(result.Days, h.buildDayDTO(day, byDay[day], goal, loc))
		}
	} else {
		for _, a := range aggregates {
			result.Days = append(result.Days, h.buildDayDTO(a.Date, a, goal, loc))
		}
	}

	for _, a := range aggregates {
		result.TotalMinutes += a.TotalMinutes
		if a.SessionCount > 0 {
			result.ActiveDays++
		}
	}

	rollup := session.AggregateUser(sessions)
	result.Summary = PeriodSummaryDTO{
		TotalSessions:        rollup.TotalSessions,
		TotalMinutes:         rollup.TotalMinutes,
		AverageSessionLength: rollup.AverageSessionLength,
		AverageProductivity:  rollup.AverageProductivity,
		AverageFocusLevel:    rollup.AverageFocusLevel,
		TotalBreaks:          rollup.TotalBreaks,
	}

	return result, nil
}

// buildDayDTO формирует DTO одного дня.
func (h *GetDailyStatsHandler) buildDayDTO(day time.Time, a session.DailyAggregate, goalMinutes int, loc *time.Location) DailyStatsDTO {
	dto := DailyStatsDTO{
		Date:              day,
		DateFormatted:     timeutil.FormatDateStr(day, loc),
		SessionCount:      a.SessionCount,
		TotalMinutes:      a.TotalMinutes,
		AverageFocusLevel: a.AverageFocusLevel,
		GoalAchieved:      goalMinutes > 0 && a.TotalMinutes >= goalMinutes,
	}
	if len(a.SessionsByType) > 0 {
		dto.SessionsByType = make(map[string]int, len(a.SessionsByType))
		for t, n := range a.SessionsByType {
			dto.SessionsByType[t.String()] = n
		}
	}
	return dto
}
