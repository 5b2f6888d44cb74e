// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"errors"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/session"
	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/circuitbreaker"
	"github.com/studyhub/study-tracker/pkg/clock"
	"github.com/studyhub/study-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER STATS QUERY
// Возвращает материализованную статистику пользователя: часы, сессии,
// серии, достижения и прогресс дневной цели.
//
// Это самый горячий запрос приложения (главный экран), поэтому он
// обслуживается через кеш. Кеш защищён circuit breaker'ом: при
// недоступности Redis запрос прозрачно уходит в базу.
// ══════════════════════════════════════════════════════════════════════════════

// UserStatsCacheTTL - время жизни кешированной статистики.
const UserStatsCacheTTL = 5 * time.Minute

// GetUserStatsQuery содержит параметры запроса статистики.
type GetUserStatsQuery struct {
	// UserID - ID пользователя (обязателен).
	UserID string

	// From, To - необязательный период [From, To). Когда From задан,
	// ответ дополняется rollup'ом, пересчитанным напрямую из истории
	// сессий за период. Пустой To означает "до текущего момента".
	From time.Time
	To   time.Time

	// IncludeAchievements - включить список достижений.
	IncludeAchievements bool

	// IncludeDailyGoal - включить прогресс дневной цели за сегодня.
	// Требует обращения к истории сессий.
	IncludeDailyGoal bool
}

// Validate проверяет корректность параметров.
func (q *GetUserStatsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.From.IsZero() && !q.To.IsZero() {
		return errors.New("from is required when to is set")
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.From.Before(q.To) {
		return errors.New("from must be before to")
	}
	return nil
}

// HasRange сообщает, запрошен ли период.
func (q *GetUserStatsQuery) HasRange() bool {
	return !q.From.IsZero()
}

// AchievementDTO - разблокированное достижение.
type AchievementDTO struct {
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// DailyGoalDTO - прогресс дневной цели за сегодня.
type DailyGoalDTO struct {
	// GoalMinutes - цель из настроек пользователя.
	GoalMinutes int `json:"goal_minutes"`

	// StudiedMinutes - сколько минут уже наработано сегодня.
	StudiedMinutes int `json:"studied_minutes"`

	// Achieved - цель достигнута.
	Achieved bool `json:"achieved"`
}

// PeriodStatsDTO - rollup за запрошенный период, пересчитанный из
// истории сессий (а не из материализованных счётчиков).
type PeriodStatsDTO struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	PeriodSummaryDTO
}

// UserStatsDTO - статистика пользователя для внешних интерфейсов.
type UserStatsDTO struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Timezone    string `json:"timezone"`

	TotalStudyHours      float64    `json:"total_study_hours"`
	TotalSessions        int        `json:"total_sessions"`
	AverageSessionLength float64    `json:"average_session_length"`
	CompletedTopics      int        `json:"completed_topics"`
	CurrentStreak        int        `json:"current_streak"`
	LongestStreak        int        `json:"longest_streak"`
	LastStudyDate        *time.Time `json:"last_study_date,omitempty"`

	Achievements []AchievementDTO `json:"achievements,omitempty"`
	DailyGoal    *DailyGoalDTO    `json:"daily_goal,omitempty"`
	Period       *PeriodStatsDTO  `json:"period,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// GetUserStatsHandler обрабатывает запросы статистики пользователя.
type GetUserStatsHandler struct {
	userRepo    user.Repository
	sessionRepo session.Repository
	cache       user.Cache
	breaker     *circuitbreaker.CircuitBreaker
	clock       clock.Clock
}

// NewGetUserStatsHandler создаёт новый обработчик.
// cache может быть nil - тогда все запросы идут в базу.
func NewGetUserStatsHandler(
	userRepo user.Repository,
	sessionRepo session.Repository,
	cache user.Cache,
	breaker *circuitbreaker.CircuitBreaker,
	clk clock.Clock,
) *GetUserStatsHandler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &GetUserStatsHandler{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
		breaker:     breaker,
		clock:       clk,
	}
}

// Handle выполняет запрос статистики.
func (h *GetUserStatsHandler) Handle(ctx context.Context, query GetUserStatsQuery) (*UserStatsDTO, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetUserStats", shared.ErrValidation, err.Error(), err)
	}

	u := h.loadFromCache(ctx, query.UserID)
	if u == nil {
		loaded, err := h.userRepo.GetByID(ctx, query.UserID)
		if err != nil {
			return nil, err
		}
		u = loaded
		h.storeInCache(ctx, u)
	}

	now := h.clock.Now()
	dto := &UserStatsDTO{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Timezone:    u.Timezone.String(),

		TotalStudyHours:      u.Statistics.TotalStudyHours,
		TotalSessions:        u.Statistics.TotalSessions,
		AverageSessionLength: u.Statistics.AverageSessionLength,
		CompletedTopics:      u.Statistics.CompletedTopics,
		CurrentStreak:        u.Statistics.CurrentStreak,
		LongestStreak:        u.Statistics.LongestStreak,
		LastStudyDate:        u.Statistics.LastStudyDate,

		GeneratedAt: now,
	}

	if query.IncludeAchievements {
		dto.Achievements = make([]AchievementDTO, 0, len(u.Achievements))
		for _, a := range u.Achievements {
			dto.Achievements = append(dto.Achievements, AchievementDTO{
				Type:       string(a.Type),
				Title:      a.Title,
				UnlockedAt: a.UnlockedAt,
			})
		}
	}

	if query.IncludeDailyGoal {
		goal, err := h.dailyGoal(ctx, u, now)
		if err == nil {
			dto.DailyGoal = goal
		}
		// Ошибка истории сессий не должна ронять основной ответ:
		// дневная цель просто опускается.
	}

	if query.HasRange() {
		period, err := h.periodStats(ctx, u.ID, query.From, query.To, now)
		if err != nil {
			return nil, err
		}
		dto.Period = period
	}

	return dto, nil
}

// periodStats пересчитывает rollup за период напрямую из истории сессий.
func (h *GetUserStatsHandler) periodStats(ctx context.Context, userID string, from, to, now time.Time) (*PeriodStatsDTO, error) {
	if to.IsZero() {
		to = now
	}

	sessions, err := h.sessionRepo.GetCompletedInRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	rollup := session.AggregateUser(sessions)
	return &PeriodStatsDTO{
		From: from,
		To:   to,
		PeriodSummaryDTO: PeriodSummaryDTO{
			TotalSessions:        rollup.TotalSessions,
			TotalMinutes:         rollup.TotalMinutes,
			AverageSessionLength: rollup.AverageSessionLength,
			AverageProductivity:  rollup.AverageProductivity,
			AverageFocusLevel:    rollup.AverageFocusLevel,
			TotalBreaks:          rollup.TotalBreaks,
		},
	}, nil
}

// loadFromCache пытается получить пользователя из кеша через circuit
// breaker. Любая ошибка кеша трактуется как промах.
func (h *GetUserStatsHandler) loadFromCache(ctx context.Context, userID string) *user.User {
	if h.cache == nil {
		return nil
	}

	var cached *user.User
	get := func(ctx context.Context) error {
		u, err := h.cache.Get(ctx, userID)
		if err != nil {
			return err
		}
		cached = u
		return nil
	}

	var err error
	if h.breaker != nil {
		err = h.breaker.Execute(ctx, get)
	} else {
		err = get(ctx)
	}
	if err != nil {
		return nil
	}
	return cached
}

// storeInCache сохраняет пользователя в кеш. Ошибки игнорируются:
// кеш - оптимизация, а не источник истины.
func (h *GetUserStatsHandler) storeInCache(ctx context.Context, u *user.User) {
	if h.cache == nil {
		return
	}
	set := func(ctx context.Context) error {
		return h.cache.Set(ctx, u, UserStatsCacheTTL)
	}
	if h.breaker != nil {
		_ = h.breaker.Execute(ctx, set)
	} else {
		_ = set(ctx)
	}
}

// dailyGoal считает наработанные минуты за сегодня в поясе пользователя.
func (h *GetUserStatsHandler) dailyGoal(ctx context.Context, u *user.User, now time.Time) (*DailyGoalDTO, error) {
	loc := u.Location()
	from := timeutil.StartOfDay(now, loc)
	to := from.AddDate(0, 0, 1)

	sessions, err := h.sessionRepo.GetCompletedInRange(ctx, u.ID, from, to)
	if err != nil {
		return nil, err
	}

	studied := 0
	for _, s := range sessions {
		studied += s.ActualDuration
	}

	goal := u.Preferences.DailyGoalMinutes
	return &DailyGoalDTO{
		GoalMinutes:    goal,
		StudiedMinutes: studied,
		Achieved:       goal > 0 && studied >= goal,
	}, nil
}
