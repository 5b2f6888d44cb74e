// Package user содержит доменную модель пользователя Study Tracker Hub.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package user

import (
	"strings"
	"time"

	"github.com/studyhub/study-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Timezone представляет IANA-идентификатор часового пояса пользователя.
// Все расчёты календарных дней (серии, дневная статистика) выполняются
// в этом поясе.
type Timezone string

// DefaultTimezone используется, когда пользователь не указал свой пояс.
const DefaultTimezone Timezone = "UTC"

// IsValid проверяет, что идентификатор пояса загружается.
func (tz Timezone) IsValid() bool {
	_, err := time.LoadLocation(string(tz))
	return err == nil
}

// Location возвращает *time.Location для расчётов дат.
func (tz Timezone) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(string(tz))
	if err != nil {
		return nil, shared.ErrInvalidTimezone
	}
	return loc, nil
}

// String возвращает строковое представление.
func (tz Timezone) String() string {
	return string(tz)
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// Материализованная статистика пользователя. Обновляется инкрементально
// при завершении сессии и периодически сверяется с агрегатором -
// историей сессий как единственным источником истины.
// ══════════════════════════════════════════════════════════════════════════════

// Statistics содержит накопленную статистику обучения пользователя.
type Statistics struct {
	// TotalStudyHours - суммарное время обучения в часах.
	TotalStudyHours float64

	// TotalSessions - количество завершённых сессий.
	TotalSessions int

	// CurrentStreak - текущая серия дней подряд с хотя бы одной сессией.
	CurrentStreak int

	// LongestStreak - самая длинная серия за всю историю.
	LongestStreak int

	// LastStudyDate - начало последнего учебного дня (в поясе пользователя).
	LastStudyDate *time.Time

	// CompletedTopics - количество тем, доведённых до 100%.
	CompletedTopics int

	// AverageSessionLength - средняя длина завершённой сессии в минутах.
	AverageSessionLength float64
}

// ApplySessionCompletion инкрементально учитывает завершённую сессию.
// Серии здесь не трогаются: они пересчитываются отдельно из истории
// сессий, чтобы счётчики не расходились при гонках.
func (s *Statistics) ApplySessionCompletion(actualMinutes int, studyDay time.Time) {
	if actualMinutes < 0 {
		actualMinutes = 0
	}
	s.TotalSessions++
	s.TotalStudyHours += float64(actualMinutes) / 60.0
	s.AverageSessionLength = (s.TotalStudyHours * 60.0) / float64(s.TotalSessions)
	day := studyDay
	s.LastStudyDate = &day
}

// ApplyStreaks обновляет счётчики серий результатом полного пересчёта.
// LongestStreak монотонен: пересчёт по урезанной истории не может его
// уменьшить.
func (s *Statistics) ApplyStreaks(current, longest int, lastStudyDate *time.Time) {
	s.CurrentStreak = current
	if longest > s.LongestStreak {
		s.LongestStreak = longest
	}
	if lastStudyDate != nil {
		day := *lastStudyDate
		s.LastStudyDate = &day
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS
// ══════════════════════════════════════════════════════════════════════════════

// AchievementType определяет тип достижения.
type AchievementType string

const (
	// AchievementFirstSession - первая завершённая сессия.
	AchievementFirstSession AchievementType = "first_session"
	// AchievementStreak7 - серия 7 дней подряд.
	AchievementStreak7 AchievementType = "streak_7"
	// AchievementStreak30 - серия 30 дней подряд.
	AchievementStreak30 AchievementType = "streak_30"
	// AchievementHours10 - 10 часов обучения суммарно.
	AchievementHours10 AchievementType = "hours_10"
	// AchievementHours100 - 100 часов обучения суммарно.
	AchievementHours100 AchievementType = "hours_100"
	// AchievementSessions50 - 50 завершённых сессий.
	AchievementSessions50 AchievementType = "sessions_50"
	// AchievementTopicMaster - 5 завершённых тем.
	AchievementTopicMaster AchievementType = "topic_master"
)

// Achievement представляет разблокированное достижение.
type Achievement struct {
	// Type - тип достижения.
	Type AchievementType

	// Title - человекочитаемое название.
	Title string

	// UnlockedAt - время разблокировки.
	UnlockedAt time.Time
}

// achievementCatalog задаёт условия разблокировки по статистике.
var achievementCatalog = []struct {
	Type      AchievementType
	Title     string
	Condition func(Statistics) bool
}{
	{AchievementFirstSession, "Первая сессия", func(s Statistics) bool { return s.TotalSessions >= 1 }},
	{AchievementStreak7, "Неделя подряд", func(s Statistics) bool { return s.CurrentStreak >= 7 || s.LongestStreak >= 7 }},
	{AchievementStreak30, "Месяц подряд", func(s Statistics) bool { return s.CurrentStreak >= 30 || s.LongestStreak >= 30 }},
	{AchievementHours10, "10 часов", func(s Statistics) bool { return s.TotalStudyHours >= 10 }},
	{AchievementHours100, "100 часов", func(s Statistics) bool { return s.TotalStudyHours >= 100 }},
	{AchievementSessions50, "50 сессий", func(s Statistics) bool { return s.TotalSessions >= 50 }},
	{AchievementTopicMaster, "Мастер тем", func(s Statistics) bool { return s.CompletedTopics >= 5 }},
}

// ══════════════════════════════════════════════════════════════════════════════
// PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

// Preferences содержит настройки обучения пользователя.
type Preferences struct {
	// DailyGoalMinutes - дневная цель в минутах.
	DailyGoalMinutes int

	// PreferredSessionType - предпочитаемый тип сессии.
	PreferredSessionType string

	// RemindersEnabled - включены ли напоминания.
	RemindersEnabled bool
}

// DefaultPreferences возвращает настройки по умолчанию.
func DefaultPreferences() Preferences {
	return Preferences{
		DailyGoalMinutes:     60,
		PreferredSessionType: "pomodoro",
		RemindersEnabled:     true,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User - центральная сущность системы, представляющая учащегося.
type User struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Email - адрес электронной почты (нормализованный).
	Email string

	// DisplayName - отображаемое имя.
	DisplayName string

	// PasswordHash - bcrypt-хеш пароля. Никогда не отдаётся наружу.
	PasswordHash string

	// Timezone - часовой пояс для расчёта календарных дней.
	Timezone Timezone

	// Preferences - настройки обучения.
	Preferences Preferences

	// Statistics - материализованная статистика.
	Statistics Statistics

	// Achievements - разблокированные достижения.
	Achievements []Achievement

	// CreatedAt - время регистрации.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewUser создаёт нового пользователя с валидацией.
func NewUser(id, email, displayName, passwordHash string, tz Timezone, now time.Time) (*User, error) {
	if id == "" {
		return nil, shared.NewDomainError("user", "New", shared.ErrEmptyValue, "user id is required")
	}
	normalized, err := shared.NewEmail(email)
	if err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, shared.NewDomainError("user", "New", shared.ErrEmptyValue, "display name is required")
	}
	if passwordHash == "" {
		return nil, shared.NewDomainError("user", "New", shared.ErrEmptyValue, "password hash is required")
	}
	if tz == "" {
		tz = DefaultTimezone
	}
	if !tz.IsValid() {
		return nil, shared.ErrInvalidTimezone
	}

	return &User{
		ID:           id,
		Email:        normalized.String(),
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		Timezone:     tz,
		Preferences:  DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Location возвращает часовой пояс пользователя для расчётов дат.
// При повреждённом значении возвращает UTC, а не ошибку: статистика
// в UTC лучше, чем отказ в обслуживании.
func (u *User) Location() *time.Location {
	loc, err := u.Timezone.Location()
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasAchievement проверяет, разблокировано ли достижение.
func (u *User) HasAchievement(t AchievementType) bool {
	for _, a := range u.Achievements {
		if a.Type == t {
			return true
		}
	}
	return false
}

// CheckAchievements возвращает достижения, условия которых выполнены,
// но которые ещё не разблокированы. Сущность не мутируется.
func (u *User) CheckAchievements(now time.Time) []Achievement {
	var unlocked []Achievement
	for _, entry := range achievementCatalog {
		if u.HasAchievement(entry.Type) {
			continue
		}
		if entry.Condition(u.Statistics) {
			unlocked = append(unlocked, Achievement{
				Type:       entry.Type,
				Title:      entry.Title,
				UnlockedAt: now,
			})
		}
	}
	return unlocked
}

// UnlockAchievements добавляет достижения к пользователю.
func (u *User) UnlockAchievements(achievements []Achievement) {
	u.Achievements = append(u.Achievements, achievements...)
}
