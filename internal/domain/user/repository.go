package user

import (
	"context"
	"time"
)

// Cache определяет операции кеширования данных пользователя.
// Обычно реализуется через Redis.
type Cache interface {
	// Get получает пользователя из кеша.
	Get(ctx context.Context, userID string) (*User, error)

	// Set сохраняет пользователя в кеш.
	Set(ctx context.Context, u *User, ttl time.Duration) error

	// Invalidate инвалидирует все записи пользователя в кеше.
	Invalidate(ctx context.Context, userID string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем пользователей.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// StatsDelta описывает атомарный инкремент статистики пользователя.
// Применяется одним UPDATE с выражениями вида SET x = x + $1, чтобы
// параллельные завершения сессий не теряли обновления друг друга.
type StatsDelta struct {
	// StudyHours - прибавка к суммарным часам.
	StudyHours float64

	// Sessions - прибавка к количеству сессий.
	Sessions int

	// CompletedTopics - прибавка к количеству завершённых тем.
	CompletedTopics int

	// LastStudyDate - новое значение последнего учебного дня (если не nil).
	LastStudyDate *time.Time
}

// Repository определяет основные операции для работы с пользователями.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create создаёт нового пользователя.
	// Возвращает ErrUserAlreadyExists, если email уже занят.
	Create(ctx context.Context, u *User) error

	// GetByID возвращает пользователя по ID.
	// Возвращает ErrUserNotFound, если пользователь не найден.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail возвращает пользователя по нормализованному email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update обновляет профиль и настройки пользователя.
	Update(ctx context.Context, u *User) error

	// Delete удаляет пользователя.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Statistics
	// ─────────────────────────────────────────────────────────────────────────

	// ApplyStatsDelta атомарно применяет инкремент статистики.
	// Это единственный способ изменить счётчики при завершении сессии.
	ApplyStatsDelta(ctx context.Context, userID string, delta StatsDelta) error

	// UpdateStreaks записывает результат полного пересчёта серий.
	UpdateStreaks(ctx context.Context, userID string, current, longest int, lastStudyDate *time.Time) error

	// ReplaceStatistics полностью перезаписывает статистику значениями
	// из агрегатора. Используется задачей сверки.
	ReplaceStatistics(ctx context.Context, userID string, stats Statistics) error

	// ─────────────────────────────────────────────────────────────────────────
	// Achievements
	// ─────────────────────────────────────────────────────────────────────────

	// SaveAchievements сохраняет разблокированные достижения.
	SaveAchievements(ctx context.Context, userID string, achievements []Achievement) error

	// ─────────────────────────────────────────────────────────────────────────
	// Bulk Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetAllIDs возвращает ID всех пользователей (для задачи сверки).
	GetAllIDs(ctx context.Context) ([]string, error)

	// Exists проверяет существование пользователя по ID.
	Exists(ctx context.Context, id string) (bool, error)

	// ExistsByEmail проверяет, занят ли email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
