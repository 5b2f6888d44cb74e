package session

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем сессий.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с учебными сессиями.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет новую сессию в статусе planned.
	Create(ctx context.Context, s StudySession) error

	// GetByID возвращает сессию по ID.
	// Возвращает ErrSessionNotFound, если сессия не найдена.
	GetByID(ctx context.Context, id string) (StudySession, error)

	// Update обновляет сессию без проверки статуса.
	// Используется только для полей вне жизненного цикла (заметки, теги).
	Update(ctx context.Context, s StudySession) error

	// UpdateWithStatusCheck обновляет сессию атомарно: запись меняется
	// только если её текущий статус в хранилище равен expectedStatus.
	// Возвращает ErrConcurrentTransition, если статус уже изменился -
	// так проигрывает вторая из двух гонящихся команд.
	UpdateWithStatusCheck(ctx context.Context, s StudySession, expectedStatus Status) error

	// Delete удаляет сессию.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// GetByUser возвращает сессии пользователя с пагинацией,
	// отсортированные по времени создания (новые первыми).
	GetByUser(ctx context.Context, userID string, opts ListOptions) ([]StudySession, error)

	// GetByUserAndTopic возвращает сессии пользователя по конкретной теме.
	GetByUserAndTopic(ctx context.Context, userID, topicID string, opts ListOptions) ([]StudySession, error)

	// GetCompletedByUser возвращает завершённые сессии пользователя.
	// Это вход для агрегатора статистики и расчёта серий.
	GetCompletedByUser(ctx context.Context, userID string) ([]StudySession, error)

	// GetCompletedInRange возвращает завершённые сессии пользователя,
	// закончившиеся в интервале [from, to).
	GetCompletedInRange(ctx context.Context, userID string, from, to time.Time) ([]StudySession, error)

	// GetStartTimes возвращает времена начала завершённых сессий
	// пользователя - минимальный вход для CalculateStreaks.
	GetStartTimes(ctx context.Context, userID string) ([]time.Time, error)

	// GetActiveByUser возвращает текущую активную или приостановленную
	// сессию пользователя, если такая есть.
	GetActiveByUser(ctx context.Context, userID string) (StudySession, error)

	// CountByUser возвращает количество сессий пользователя по статусу.
	CountByUser(ctx context.Context, userID string, status Status) (int, error)
}

// ListOptions содержит параметры пагинации для выборок сессий.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// Status - фильтр по статусу; пустое значение отключает фильтр.
	Status Status
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset: 0,
		Limit:  50,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithStatus устанавливает фильтр по статусу.
func (o ListOptions) WithStatus(status Status) ListOptions {
	o.Status = status
	return o
}
