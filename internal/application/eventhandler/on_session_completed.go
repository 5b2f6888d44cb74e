// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON SESSION COMPLETED HANDLER
// Обрабатывает событие завершения сессии.
//
// Ключевые функции:
// 1. Инвалидация кеша статистики — следующий запрос увидит свежие счётчики
// 2. Структурированный лог завершения — основа для отладки расхождений
//
// Кеш инвалидируется, а не перезаписывается: завершение сессии меняет
// сразу несколько агрегатов, и дешевле дать следующему чтению собрать
// актуальное состояние из базы.
// ═══════════════════════════════════════════════════════════════════════════

// OnSessionCompletedHandler обрабатывает завершение сессии.
type OnSessionCompletedHandler struct {
	cache user.Cache
	log   *logger.Logger
}

// NewOnSessionCompletedHandler создаёт новый обработчик.
// cache может быть nil - тогда остаётся только логирование.
func NewOnSessionCompletedHandler(cache user.Cache, log *logger.Logger) *OnSessionCompletedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnSessionCompletedHandler{
		cache: cache,
		log:   log.With(logger.String("handler", "on_session_completed")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnSessionCompletedHandler) Handle(ctx context.Context, event shared.Event) error {
	completed, ok := event.(shared.SessionCompletedEvent)
	if !ok {
		// Чужое событие: диспетчер настроен неправильно, но ронять
		// обработку не нужно.
		h.log.Warn("unexpected event type",
			logger.String("event_type", string(event.EventType())))
		return nil
	}

	h.log.Info("session completed",
		logger.String("session_id", completed.AggregateID()),
		logger.String("user_id", completed.UserID),
		logger.String("topic_id", completed.TopicID),
		logger.String("session_type", completed.SessionType),
		logger.Int("actual_duration", completed.ActualDuration),
		logger.Int("paused_time", completed.PausedTime))

	if h.cache == nil {
		return nil
	}
	if err := h.cache.Invalidate(ctx, completed.UserID); err != nil {
		// Кеш с TTL догонит сам; ошибка инвалидации не критична.
		h.log.Warn("failed to invalidate stats cache",
			logger.String("user_id", completed.UserID),
			logger.Err(err))
	}
	return nil
}

// HandlerFunc возвращает функцию для регистрации в диспетчере.
func (h *OnSessionCompletedHandler) HandlerFunc() shared.EventHandler {
	return h.Handle
}
