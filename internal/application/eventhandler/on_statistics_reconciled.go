package eventhandler

import (
	"context"

	"github.com/studyhub/study-tracker/internal/domain/shared"
	"github.com/studyhub/study-tracker/internal/domain/user"
	"github.com/studyhub/study-tracker/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STATISTICS RECONCILED HANDLER
// Обрабатывает событие сверки статистики.
//
// Событие выпускается только когда сверка нашла и исправила расхождение,
// поэтому каждое срабатывание - сигнал: где-то потерялся инкремент.
// Обработчик логирует дрейф и инвалидирует кеш, чтобы исправленные
// значения сразу попали к пользователю.
// ═══════════════════════════════════════════════════════════════════════════

// LargeDriftHours - порог, после которого дрейф логируется как ошибка,
// а не предупреждение.
const LargeDriftHours = 1.0

// OnStatisticsReconciledHandler обрабатывает исправление статистики.
type OnStatisticsReconciledHandler struct {
	cache user.Cache
	log   *logger.Logger
}

// NewOnStatisticsReconciledHandler создаёт новый обработчик.
func NewOnStatisticsReconciledHandler(cache user.Cache, log *logger.Logger) *OnStatisticsReconciledHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnStatisticsReconciledHandler{
		cache: cache,
		log:   log.With(logger.String("handler", "on_statistics_reconciled")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStatisticsReconciledHandler) Handle(ctx context.Context, event shared.Event) error {
	reconciled, ok := event.(shared.StatisticsReconciledEvent)
	if !ok {
		h.log.Warn("unexpected event type",
			logger.String("event_type", string(event.EventType())))
		return nil
	}

	fields := []logger.Field{
		logger.String("user_id", reconciled.AggregateID()),
		logger.Float64("drift_hours", reconciled.DriftHours),
		logger.Int("drift_sessions", reconciled.DriftSessions),
	}
	if reconciled.DriftHours >= LargeDriftHours || reconciled.DriftHours <= -LargeDriftHours {
		h.log.Error("statistics drift corrected", fields...)
	} else {
		h.log.Warn("statistics drift corrected", fields...)
	}

	if h.cache == nil {
		return nil
	}
	if err := h.cache.Invalidate(ctx, reconciled.AggregateID()); err != nil {
		h.log.Warn("failed to invalidate stats cache",
			logger.String("user_id", reconciled.AggregateID()),
			logger.Err(err))
	}
	return nil
}

// HandlerFunc возвращает функцию для регистрации в диспетчере.
func (h *OnStatisticsReconciledHandler) HandlerFunc() shared.EventHandler {
	return h.Handle
}
