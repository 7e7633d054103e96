package aggregator

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/correlation"
	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
)

// Aggregator — единственный сетевой writer в реестр: потребляет общую reply
// очередь и маршрутизирует каждый ответ по correlation id. Запускается один
// раз при старте процесса и живёт до его остановки.
type Aggregator struct {
	registry *correlation.Registry
	logger   *log.Entry
	metrics  *metrics.ValidationMetrics
}

var _ domain.ValidationAwaiter = (*Aggregator)(nil)

// NewAggregator создаёт агрегатор поверх реестра.
func NewAggregator(registry *correlation.Registry, m *metrics.ValidationMetrics, logger *log.Entry) *Aggregator {
	if logger == nil {
		logger = log.WithField("component", "aggregator")
	}
	return &Aggregator{
		registry: registry,
		logger:   logger,
		metrics:  m,
	}
}

// Handle обрабатывает одно сообщение из reply очереди. Нечитаемые ответы
// отбрасываются, не прерывая потребление; неизвестные correlation id
// реестр отбрасывает сам, это ожидаемая гонка поздней доставки и eviction.
func (a *Aggregator) Handle(ctx context.Context, msg domain.InboundMessage) error {
	resp, err := kafka.DecodeResponse(msg.Payload)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordMalformed("aggregator")
		}
		a.logger.WithError(err).WithField("topic", msg.Topic).Warn("dropping malformed validation response")
		return nil
	}

	if msg.CorrelationID != "" && msg.CorrelationID != resp.CorrelationID {
		// Тело — источник истины; расхождение с заголовком только логируем.
		a.logger.WithFields(log.Fields{
			"header_correlation_id": msg.CorrelationID,
			"body_correlation_id":   resp.CorrelationID,
		}).Warn("correlation id mismatch between header and body")
	}

	a.registry.Record(resp)
	return nil
}

// Await блокирует вызывающего до кворума ответов или дедлайна регистрации.
func (a *Aggregator) Await(ctx context.Context, correlationID string) (domain.ValidationResult, error) {
	return a.registry.Await(ctx, correlationID)
}
