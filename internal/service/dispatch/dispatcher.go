package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/correlation"
	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
)

// participants — фиксированный набор участников валидации заказа.
var participants = []domain.ParticipantKind{
	domain.ParticipantCustomer,
	domain.ParticipantProduct,
}

// Dispatcher публикует по одному запросу валидации каждому участнику,
// связывая их общим correlation id и общим reply-to адресом.
// Отправка fire-and-forget: ожидание ответов — отдельная операция,
// так что вызывающий может диспатчить много заказов конкурентно.
type Dispatcher struct {
	publisher domain.MessagePublisher
	registry  *correlation.Registry
	replyTo   string
	timeout   time.Duration
	logger    *log.Entry
	metrics   *metrics.ValidationMetrics
}

var _ domain.ValidationDispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт dispatcher с данным reply-to адресом и дедлайном валидации.
func NewDispatcher(
	publisher domain.MessagePublisher,
	registry *correlation.Registry,
	replyTo string,
	timeout time.Duration,
	m *metrics.ValidationMetrics,
	logger *log.Entry,
) *Dispatcher {
	if logger == nil {
		logger = log.WithField("component", "dispatcher")
	}
	return &Dispatcher{
		publisher: publisher,
		registry:  registry,
		replyTo:   replyTo,
		timeout:   timeout,
		logger:    logger,
		metrics:   m,
	}
}

// Dispatch регистрирует correlation запись и публикует запросы обоим участникам.
func (d *Dispatcher) Dispatch(ctx context.Context, order domain.Order) (string, error) {
	correlationID := uuid.NewString()
	deadline := time.Now().Add(d.timeout)

	if err := d.registry.Register(correlationID, len(participants), deadline); err != nil {
		return "", fmt.Errorf("register correlation: %w", err)
	}

	for _, kind := range participants {
		req := domain.ValidationRequest{
			CorrelationID: correlationID,
			ReplyTo:       d.replyTo,
			Kind:          kind,
		}
		switch kind {
		case domain.ParticipantCustomer:
			req.Customer = &domain.CustomerRef{CustomerID: order.CustomerID}
		case domain.ParticipantProduct:
			req.Product = &domain.ProductRef{ProductID: order.ProductID, Qty: order.Qty}
		}

		payload, err := kafka.EncodeRequest(req)
		if err != nil {
			return "", err
		}
		topic, err := kafka.RequestTopicFor(kind)
		if err != nil {
			return "", err
		}

		if err := d.publisher.Publish(ctx, topic, domain.OutboundMessage{
			Key:           order.ID,
			CorrelationID: correlationID,
			ReplyTo:       d.replyTo,
			Payload:       payload,
		}); err != nil {
			d.logger.WithError(err).WithFields(log.Fields{
				"correlation_id": correlationID,
				"topic":          topic,
			}).Error("failed to publish validation request")
			// Запись остаётся в реестре: её заберёт фоновая очистка после дедлайна.
			return "", err
		}
	}

	if d.metrics != nil {
		d.metrics.RecordDispatched()
	}
	d.logger.WithFields(log.Fields{
		"correlation_id": correlationID,
		"order_id":       order.ID,
		"deadline":       deadline,
	}).Debug("validation requests dispatched")

	return correlationID, nil
}
