package participant

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/metrics"
)

// Evaluator проверяет предмет запроса против авторитетного источника данных.
type Evaluator interface {
	Kind() domain.ParticipantKind
	Evaluate(ctx context.Context, req domain.ValidationRequest) (domain.Outcome, error)
}

// Participant — stateless обработчик своей request очереди: на каждый запрос
// публикует ровно один ответ с тем же correlation id на reply-to адрес запроса.
// Переобработка после redelivery безопасна: состояние не накапливается,
// повторный ответ коллапсируется реестром на стороне агрегатора.
type Participant struct {
	evaluator Evaluator
	publisher domain.MessagePublisher
	logger    *log.Entry
	metrics   *metrics.ValidationMetrics
}

// NewParticipant создаёт участника с данным evaluator.
func NewParticipant(evaluator Evaluator, publisher domain.MessagePublisher, m *metrics.ValidationMetrics, logger *log.Entry) *Participant {
	if logger == nil {
		logger = log.WithFields(log.Fields{
			"component":   "participant",
			"participant": string(evaluator.Kind()),
		})
	}
	return &Participant{
		evaluator: evaluator,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
	}
}

// Handle обрабатывает одно сообщение из request очереди. Нечитаемое сообщение
// отбрасывается с логом и метрикой: одно плохое сообщение не должно
// останавливать потребление очереди. Ненулевая ошибка возвращается только для
// retryable сбоев (публикация ответа).
func (p *Participant) Handle(ctx context.Context, msg domain.InboundMessage) error {
	req, err := kafka.DecodeRequest(msg.Payload)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordMalformed(string(p.evaluator.Kind()))
		}
		p.logger.WithError(err).WithField("topic", msg.Topic).Warn("dropping malformed validation request")
		return nil
	}
	if req.Kind != p.evaluator.Kind() {
		if p.metrics != nil {
			p.metrics.RecordMalformed(string(p.evaluator.Kind()))
		}
		p.logger.WithFields(log.Fields{
			"correlation_id": req.CorrelationID,
			"kind":           string(req.Kind),
		}).Warn("dropping request addressed to another participant")
		return nil
	}

	start := time.Now()
	outcome, err := p.evaluator.Evaluate(ctx, req)
	if p.metrics != nil {
		p.metrics.RecordEvaluateDuration(string(p.evaluator.Kind()), time.Since(start))
	}
	if err != nil {
		// Сбой lookup транслируется в invalid, а не в молчание: ожидающий
		// должен дойти до терминального состояния, а не до таймаута.
		p.logger.WithError(err).WithField("correlation_id", req.CorrelationID).Warn("lookup failed, replying invalid")
		outcome = domain.OutcomeInvalid
	}

	resp := domain.ValidationResponse{
		CorrelationID: req.CorrelationID,
		Participant:   p.evaluator.Kind(),
		Outcome:       outcome,
	}
	payload, err := kafka.EncodeResponse(resp)
	if err != nil {
		return err
	}

	if err := p.publisher.Publish(ctx, req.ReplyTo, domain.OutboundMessage{
		Key:           req.CorrelationID,
		CorrelationID: req.CorrelationID,
		Payload:       payload,
	}); err != nil {
		return err
	}

	p.logger.WithFields(log.Fields{
		"correlation_id": req.CorrelationID,
		"outcome":        string(outcome),
		"reply_to":       req.ReplyTo,
	}).Debug("validation response published")

	return nil
}
