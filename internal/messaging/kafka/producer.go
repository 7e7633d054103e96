package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// Producer представляет Kafka producer для публикации сообщений протокола.
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

var _ domain.MessagePublisher = (*Producer)(nil)

// NewProducer создает новый Kafka producer.
func NewProducer(brokers []string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll // Wait for all in-sync replicas
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true // Включаем идемпотентность
	config.Net.MaxOpenRequests = 1    // Для идемпотентности

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("%w: create kafka producer: %v", domain.ErrBrokerUnavailable, err)
	}

	return &Producer{
		producer: producer,
		logger:   log.WithField("component", "kafka-producer"),
	}, nil
}

// Publish публикует сообщение в topic, перенося correlation id и reply-to
// в заголовки записи. Конкурентные вызовы безопасны: sarama сериализует
// кадрирование внутри SyncProducer.
func (p *Producer) Publish(ctx context.Context, topic string, msg domain.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	headers := make([]sarama.RecordHeader, 0, 2)
	if msg.CorrelationID != "" {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(HeaderCorrelationID),
			Value: []byte(msg.CorrelationID),
		})
	}
	if msg.ReplyTo != "" {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(HeaderReplyTo),
			Value: []byte(msg.ReplyTo),
		})
	}

	pm := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(msg.Key),
		Value:     sarama.ByteEncoder(msg.Payload),
		Headers:   headers,
		Timestamp: time.Now(),
	}

	partition, offset, err := p.producer.SendMessage(pm)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic":          topic,
			"correlation_id": msg.CorrelationID,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("%w: send message to %s: %v", domain.ErrBrokerUnavailable, topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":          topic,
		"correlation_id": msg.CorrelationID,
		"partition":      partition,
		"offset":         offset,
	}).Debug("message sent to kafka")

	return nil
}

// Close закрывает producer.
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
