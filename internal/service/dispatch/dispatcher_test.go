package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ovs/internal/correlation"
	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
)

type published struct {
	topic string
	msg   domain.OutboundMessage
}

type stubPublisher struct {
	mu       sync.Mutex
	messages []published
	failOn   string
	err      error
}

func (s *stubPublisher) Publish(ctx context.Context, topic string, msg domain.OutboundMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && topic == s.failOn {
		return s.err
	}
	s.messages = append(s.messages, published{topic: topic, msg: msg})
	return nil
}

func (s *stubPublisher) all() []published {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]published(nil), s.messages...)
}

func testOrder() domain.Order {
	return domain.Order{
		ID:         "order-1",
		CustomerID: 101,
		ProductID:  202,
		Qty:        5,
	}
}

func TestDispatcher_PublishesToBothParticipants(t *testing.T) {
	publisher := &stubPublisher{}
	registry := correlation.NewRegistry()
	d := NewDispatcher(publisher, registry, "order_response.test", time.Second, nil, nil)

	correlationID, err := d.Dispatch(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if correlationID == "" {
		t.Fatal("expected non-empty correlation id")
	}
	if got := registry.InFlight(); got != 1 {
		t.Fatalf("expected registered correlation entry, got %d", got)
	}

	messages := publisher.all()
	if len(messages) != 2 {
		t.Fatalf("expected 2 published requests, got %d", len(messages))
	}

	byTopic := make(map[string]published, len(messages))
	for _, m := range messages {
		byTopic[m.topic] = m
	}

	customerMsg, ok := byTopic[kafka.TopicCustomerValidation]
	if !ok {
		t.Fatalf("no request published to %s", kafka.TopicCustomerValidation)
	}
	productMsg, ok := byTopic[kafka.TopicProductValidation]
	if !ok {
		t.Fatalf("no request published to %s", kafka.TopicProductValidation)
	}

	// Оба запроса связаны одним correlation id и одним reply-to.
	for _, m := range []published{customerMsg, productMsg} {
		if m.msg.CorrelationID != correlationID {
			t.Fatalf("correlation id mismatch: header %s, dispatch %s", m.msg.CorrelationID, correlationID)
		}
		if m.msg.ReplyTo != "order_response.test" {
			t.Fatalf("unexpected reply-to: %s", m.msg.ReplyTo)
		}
		if m.msg.Key != "order-1" {
			t.Fatalf("unexpected message key: %s", m.msg.Key)
		}
	}

	customerReq, err := kafka.DecodeRequest(customerMsg.msg.Payload)
	if err != nil {
		t.Fatalf("decode customer request: %v", err)
	}
	if customerReq.Kind != domain.ParticipantCustomer || customerReq.Customer == nil {
		t.Fatalf("unexpected customer request: %+v", customerReq)
	}
	if customerReq.Customer.CustomerID != 101 {
		t.Fatalf("unexpected customer id: %d", customerReq.Customer.CustomerID)
	}

	productReq, err := kafka.DecodeRequest(productMsg.msg.Payload)
	if err != nil {
		t.Fatalf("decode product request: %v", err)
	}
	if productReq.Kind != domain.ParticipantProduct || productReq.Product == nil {
		t.Fatalf("unexpected product request: %+v", productReq)
	}
	if productReq.Product.ProductID != 202 || productReq.Product.Qty != 5 {
		t.Fatalf("unexpected product subject: %+v", productReq.Product)
	}
}

func TestDispatcher_UniqueCorrelationPerDispatch(t *testing.T) {
	publisher := &stubPublisher{}
	registry := correlation.NewRegistry()
	d := NewDispatcher(publisher, registry, "order_response", time.Second, nil, nil)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id, err := d.Dispatch(context.Background(), testOrder())
		if err != nil {
			t.Fatalf("dispatch %d failed: %v", i, err)
		}
		if seen[id] {
			t.Fatalf("correlation id %s issued twice", id)
		}
		seen[id] = true
	}
}

func TestDispatcher_PublishFailureLeavesEntryForSweep(t *testing.T) {
	brokerErr := errors.New("kafka: client has run out of available brokers")
	publisher := &stubPublisher{failOn: kafka.TopicProductValidation, err: brokerErr}
	registry := correlation.NewRegistry()
	d := NewDispatcher(publisher, registry, "order_response", time.Second, nil, nil)

	if _, err := d.Dispatch(context.Background(), testOrder()); !errors.Is(err, brokerErr) {
		t.Fatalf("expected publish error, got %v", err)
	}

	// Запись не дерегистрируется синхронно: её заберёт фоновая очистка.
	if got := registry.InFlight(); got != 1 {
		t.Fatalf("expected entry to stay until sweep, got %d", got)
	}
	if removed := registry.Sweep(time.Now().Add(time.Hour)); removed != 1 {
		t.Fatalf("expected sweep to evict orphaned entry, got %d", removed)
	}
}
