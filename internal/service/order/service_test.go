package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ovs/internal/correlation"
	"github.com/vladislavdragonenkov/ovs/internal/domain"
	"github.com/vladislavdragonenkov/ovs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ovs/internal/service/aggregator"
	"github.com/vladislavdragonenkov/ovs/internal/service/dispatch"
	"github.com/vladislavdragonenkov/ovs/internal/service/participant"
	"github.com/vladislavdragonenkov/ovs/internal/storage/memory"
)

// memoryBus доставляет опубликованные сообщения подписчикам синхронно,
// заменяя брокер в тестах полного протокольного цикла. Топики без
// подписчика молчат, что моделирует отказавшего участника.
type memoryBus struct {
	mu       sync.Mutex
	handlers map[string]domain.MessageHandler
}

func newMemoryBus() *memoryBus {
	return &memoryBus{handlers: make(map[string]domain.MessageHandler)}
}

func (b *memoryBus) subscribe(topic string, handler domain.MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
}

func (b *memoryBus) Publish(ctx context.Context, topic string, msg domain.OutboundMessage) error {
	b.mu.Lock()
	handler := b.handlers[topic]
	b.mu.Unlock()

	if handler == nil {
		return nil
	}
	return handler(ctx, domain.InboundMessage{
		Topic:         topic,
		Key:           msg.Key,
		CorrelationID: msg.CorrelationID,
		ReplyTo:       msg.ReplyTo,
		Payload:       msg.Payload,
	})
}

type fixture struct {
	svc  *Service
	repo domain.OrderRepository
	bus  *memoryBus
}

// newFixture собирает полный протокольный цикл в памяти:
// dispatcher → участники → агрегатор → реестр.
func newFixture(t *testing.T, timeout time.Duration, participants ...domain.ParticipantKind) fixture {
	t.Helper()

	bus := newMemoryBus()
	registry := correlation.NewRegistry()
	const replyTopic = "order_response.test"

	d := dispatch.NewDispatcher(bus, registry, replyTopic, timeout, nil, nil)
	agg := aggregator.NewAggregator(registry, nil, nil)
	bus.subscribe(replyTopic, agg.Handle)

	for _, kind := range participants {
		switch kind {
		case domain.ParticipantCustomer:
			p := participant.NewParticipant(participant.NewCustomerEvaluator(memory.NewSeededCustomerLookup()), bus, nil, nil)
			bus.subscribe(kafka.TopicCustomerValidation, p.Handle)
		case domain.ParticipantProduct:
			p := participant.NewParticipant(participant.NewProductEvaluator(memory.NewSeededProductLookup()), bus, nil, nil)
			bus.subscribe(kafka.TopicProductValidation, p.Handle)
		}
	}

	repo := memory.NewOrderRepository()
	return fixture{
		svc:  NewService(repo, d, agg, nil),
		repo: repo,
		bus:  bus,
	}
}

func TestPlaceOrder_ApprovedAndPersisted(t *testing.T) {
	f := newFixture(t, 5*time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

	placed, err := f.svc.PlaceOrder(context.Background(), domain.Order{
		CustomerID: 101,
		ProductID:  202,
		Qty:        5,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if placed.Status != domain.OrderStatusApproved {
		t.Fatalf("expected approved status, got %s", placed.Status)
	}
	if placed.ID == "" {
		t.Fatal("expected generated order id")
	}

	stored, err := f.repo.Get(placed.ID)
	if err != nil {
		t.Fatalf("approved order must be persisted: %v", err)
	}
	if stored.Status != domain.OrderStatusApproved {
		t.Fatalf("persisted order has status %s", stored.Status)
	}
}

func TestPlaceOrder_RejectedNotPersisted(t *testing.T) {
	cases := []struct {
		name  string
		order domain.Order
	}{
		{
			name:  "unknown customer",
			order: domain.Order{CustomerID: 999, ProductID: 202, Qty: 5},
		},
		{
			name:  "insufficient stock",
			order: domain.Order{CustomerID: 101, ProductID: 203, Qty: 5},
		},
		{
			name:  "unknown product",
			order: domain.Order{CustomerID: 101, ProductID: 999, Qty: 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5*time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

			_, err := f.svc.PlaceOrder(context.Background(), tc.order)
			if !errors.Is(err, domain.ErrOrderRejected) {
				t.Fatalf("expected ErrOrderRejected, got %v", err)
			}

			// Отклонённый заказ не оставляет следов в хранилище.
			orders, err := f.repo.ListByCustomer(tc.order.CustomerID, 10)
			if err != nil {
				t.Fatalf("list orders: %v", err)
			}
			if len(orders) != 0 {
				t.Fatalf("expected no persisted orders, got %d", len(orders))
			}
		})
	}
}

func TestPlaceOrder_SilentParticipantTimesOut(t *testing.T) {
	// Product-участник не подписан: его очередь молчит.
	f := newFixture(t, 100*time.Millisecond, domain.ParticipantCustomer)

	start := time.Now()
	_, err := f.svc.PlaceOrder(context.Background(), domain.Order{
		CustomerID: 101,
		ProductID:  202,
		Qty:        5,
	})
	if !errors.Is(err, domain.ErrValidationTimedOut) {
		t.Fatalf("expected ErrValidationTimedOut, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("timed out after %s, before validation deadline", elapsed)
	}

	orders, err := f.repo.ListByCustomer(101, 10)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("timed out order must not be persisted, got %d", len(orders))
	}
}

func TestPlaceOrder_InvariantViolationsRejectedUpfront(t *testing.T) {
	f := newFixture(t, time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

	_, err := f.svc.PlaceOrder(context.Background(), domain.Order{
		CustomerID: 0,
		ProductID:  202,
		Qty:        0,
	})
	if err == nil {
		t.Fatal("expected invariant violation error")
	}
	if !errors.Is(err, domain.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired in joined error, got %v", err)
	}
	if !errors.Is(err, domain.ErrQtyInvalid) {
		t.Fatalf("expected ErrQtyInvalid in joined error, got %v", err)
	}
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, 5*time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

	placed, err := f.svc.PlaceOrder(context.Background(), domain.Order{
		CustomerID: 102,
		ProductID:  202,
		Qty:        1,
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}

	got, err := f.svc.GetOrder(placed.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if got.ID != placed.ID || got.CustomerID != 102 {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := f.svc.GetOrder("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := f.svc.GetOrder(""); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for empty id, got %v", err)
	}
}

func TestListOrdersByCustomer(t *testing.T) {
	f := newFixture(t, 5*time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.PlaceOrder(context.Background(), domain.Order{
			CustomerID: 103,
			ProductID:  202,
			Qty:        1,
		}); err != nil {
			t.Fatalf("place order %d failed: %v", i, err)
		}
	}

	orders, err := f.svc.ListOrdersByCustomer(103, 2)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected limit to apply, got %d orders", len(orders))
	}

	all, err := f.svc.ListOrdersByCustomer(103, 0)
	if err != nil {
		t.Fatalf("list orders failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 orders with default limit, got %d", len(all))
	}
}

func TestPlaceOrder_ConcurrentOrdersIsolated(t *testing.T) {
	f := newFixture(t, 5*time.Second, domain.ParticipantCustomer, domain.ParticipantProduct)

	type result struct {
		order domain.Order
		err   error
	}

	const n = 16
	results := make([]result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Чётные заказы валидны, нечётные упираются в остаток 203-го товара.
			order := domain.Order{CustomerID: 101, ProductID: 202, Qty: 1}
			if i%2 == 1 {
				order.ProductID = 203
				order.Qty = 100
			}
			results[i].order, results[i].err = f.svc.PlaceOrder(context.Background(), order)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if i%2 == 0 {
			if res.err != nil {
				t.Fatalf("order %d: expected approval, got %v", i, res.err)
			}
			if res.order.Status != domain.OrderStatusApproved {
				t.Fatalf("order %d: expected approved, got %s", i, res.order.Status)
			}
		} else if !errors.Is(res.err, domain.ErrOrderRejected) {
			t.Fatalf("order %d: expected rejection, got %v", i, res.err)
		}
	}

	approved, err := f.repo.ListByCustomer(101, 100)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(approved) != n/2 {
		t.Fatalf("expected %d persisted orders, got %d", n/2, len(approved))
	}
}
