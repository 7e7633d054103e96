package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

const defaultListOrdersLimit = 100

// Service принимает заказ, прогоняет его через асинхронную валидацию и
// сохраняет только одобренные заказы. Rejected и TimedOut видны вызывающему
// как ошибки без какой-либо записи в репозитории (fail closed).
type Service struct {
	repo       domain.OrderRepository
	dispatcher domain.ValidationDispatcher
	awaiter    domain.ValidationAwaiter
	logger     *log.Entry
}

// NewService конструирует сервис с зависимостями.
func NewService(
	repo domain.OrderRepository,
	dispatcher domain.ValidationDispatcher,
	awaiter domain.ValidationAwaiter,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		awaiter:    awaiter,
		logger:     logger,
	}
}

// PlaceOrder проводит заказ по машине состояний
// Created → Dispatched → AwaitingQuorum → {Approved | Rejected | TimedOut}.
func (s *Service) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	order.Status = domain.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	correlationID, err := s.dispatcher.Dispatch(ctx, order)
	if err != nil {
		return domain.Order{}, fmt.Errorf("dispatch validation: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"correlation_id": correlationID,
	}).Debug("order dispatched, awaiting quorum")

	result, err := s.awaiter.Await(ctx, correlationID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("await validation: %w", err)
	}

	switch result.Verdict {
	case domain.VerdictApproved:
		order.Status = domain.OrderStatusApproved
		order.UpdatedAt = time.Now().UTC()
		if err := s.repo.Create(order); err != nil {
			return domain.Order{}, fmt.Errorf("persist approved order: %w", err)
		}
		s.logger.WithFields(log.Fields{
			"order_id":       order.ID,
			"correlation_id": correlationID,
		}).Info("order approved and persisted")
		return order, nil

	case domain.VerdictRejected:
		s.logger.WithFields(log.Fields{
			"order_id":       order.ID,
			"correlation_id": correlationID,
			"responses":      len(result.Responses),
		}).Info("order rejected by validation")
		return domain.Order{}, domain.ErrOrderRejected

	default:
		s.logger.WithFields(log.Fields{
			"order_id":       order.ID,
			"correlation_id": correlationID,
			"responses":      len(result.Responses),
		}).Warn("order validation timed out")
		return domain.Order{}, domain.ErrValidationTimedOut
	}
}

// GetOrder возвращает сохранённый заказ по ID.
func (s *Service) GetOrder(id string) (domain.Order, error) {
	if id == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return s.repo.Get(id)
}

// ListOrdersByCustomer возвращает заказы клиента, новые первыми.
func (s *Service) ListOrdersByCustomer(customerID int64, limit int) ([]domain.Order, error) {
	if limit <= 0 || limit > defaultListOrdersLimit {
		limit = defaultListOrdersLimit
	}
	return s.repo.ListByCustomer(customerID, limit)
}
