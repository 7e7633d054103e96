package participant

import (
	"context"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// CustomerEvaluator проверяет существование клиента, на которого ссылается заказ.
type CustomerEvaluator struct {
	lookup domain.CustomerLookup
}

// NewCustomerEvaluator создаёт evaluator поверх авторитетного источника клиентов.
func NewCustomerEvaluator(lookup domain.CustomerLookup) *CustomerEvaluator {
	return &CustomerEvaluator{lookup: lookup}
}

// Kind возвращает вид участника.
func (e *CustomerEvaluator) Kind() domain.ParticipantKind {
	return domain.ParticipantCustomer
}

// Evaluate проверяет существование клиента.
func (e *CustomerEvaluator) Evaluate(ctx context.Context, req domain.ValidationRequest) (domain.Outcome, error) {
	exists, err := e.lookup.Exists(ctx, req.Customer.CustomerID)
	if err != nil {
		return domain.OutcomeInvalid, err
	}
	if !exists {
		return domain.OutcomeInvalid, nil
	}
	return domain.OutcomeValid, nil
}

var _ Evaluator = (*CustomerEvaluator)(nil)
