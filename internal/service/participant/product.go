package participant

import (
	"context"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// ProductEvaluator проверяет существование товара и достаточность остатка.
type ProductEvaluator struct {
	lookup domain.ProductLookup
}

// NewProductEvaluator создаёт evaluator поверх авторитетного источника товаров.
func NewProductEvaluator(lookup domain.ProductLookup) *ProductEvaluator {
	return &ProductEvaluator{lookup: lookup}
}

// Kind возвращает вид участника.
func (e *ProductEvaluator) Kind() domain.ParticipantKind {
	return domain.ParticipantProduct
}

// Evaluate проверяет, что товар существует и остаток покрывает требуемое количество.
func (e *ProductEvaluator) Evaluate(ctx context.Context, req domain.ValidationRequest) (domain.Outcome, error) {
	exists, err := e.lookup.Exists(ctx, req.Product.ProductID)
	if err != nil {
		return domain.OutcomeInvalid, err
	}
	if !exists {
		return domain.OutcomeInvalid, nil
	}

	enough, err := e.lookup.HasStock(ctx, req.Product.ProductID, req.Product.Qty)
	if err != nil {
		return domain.OutcomeInvalid, err
	}
	if !enough {
		return domain.OutcomeInvalid, nil
	}
	return domain.OutcomeValid, nil
}

var _ Evaluator = (*ProductEvaluator)(nil)
