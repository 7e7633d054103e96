package domain

import "time"

// OrderStatus описывает состояние заказа после прохождения валидации.
type OrderStatus string

const (
	// OrderStatusPending — заказ принят локально, валидация ещё не завершена.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusApproved — оба участника подтвердили заказ, запись сохранена.
	OrderStatusApproved OrderStatus = "approved"
	// OrderStatusRejected — хотя бы один участник отклонил заказ.
	OrderStatusRejected OrderStatus = "rejected"
	// OrderStatusTimedOut — кворум ответов не собран до дедлайна.
	OrderStatusTimedOut OrderStatus = "timed_out"
)

// Order — заказ с единственной товарной позицией, как в исходной системе.
type Order struct {
	ID         string
	CustomerID int64
	ProductID  int64
	Qty        int32
	Status     OrderStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID <= 0 {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.ProductID <= 0 {
		errs = append(errs, ErrProductRequired)
	}
	if o.Qty <= 0 {
		errs = append(errs, ErrQtyInvalid)
	}

	return errs
}
