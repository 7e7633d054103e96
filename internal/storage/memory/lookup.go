package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// CustomerLookup — in-memory источник данных о клиентах.
// Локальная замена реальной базы customer-сервиса.
type CustomerLookup struct {
	mu        sync.RWMutex
	customers map[int64]struct{}
}

var _ domain.CustomerLookup = (*CustomerLookup)(nil)

// NewCustomerLookup возвращает пустой lookup клиентов.
func NewCustomerLookup() *CustomerLookup {
	return &CustomerLookup{customers: make(map[int64]struct{})}
}

// NewSeededCustomerLookup возвращает lookup с демо-клиентами исходной системы: 101–103.
func NewSeededCustomerLookup() *CustomerLookup {
	l := NewCustomerLookup()
	l.Add(101)
	l.Add(102)
	l.Add(103)
	return l
}

// Add регистрирует клиента.
func (l *CustomerLookup) Add(customerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.customers[customerID] = struct{}{}
}

// Exists сообщает, существует ли клиент с данным ID.
func (l *CustomerLookup) Exists(ctx context.Context, customerID int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.customers[customerID]
	return ok, nil
}

// ProductLookup — in-memory источник данных о товарах и остатках.
type ProductLookup struct {
	mu    sync.RWMutex
	stock map[int64]int32
}

var _ domain.ProductLookup = (*ProductLookup)(nil)

// NewProductLookup возвращает пустой lookup товаров.
func NewProductLookup() *ProductLookup {
	return &ProductLookup{stock: make(map[int64]int32)}
}

// NewSeededProductLookup возвращает lookup с демо-остатками исходной системы:
// товар 202 с остатком 10 и товар 203 с остатком 2.
func NewSeededProductLookup() *ProductLookup {
	l := NewProductLookup()
	l.SetStock(202, 10)
	l.SetStock(203, 2)
	return l
}

// SetStock задаёт остаток товара.
func (l *ProductLookup) SetStock(productID int64, qty int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = qty
}

// Exists сообщает, существует ли товар с данным ID.
func (l *ProductLookup) Exists(ctx context.Context, productID int64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.stock[productID]
	return ok, nil
}

// HasStock сообщает, покрывает ли остаток товара требуемое количество.
func (l *ProductLookup) HasStock(ctx context.Context, productID int64, qty int32) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	available, ok := l.stock[productID]
	return ok && qty <= available, nil
}
