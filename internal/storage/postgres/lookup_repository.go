package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/ovs/internal/domain"
)

// customerLookup — PostgreSQL-реализация авторитетного источника клиентов.
type customerLookup struct {
	db *sql.DB
}

// NewCustomerLookup создаёт lookup клиентов поверх таблицы customers.
func NewCustomerLookup(store *Store) domain.CustomerLookup {
	return &customerLookup{db: store.DB()}
}

func (l *customerLookup) Exists(ctx context.Context, customerID int64) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	err := l.db.QueryRowContext(queryCtx, `
		SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)
	`, customerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query customer existence: %w", err)
	}
	return exists, nil
}

// productLookup — PostgreSQL-реализация источника товаров и остатков.
type productLookup struct {
	db *sql.DB
}

// NewProductLookup создаёт lookup товаров поверх таблицы products.
func NewProductLookup(store *Store) domain.ProductLookup {
	return &productLookup{db: store.DB()}
}

func (l *productLookup) Exists(ctx context.Context, productID int64) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var exists bool
	err := l.db.QueryRowContext(queryCtx, `
		SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)
	`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query product existence: %w", err)
	}
	return exists, nil
}

func (l *productLookup) HasStock(ctx context.Context, productID int64, qty int32) (bool, error) {
	queryCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var enough bool
	err := l.db.QueryRowContext(queryCtx, `
		SELECT stock >= $2 FROM products WHERE id = $1
	`, productID, qty).Scan(&enough)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query product stock: %w", err)
	}
	return enough, nil
}
