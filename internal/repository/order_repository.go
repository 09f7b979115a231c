package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Order repository errors
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// Place appends the order and clears the owning account's cart in a
	// single transaction.
	Place(ctx context.Context, order *Order) error
	GetByAccount(ctx context.Context, accountID uuid.UUID) ([]Order, error)
	GetByRef(ctx context.Context, orderRef string) (*Order, error)
}

// orderRepository implements OrderRepository using sqlx over the pgx stdlib driver
type orderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new OrderRepository instance
func NewOrderRepository(db *sqlx.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Place inserts the order and clears the account cart atomically
func (r *orderRepository) Place(ctx context.Context, order *Order) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	insert := `
		INSERT INTO orders (account_id, order_ref, product_ids, total_cost, paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, insert,
		order.AccountID,
		order.OrderRef,
		order.ProductIDs,
		order.TotalCost,
		order.Paid,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return err
	}

	clearCart := `
		UPDATE accounts
		SET cart = '[]'::jsonb, version = version + 1, updated_at = NOW()
		WHERE id = $1
	`
	result, err := tx.ExecContext(ctx, clearCart, order.AccountID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit()
}

// GetByAccount returns all orders for an account, newest first
func (r *orderRepository) GetByAccount(ctx context.Context, accountID uuid.UUID) ([]Order, error) {
	query := `
		SELECT id, account_id, order_ref, product_ids, total_cost, paid, created_at
		FROM orders
		WHERE account_id = $1
		ORDER BY created_at DESC
	`

	var orders []Order
	if err := r.db.SelectContext(ctx, &orders, query, accountID); err != nil {
		return nil, err
	}

	return orders, nil
}

// GetByRef returns a single order by its external reference
func (r *orderRepository) GetByRef(ctx context.Context, orderRef string) (*Order, error) {
	query := `
		SELECT id, account_id, order_ref, product_ids, total_cost, paid, created_at
		FROM orders
		WHERE order_ref = $1
	`

	order := &Order{}
	if err := r.db.GetContext(ctx, order, query, orderRef); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}
