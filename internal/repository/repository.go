package repository

import (
	"context"
	"time"

	"order-service/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// BeginTx starts a new database transaction.
	BeginTx(ctx context.Context) (pgx.Tx, error)

	// CreateOrder inserts the order row within the provided transaction.
	CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error

	// CreateOrderItems inserts the items within the provided transaction.
	// Slice order is preserved as the item position.
	CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error

	// GetByID retrieves an order with its items. Returns nil, nil if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// ListByUser retrieves a user's orders, newest first.
	ListByUser(ctx context.Context, userEmail string) ([]model.Order, error)

	// ListByStatus retrieves up to limit orders in the given status, newest first.
	ListByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)

	// UpdateStatus moves an order from one status to another. It reports
	// false when the order no longer holds status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, at time.Time) (bool, error)

	// UpdatePayment stores the payment reference of an order. It reports
	// false when the order does not exist.
	UpdatePayment(ctx context.Context, id uuid.UUID, transactionID, paymentStatus string, at time.Time) (bool, error)
}
