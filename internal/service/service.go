package service

import (
	"context"
	"time"

	"order-service/internal/dispatch"
	"order-service/internal/model"

	"github.com/google/uuid"
)

// CheckoutService turns a user's cart into a placed order.
type CheckoutService interface {
	// Checkout runs the full checkout workflow for the user's current cart.
	Checkout(ctx context.Context, userEmail, shippingAddress string) (*model.Order, error)
}

// OrderQueryService answers read-only questions about placed orders.
type OrderQueryService interface {
	// GetOrder retrieves one order with its items.
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// GetOrderHistory retrieves a user's orders, newest first.
	GetOrderHistory(ctx context.Context, userEmail string) ([]model.Order, error)

	// ListByStatus retrieves up to limit orders in the given status.
	ListByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
}

// OrderStatusService applies lifecycle changes reported by fulfilment and
// payment systems.
type OrderStatusService interface {
	// UpdateStatus moves an order to next if the lifecycle allows it.
	UpdateStatus(ctx context.Context, id uuid.UUID, next model.OrderStatus) (*model.Order, error)

	// RecordPayment stores the payment reference of an order.
	RecordPayment(ctx context.Context, id uuid.UUID, transactionID, paymentStatus string) (*model.Order, error)
}

// CartService is the cart collaborator.
type CartService interface {
	GetCart(ctx context.Context, userEmail string) ([]model.CartLine, error)
	ClearCart(ctx context.Context, userEmail string) error
}

// StockService is the product catalogue's stock API.
type StockService interface {
	BulkReserveStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error)
	RestoreStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error)
}

// Dispatcher queues best-effort work off the request path.
type Dispatcher interface {
	Submit(ctx context.Context, name string, task dispatch.Task) error
}

// CheckoutMetrics receives checkout outcomes.
type CheckoutMetrics interface {
	OrderPlaced(duration time.Duration)
	OrderFailed(reason string)
}
