package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderTransitions lists the states reachable from each state.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// ParseOrderStatus converts a string into a known OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch status := OrderStatus(s); status {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return status, true
	}
	return "", false
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order represents a customer order created by checkout.
type Order struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	UserEmail            string          `json:"userEmail" db:"user_email"`
	OrderItems           []OrderItem     `json:"orderItems"`
	TotalAmount          decimal.Decimal `json:"totalAmount" db:"total_amount"`
	Status               OrderStatus     `json:"status" db:"status"`
	ShippingAddress      string          `json:"shippingAddress" db:"shipping_address"`
	OrderDate            time.Time       `json:"orderDate" db:"order_date"`
	UpdatedAt            time.Time       `json:"updatedAt" db:"updated_at"`
	PaymentTransactionID *string         `json:"paymentTransactionId,omitempty" db:"payment_transaction_id"`
	PaymentStatus        *string         `json:"paymentStatus,omitempty" db:"payment_status"`
	PaymentUpdatedAt     *time.Time      `json:"paymentUpdatedAt,omitempty" db:"payment_updated_at"`
}

// OrderItem is a point-in-time snapshot of one cart line.
type OrderItem struct {
	ID           uuid.UUID       `json:"-" db:"id"`
	OrderID      uuid.UUID       `json:"-" db:"order_id"`
	ProductID    string          `json:"productId" db:"product_id"`
	ProductName  string          `json:"productName" db:"product_name"`
	ProductPrice decimal.Decimal `json:"productPrice" db:"product_price"`
	Quantity     int             `json:"quantity" db:"quantity"`
}

// Total returns unit price multiplied by quantity.
func (i OrderItem) Total() decimal.Decimal {
	return i.ProductPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckoutRequest represents the request payload for checking out a cart.
type CheckoutRequest struct {
	UserEmail       string `json:"userEmail" validate:"required,email"`
	ShippingAddress string `json:"shippingAddress" validate:"required,min=10,max=200"`
}

// StatusUpdateRequest represents the request payload for an order status change.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// PaymentUpdateRequest carries the payment reference reported for an order.
type PaymentUpdateRequest struct {
	TransactionID string `json:"transactionId" validate:"required,max=100"`
	PaymentStatus string `json:"paymentStatus" validate:"required,max=50"`
}
