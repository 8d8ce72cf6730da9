// Package notify delivers order confirmations and receipts to the systems
// outside the checkout path. Everything here runs from the background
// dispatcher and never decides the outcome of a checkout.
package notify

import (
	"context"
	"fmt"
	"strings"

	"order-service/internal/model"

	"github.com/shopspring/decimal"
)

// Notifier sends an order confirmation to the customer.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation model.OrderConfirmation) error
}

// ReceiptArchiver stores a durable copy of a placed order.
type ReceiptArchiver interface {
	Archive(ctx context.Context, order *model.Order) error
}

// NewConfirmation builds the confirmation payload for a placed order.
func NewConfirmation(order *model.Order) model.OrderConfirmation {
	var items strings.Builder
	for _, item := range order.OrderItems {
		fmt.Fprintf(&items, "%s x%d - %s\n", item.ProductName, item.Quantity, formatMoney(item.Total()))
	}

	return model.OrderConfirmation{
		Email:      order.UserEmail,
		Name:       DisplayName(order.UserEmail),
		OrderID:    order.ID.String(),
		OrderTotal: formatMoney(order.TotalAmount),
		OrderItems: items.String(),
	}
}

// DisplayName returns the local part of an e-mail address.
func DisplayName(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
