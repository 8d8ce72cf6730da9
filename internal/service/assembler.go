package service

import (
	"time"

	"order-service/internal/model"

	"github.com/shopspring/decimal"
)

// AssembleOrder builds a PENDING order snapshotting lines, one item per line in
// cart order. IDs are left unset until the order is persisted.
func AssembleOrder(userEmail, shippingAddress string, lines []model.CartLine, now time.Time) *model.Order {
	items := make([]model.OrderItem, 0, len(lines))
	total := decimal.Zero

	for _, line := range lines {
		item := model.OrderItem{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			ProductPrice: line.ProductPrice,
			Quantity:     line.Quantity,
		}
		total = total.Add(item.Total())
		items = append(items, item)
	}

	return &model.Order{
		UserEmail:       userEmail,
		OrderItems:      items,
		TotalAmount:     total,
		Status:          model.OrderStatusPending,
		ShippingAddress: shippingAddress,
		OrderDate:       now,
		UpdatedAt:       now,
	}
}
