package client

import (
	"context"
	"net/http"
	"net/url"

	"order-service/internal/model"

	"github.com/rs/zerolog"
)

// NotificationClient asks the notification service to send order
// confirmation e-mails.
type NotificationClient struct {
	http *httpClient
}

// NewNotificationClient creates a notification service client.
func NewNotificationClient(opts Options, logger zerolog.Logger) *NotificationClient {
	return &NotificationClient{http: newHTTPClient("notification-service", opts, logger)}
}

// SendOrderConfirmation posts the confirmation as query parameters.
func (c *NotificationClient) SendOrderConfirmation(ctx context.Context, confirmation model.OrderConfirmation) error {
	query := url.Values{}
	query.Set("email", confirmation.Email)
	query.Set("name", confirmation.Name)
	query.Set("orderId", confirmation.OrderID)
	query.Set("orderTotal", confirmation.OrderTotal)
	query.Set("orderItems", confirmation.OrderItems)

	return c.http.do(ctx, http.MethodPost, "/api/notifications/order-confirmation", query, nil, nil)
}
