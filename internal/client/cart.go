package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"order-service/internal/model"

	"github.com/rs/zerolog"
)

// CartClient reads and clears carts held by the cart service.
type CartClient struct {
	http *httpClient
}

// NewCartClient creates a cart service client.
func NewCartClient(opts Options, logger zerolog.Logger) *CartClient {
	return &CartClient{http: newHTTPClient("cart-service", opts, logger)}
}

// GetCart returns the user's cart lines in the order the cart service holds
// them. A cart the service does not know is empty.
func (c *CartClient) GetCart(ctx context.Context, userEmail string) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := c.http.do(ctx, http.MethodGet, "/api/cart/"+url.PathEscape(userEmail), nil, nil, &lines)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return []model.CartLine{}, nil
		}
		return nil, err
	}
	if lines == nil {
		lines = []model.CartLine{}
	}
	return lines, nil
}

// ClearCart removes every line from the user's cart.
func (c *CartClient) ClearCart(ctx context.Context, userEmail string) error {
	return c.http.do(ctx, http.MethodDelete, "/api/cart/"+url.PathEscape(userEmail), nil, nil, nil)
}
