package service

import (
	"context"
	"errors"
	"fmt"

	"order-service/internal/model"

	"github.com/rs/zerolog"
)

// errCartUnavailable marks a cart read that failed in the collaborator.
var errCartUnavailable = model.ErrServiceUnavailable.WithMessage("Cart service is unavailable")

// CartReader fetches and checks the lines of a user's cart.
type CartReader struct {
	cart   CartService
	logger zerolog.Logger
}

// NewCartReader creates a cart reader over the cart collaborator.
func NewCartReader(cart CartService, logger zerolog.Logger) *CartReader {
	return &CartReader{
		cart:   cart,
		logger: logger.With().Str("component", "cart-reader").Logger(),
	}
}

// Read returns the user's cart lines in collaborator order. An empty cart is
// returned as an empty slice; deciding what that means is up to the caller.
func (r *CartReader) Read(ctx context.Context, userEmail string) ([]model.CartLine, error) {
	lines, err := r.cart.GetCart(ctx, userEmail)
	if err != nil {
		r.logger.Error().Err(err).Str("user_email", userEmail).Msg("failed to read cart")
		return nil, fmt.Errorf("%w: %v", errCartUnavailable, err)
	}

	for i, line := range lines {
		if err := validateLine(line); err != nil {
			r.logger.Warn().
				Err(err).
				Str("user_email", userEmail).
				Int("line", i).
				Str("product_id", line.ProductID).
				Msg("cart contains an invalid line")
			return nil, model.ErrInvalidCart.WithMessage(fmt.Sprintf("Cart line %d is invalid: %v", i+1, err))
		}
	}

	if lines == nil {
		lines = []model.CartLine{}
	}
	return lines, nil
}

// priceScale matches the NUMERIC(12,2) price and total columns.
const priceScale = 2

func validateLine(line model.CartLine) error {
	switch {
	case line.ProductID == "":
		return errors.New("product id is required")
	case line.Quantity <= 0:
		return fmt.Errorf("quantity %d must be positive", line.Quantity)
	case line.ProductPrice.IsNegative():
		return fmt.Errorf("price %s must not be negative", line.ProductPrice)
	case !line.ProductPrice.Equal(line.ProductPrice.Truncate(priceScale)):
		return fmt.Errorf("price %s has more than %d decimal places", line.ProductPrice, priceScale)
	}
	return nil
}
