package service

import (
	"context"
	"fmt"
	"time"

	"order-service/internal/cache"
	"order-service/internal/model"
	"order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	// sharedLoadTimeout bounds a coalesced cache-miss load, which no single
	// caller's context owns.
	sharedLoadTimeout = 5 * time.Second
)

// orderQueryService implements OrderQueryService.
type orderQueryService struct {
	orders repository.OrderRepository
	cache  cache.OrderCache
	group  singleflight.Group
	logger zerolog.Logger
}

// NewOrderQueryService creates a new order query service. A nil cache reads
// straight from the repository.
func NewOrderQueryService(orders repository.OrderRepository, c cache.OrderCache, logger zerolog.Logger) OrderQueryService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &orderQueryService{
		orders: orders,
		cache:  c,
		logger: logger.With().Str("service", "order-query").Logger(),
	}
}

// GetOrder retrieves an order by its ID with all items.
func (s *orderQueryService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	if order, found, err := s.cache.GetOrder(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("order cache read failed")
	} else if found {
		return order, nil
	}

	v, err := s.shared(ctx, fmt.Sprintf(cache.KeyOrder, id), func(ctx context.Context) (any, error) {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
			return nil, fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return nil, model.ErrOrderNotFound
		}

		if err := s.cache.SetOrder(ctx, order); err != nil {
			s.logger.Warn().Err(err).Str("order_id", id.String()).Msg("order cache write failed")
		}
		return order, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Order), nil
}

// GetOrderHistory retrieves the user's orders, newest first.
func (s *orderQueryService) GetOrderHistory(ctx context.Context, userEmail string) ([]model.Order, error) {
	if orders, found, err := s.cache.GetHistory(ctx, userEmail); err != nil {
		s.logger.Warn().Err(err).Str("user_email", userEmail).Msg("order history cache read failed")
	} else if found {
		return orders, nil
	}

	v, err := s.shared(ctx, fmt.Sprintf(cache.KeyUserOrders, userEmail), func(ctx context.Context) (any, error) {
		orders, err := s.orders.ListByUser(ctx, userEmail)
		if err != nil {
			s.logger.Error().Err(err).Str("user_email", userEmail).Msg("failed to list orders")
			return nil, fmt.Errorf("failed to get order history: %w", err)
		}
		if orders == nil {
			orders = []model.Order{}
		}

		if err := s.cache.SetHistory(ctx, userEmail, orders); err != nil {
			s.logger.Warn().Err(err).Str("user_email", userEmail).Msg("order history cache write failed")
		}
		return orders, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Order), nil
}

// shared runs load once per key across concurrent callers. The load is
// detached from every caller; each caller returns when its own ctx is done.
func (s *orderQueryService) shared(ctx context.Context, key string, load func(ctx context.Context) (any, error)) (any, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return load(loadCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to read orders: %w", ctx.Err())
	}
}

// ListByStatus retrieves orders in the given status. limit is clamped to
// [1, MaxListLimit]; zero or negative means DefaultListLimit.
func (s *orderQueryService) ListByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	orders, err := s.orders.ListByStatus(ctx, status, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("status", string(status)).Msg("failed to list orders by status")
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}
