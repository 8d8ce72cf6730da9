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
)

// orderStatusService implements OrderStatusService.
type orderStatusService struct {
	orders repository.OrderRepository
	cache  cache.OrderCache
	now    func() time.Time
	logger zerolog.Logger
}

// NewOrderStatusService creates a new order status service.
func NewOrderStatusService(orders repository.OrderRepository, c cache.OrderCache, logger zerolog.Logger) OrderStatusService {
	if c == nil {
		c = cache.NopCache{}
	}
	return &orderStatusService{
		orders: orders,
		cache:  c,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("service", "order-status").Logger(),
	}
}

// UpdateStatus moves the order to next. The update only applies if the order
// is still in the status it was read in.
func (s *orderStatusService) UpdateStatus(ctx context.Context, id uuid.UUID, next model.OrderStatus) (*model.Order, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	current := order.Status
	if !current.CanTransitionTo(next) {
		s.logger.Warn().
			Str("order_id", id.String()).
			Str("from", string(current)).
			Str("to", string(next)).
			Msg("rejected status transition")
		return nil, model.ErrInvalidStatusTransition.WithMessage(
			fmt.Sprintf("Cannot change order status from %s to %s", current, next))
	}

	now := s.now()
	updated, err := s.orders.UpdateStatus(ctx, id, current, next, now)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to update order status")
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	if !updated {
		return nil, model.ErrInvalidStatusTransition.WithMessage(
			fmt.Sprintf("Order status changed concurrently from %s", current))
	}

	s.invalidate(ctx, order)

	order.Status = next
	order.UpdatedAt = now
	s.logger.Info().
		Str("order_id", id.String()).
		Str("from", string(current)).
		Str("to", string(next)).
		Msg("order status updated")
	return order, nil
}

// RecordPayment stores the payment reference on the order.
func (s *orderStatusService) RecordPayment(ctx context.Context, id uuid.UUID, transactionID, paymentStatus string) (*model.Order, error) {
	now := s.now()
	updated, err := s.orders.UpdatePayment(ctx, id, transactionID, paymentStatus, now)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to record payment")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	if !updated {
		return nil, model.ErrOrderNotFound
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, order)

	s.logger.Info().
		Str("order_id", id.String()).
		Str("payment_status", paymentStatus).
		Msg("payment recorded")
	return order, nil
}

// load reads the order from the database, bypassing the cache.
func (s *orderStatusService) load(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, model.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderStatusService) invalidate(ctx context.Context, order *model.Order) {
	if err := s.cache.InvalidateOrder(ctx, order.ID); err != nil {
		s.logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("failed to invalidate order cache")
	}
	if err := s.cache.InvalidateHistory(ctx, order.UserEmail); err != nil {
		s.logger.Warn().Err(err).Str("user_email", order.UserEmail).Msg("failed to invalidate order history cache")
	}
}
