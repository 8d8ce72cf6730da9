package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-service/internal/cache"
	"order-service/internal/correlation"
	"order-service/internal/lock"
	"order-service/internal/model"
	"order-service/internal/notify"
	"order-service/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Failure reasons reported to CheckoutMetrics.
const (
	ReasonLock               = "lock"
	ReasonCheckoutInProgress = "checkout_in_progress"
	ReasonCartUnavailable    = "cart_unavailable"
	ReasonInvalidCart        = "invalid_cart"
	ReasonCartEmpty          = "cart_empty"
	ReasonStockUnavailable   = "stock_unavailable"
	ReasonReservationTimeout = "reservation_timeout"
	ReasonInsufficientStock  = "insufficient_stock"
	ReasonPersistence        = "persistence"
	ReasonCanceled           = "canceled"
)

const (
	taskOrderConfirmation = "order-confirmation"
	taskOrderReceipt      = "order-receipt"

	lockReleaseTimeout = 2 * time.Second
)

// CheckoutDeps groups the collaborators of the checkout workflow.
type CheckoutDeps struct {
	Orders     repository.OrderRepository
	Cart       CartService
	Stock      StockService
	Locker     lock.Locker
	Cache      cache.OrderCache
	Dispatcher Dispatcher
	Notifier   notify.Notifier
	// Archiver is optional.
	Archiver notify.ReceiptArchiver
	Metrics  CheckoutMetrics
}

// CheckoutOptions tunes the checkout workflow.
type CheckoutOptions struct {
	ReservationTimeout time.Duration
	CartClearTimeout   time.Duration
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	orders     repository.OrderRepository
	cart       CartService
	reader     *CartReader
	stock      *StockReservation
	locker     lock.Locker
	cache      cache.OrderCache
	dispatcher Dispatcher
	notifier   notify.Notifier
	archiver   notify.ReceiptArchiver
	metrics    CheckoutMetrics
	clearAfter time.Duration
	tracer     trace.Tracer
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(deps CheckoutDeps, opts CheckoutOptions, logger zerolog.Logger) CheckoutService {
	if deps.Cache == nil {
		deps.Cache = cache.NopCache{}
	}
	return &checkoutService{
		orders:     deps.Orders,
		cart:       deps.Cart,
		reader:     NewCartReader(deps.Cart, logger),
		stock:      NewStockReservation(deps.Stock, opts.ReservationTimeout, logger),
		locker:     deps.Locker,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		archiver:   deps.Archiver,
		metrics:    deps.Metrics,
		clearAfter: opts.CartClearTimeout,
		tracer:     otel.Tracer("order-service/service"),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With().Str("service", "checkout").Logger(),
	}
}

// Checkout places an order for the user's current cart.
func (s *checkoutService) Checkout(ctx context.Context, userEmail, shippingAddress string) (*model.Order, error) {
	ctx, span := s.tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("user.email", userEmail)))
	defer span.End()

	start := time.Now()
	logger := s.logger.With().
		Str("user_email", userEmail).
		Str("correlation_id", correlation.FromContext(ctx)).
		Logger()

	held, err := s.locker.Acquire(ctx, lock.CheckoutKey(userEmail))
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, s.fail(span, logger, ReasonCheckoutInProgress, model.ErrCheckoutInProgress)
		}
		return nil, s.fail(span, logger, ReasonLock, fmt.Errorf("failed to acquire checkout lock: %w", err))
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			logger.Warn().Err(err).Msg("failed to release checkout lock")
		}
	}()

	lines, err := s.reader.Read(ctx, userEmail)
	if err != nil {
		reason := ReasonCartUnavailable
		if errors.Is(err, model.ErrInvalidCart) {
			reason = ReasonInvalidCart
		}
		return nil, s.fail(span, logger, reason, err)
	}
	if len(lines) == 0 {
		return nil, s.fail(span, logger, ReasonCartEmpty, model.ErrCartEmpty)
	}
	span.SetAttributes(attribute.Int("cart.lines", len(lines)))

	reservation, err := s.stock.Reserve(ctx, lines)
	if err != nil {
		reason := ReasonStockUnavailable
		switch {
		case errors.Is(err, model.ErrReservationTimeout):
			reason = ReasonReservationTimeout
		case errors.Is(err, errCheckoutCanceled):
			reason = ReasonCanceled
		}
		return nil, s.fail(span, logger, reason, err)
	}
	if !reservation.AllSuccessful() {
		return nil, s.fail(span, logger, ReasonInsufficientStock, insufficientStock(lines, reservation))
	}

	order := AssembleOrder(userEmail, shippingAddress, lines, s.now())
	if err := s.persist(ctx, order, logger); err != nil {
		s.stock.Restore(ctx, reservation.Requested)
		return nil, s.fail(span, logger, ReasonPersistence, err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	s.clearCart(ctx, userEmail, logger)
	s.dispatchFollowUps(ctx, order, logger)

	if err := s.cache.InvalidateHistory(ctx, userEmail); err != nil {
		logger.Warn().Err(err).Msg("failed to invalidate order history cache")
	}

	duration := time.Since(start)
	s.metrics.OrderPlaced(duration)
	logger.Info().
		Str("order_id", order.ID.String()).
		Int("item_count", len(order.OrderItems)).
		Str("total_amount", order.TotalAmount.StringFixed(2)).
		Dur("duration", duration).
		Msg("order placed")

	return order, nil
}

// persist writes the order and its items in one transaction, assigning ids.
func (s *checkoutService) persist(ctx context.Context, order *model.Order, logger zerolog.Logger) (err error) {
	order.ID = uuid.New()
	for i := range order.OrderItems {
		order.OrderItems[i].ID = uuid.New()
		order.OrderItems[i].OrderID = order.ID
	}

	tx, err := s.orders.BeginTx(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to begin transaction")
		return fmt.Errorf("failed to persist order: %w", err)
	}

	// Ensure transaction is rolled back on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Error().Err(rbErr).Msg("failed to rollback transaction")
			}
		}
	}()

	if err = s.orders.CreateOrder(ctx, tx, order); err != nil {
		logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to create order")
		return fmt.Errorf("failed to persist order: %w", err)
	}

	if err = s.orders.CreateOrderItems(ctx, tx, order.OrderItems); err != nil {
		logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Int("item_count", len(order.OrderItems)).
			Msg("failed to create order items")
		return fmt.Errorf("failed to persist order items: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to commit transaction")
		return fmt.Errorf("failed to persist order: %w", err)
	}
	return nil
}

// clearCart empties the cart once the order is committed. It does not follow
// the request's cancellation.
func (s *checkoutService) clearCart(ctx context.Context, userEmail string, logger zerolog.Logger) {
	clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.clearAfter)
	defer cancel()

	if err := s.cart.ClearCart(clearCtx, userEmail); err != nil {
		logger.Warn().Err(err).Msg("failed to clear cart after checkout")
	}
}

func (s *checkoutService) dispatchFollowUps(ctx context.Context, order *model.Order, logger zerolog.Logger) {
	confirmation := notify.NewConfirmation(order)
	err := s.dispatcher.Submit(ctx, taskOrderConfirmation, func(ctx context.Context) error {
		return s.notifier.SendOrderConfirmation(ctx, confirmation)
	})
	if err != nil {
		logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order confirmation not dispatched")
	}

	if s.archiver == nil {
		return
	}
	err = s.dispatcher.Submit(ctx, taskOrderReceipt, func(ctx context.Context) error {
		return s.archiver.Archive(ctx, order)
	})
	if err != nil {
		logger.Warn().Err(err).Str("order_id", order.ID.String()).Msg("order receipt not dispatched")
	}
}

// fail records a failed checkout exactly once and returns err.
func (s *checkoutService) fail(span trace.Span, logger zerolog.Logger, reason string, err error) error {
	s.metrics.OrderFailed(reason)
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	logger.Warn().Err(err).Str("reason", reason).Msg("checkout failed")
	return err
}

// insufficientStock names the products that could not be reserved, using the
// cart's names in batch order.
func insufficientStock(lines []model.CartLine, result *model.StockReservationResult) error {
	names := make(map[string]string, len(lines))
	for _, line := range lines {
		if _, ok := names[line.ProductID]; !ok {
			names[line.ProductID] = line.ProductName
		}
	}

	failed := result.Failed()
	labels := make([]string, 0, len(failed))
	for _, req := range failed {
		label := names[req.ProductID]
		if label == "" {
			label = req.ProductID
		}
		labels = append(labels, label)
	}
	return model.ErrInsufficientStock.WithMessage("Insufficient stock for products: " + strings.Join(labels, ", "))
}
