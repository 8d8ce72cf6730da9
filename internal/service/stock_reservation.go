package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-service/internal/model"

	"github.com/rs/zerolog"
)

var (
	errStockUnavailable = model.ErrServiceUnavailable.WithMessage("Product service is unavailable")
	errCheckoutCanceled = errors.New("checkout canceled by caller")
)

// restoreTimeout bounds a compensating restore call, which runs detached from
// the request that triggered it.
const restoreTimeout = 5 * time.Second

// StockReservation reserves stock for a cart in a single bulk call and puts
// stock back when a checkout cannot complete.
type StockReservation struct {
	stock   StockService
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStockReservation creates a reservation coordinator. timeout bounds the
// whole bulk reservation call.
func NewStockReservation(stock StockService, timeout time.Duration, logger zerolog.Logger) *StockReservation {
	return &StockReservation{
		stock:   stock,
		timeout: timeout,
		logger:  logger.With().Str("component", "stock-reservation").Logger(),
	}
}

// BuildBatch turns cart lines into one reservation request per product, in
// order of first appearance. Quantities of repeated products are summed.
func BuildBatch(lines []model.CartLine) []model.StockReservationRequest {
	index := make(map[string]int, len(lines))
	batch := make([]model.StockReservationRequest, 0, len(lines))

	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			batch[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(batch)
		batch = append(batch, model.StockReservationRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}
	return batch
}

// Reserve reserves stock for every product in lines. A returned result always
// covers every product of the batch. When only some products were reserved,
// those are restored before Reserve returns.
func (s *StockReservation) Reserve(ctx context.Context, lines []model.CartLine) (*model.StockReservationResult, error) {
	batch := BuildBatch(lines)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.stock.BulkReserveStock(callCtx, batch)
	if err != nil {
		return nil, s.classify(ctx, err, time.Since(start))
	}

	result := model.NewStockReservationResult(batch, resp.Results)
	s.logger.Info().
		Int("products", len(batch)).
		Int("reserved", result.SuccessCount()).
		Int("failed", result.FailureCount()).
		Dur("duration", time.Since(start)).
		Msg("stock reservation completed")

	if !result.AllSuccessful() {
		if succeeded := result.Succeeded(); len(succeeded) > 0 {
			s.Restore(ctx, succeeded)
		}
	}
	return result, nil
}

// Restore puts stock back for requests. Failures are logged and not returned;
// there is nothing more a checkout can do about them.
func (s *StockReservation) Restore(ctx context.Context, requests []model.StockReservationRequest) {
	if len(requests) == 0 {
		return
	}

	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()

	resp, err := s.stock.RestoreStock(restoreCtx, requests)
	if err != nil {
		s.logger.Error().Err(err).Int("products", len(requests)).Msg("failed to restore stock")
		return
	}

	result := model.NewStockReservationResult(requests, resp.Results)
	if !result.AllSuccessful() {
		ids := make([]string, 0, result.FailureCount())
		for _, req := range result.Failed() {
			ids = append(ids, req.ProductID)
		}
		s.logger.Error().Strs("product_ids", ids).Msg("stock restore incomplete")
		return
	}
	s.logger.Info().Int("products", len(requests)).Msg("stock restored")
}

// classify maps a failed reservation call to the error the caller reports.
func (s *StockReservation) classify(ctx context.Context, err error, elapsed time.Duration) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		s.logger.Warn().Err(err).Msg("stock reservation abandoned by caller")
		return fmt.Errorf("%w: %v", errCheckoutCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Error().Err(err).Dur("duration", elapsed).Msg("stock reservation timed out")
		return fmt.Errorf("%w: %v", model.ErrReservationTimeout, err)
	default:
		s.logger.Error().Err(err).Dur("duration", elapsed).Msg("stock reservation failed")
		return fmt.Errorf("%w: %v", errStockUnavailable, err)
	}
}
