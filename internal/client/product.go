package client

import (
	"context"
	"net/http"

	"order-service/internal/model"

	"github.com/rs/zerolog"
)

// ProductClient reserves and restores stock in the product catalogue.
type ProductClient struct {
	http *httpClient
}

// NewProductClient creates a product service client.
func NewProductClient(opts Options, logger zerolog.Logger) *ProductClient {
	return &ProductClient{http: newHTTPClient("product-service", opts, logger)}
}

// BulkReserveStock decrements stock for every request in one call.
func (c *ProductClient) BulkReserveStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	return c.bulk(ctx, "/api/products/stock/bulk", requests)
}

// RestoreStock returns previously reserved quantities to the catalogue.
func (c *ProductClient) RestoreStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	return c.bulk(ctx, "/api/products/stock/bulk/restore", requests)
}

func (c *ProductClient) bulk(ctx context.Context, path string, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	var resp model.BulkStockResponse
	if err := c.http.do(ctx, http.MethodPut, path, nil, requests, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = map[string]bool{}
	}
	return &resp, nil
}
