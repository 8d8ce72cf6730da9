package model

import "github.com/shopspring/decimal"

// CartLine is one product entry of a user's cart as returned by the cart service.
type CartLine struct {
	ProductID    string          `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
}

// StockReservationRequest asks the catalogue to decrement stock for one product.
type StockReservationRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// StockReservationResult holds the per-product outcome of a bulk reservation.
// Requested preserves the order of the batch that produced it.
type StockReservationResult struct {
	Requested []StockReservationRequest
	Results   map[string]bool
}

// NewStockReservationResult builds a result covering every requested product.
// Products missing from reported are recorded as failed.
func NewStockReservationResult(requested []StockReservationRequest, reported map[string]bool) *StockReservationResult {
	results := make(map[string]bool, len(requested))
	for _, req := range requested {
		results[req.ProductID] = reported[req.ProductID]
	}
	return &StockReservationResult{
		Requested: requested,
		Results:   results,
	}
}

// SuccessCount returns the number of products reserved.
func (r *StockReservationResult) SuccessCount() int {
	n := 0
	for _, ok := range r.Results {
		if ok {
			n++
		}
	}
	return n
}

// FailureCount returns the number of products that could not be reserved.
func (r *StockReservationResult) FailureCount() int {
	return len(r.Results) - r.SuccessCount()
}

// AllSuccessful reports whether every product in the batch was reserved.
func (r *StockReservationResult) AllSuccessful() bool {
	return r.FailureCount() == 0
}

// Succeeded returns the requests whose product was reserved, in batch order.
func (r *StockReservationResult) Succeeded() []StockReservationRequest {
	return r.filter(true)
}

// Failed returns the requests whose product was not reserved, in batch order.
func (r *StockReservationResult) Failed() []StockReservationRequest {
	return r.filter(false)
}

func (r *StockReservationResult) filter(want bool) []StockReservationRequest {
	out := make([]StockReservationRequest, 0, len(r.Requested))
	for _, req := range r.Requested {
		if r.Results[req.ProductID] == want {
			out = append(out, req)
		}
	}
	return out
}

// BulkStockResponse is the catalogue's reply to a bulk stock operation.
type BulkStockResponse struct {
	Results      map[string]bool `json:"results"`
	SuccessCount int             `json:"successCount"`
	FailureCount int             `json:"failureCount"`
}

// OrderConfirmation is the payload handed to the notification collaborator.
type OrderConfirmation struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	OrderID    string `json:"orderId"`
	OrderTotal string `json:"orderTotal"`
	OrderItems string `json:"orderItems"`
}
