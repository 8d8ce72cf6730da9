package handler

import (
	"net/http"
	"strconv"

	"order-service/internal/model"
	"order-service/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderHandler handles order-related HTTP requests.
type OrderHandler struct {
	checkout service.CheckoutService
	queries  service.OrderQueryService
	status   service.OrderStatusService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(
	checkout service.CheckoutService,
	queries service.OrderQueryService,
	status service.OrderStatusService,
	logger zerolog.Logger,
) *OrderHandler {
	return &OrderHandler{
		checkout: checkout,
		queries:  queries,
		status:   status,
		validate: newValidator(),
		logger:   logger.With().Str("handler", "order").Logger(),
	}
}

// Checkout handles POST /api/orders/checkout requests.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req model.CheckoutRequest
	if !decodeJSON(w, r, h.validate, &req, h.logger) {
		return
	}

	order, err := h.checkout.Checkout(r.Context(), req.UserEmail, req.ShippingAddress)
	if err != nil {
		writeServiceError(w, r, err, "failed to place order", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetByID handles GET /api/orders/{orderId} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.queries.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve order", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// History handles GET /api/orders/history/{userEmail} requests.
func (h *OrderHandler) History(w http.ResponseWriter, r *http.Request) {
	userEmail := chi.URLParam(r, "userEmail")
	if err := h.validate.Var(userEmail, "required,email"); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed, "userEmail must be a valid email address", h.logger)
		return
	}

	orders, err := h.queries.GetOrderHistory(r.Context(), userEmail)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve order history", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// List handles GET /api/orders?status=...&limit=... requests.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	status, ok := model.ParseOrderStatus(r.URL.Query().Get("status"))
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidStatus, "status must be one of PENDING, CONFIRMED, SHIPPED, DELIVERED, CANCELLED", h.logger)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed, "limit must be a positive integer", h.logger)
			return
		}
		limit = n
	}

	orders, err := h.queries.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list orders", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// UpdateStatus handles PATCH /api/orders/{orderId}/status requests.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if !decodeJSON(w, r, h.validate, &req, h.logger) {
		return
	}

	next, ok := model.ParseOrderStatus(req.Status)
	if !ok {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidStatus, "unknown order status "+strconv.Quote(req.Status), h.logger)
		return
	}

	order, err := h.status.UpdateStatus(r.Context(), orderID, next)
	if err != nil {
		writeServiceError(w, r, err, "failed to update order status", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// RecordPayment handles PATCH /api/orders/{orderId}/payment requests.
func (h *OrderHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req model.PaymentUpdateRequest
	if !decodeJSON(w, r, h.validate, &req, h.logger) {
		return
	}

	order, err := h.status.RecordPayment(r.Context(), orderID, req.TransactionID, req.PaymentStatus)
	if err != nil {
		writeServiceError(w, r, err, "failed to record payment", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidationFailed, "invalid order ID format", h.logger)
		return uuid.Nil, false
	}
	return orderID, true
}
