package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-service/internal/correlation"
	"order-service/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCheckoutService is a mock implementation of CheckoutService.
type MockCheckoutService struct {
	mock.Mock
}

func (m *MockCheckoutService) Checkout(ctx context.Context, userEmail, shippingAddress string) (*model.Order, error) {
	args := m.Called(ctx, userEmail, shippingAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockOrderQueryService is a mock implementation of OrderQueryService.
type MockOrderQueryService struct {
	mock.Mock
}

func (m *MockOrderQueryService) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderQueryService) GetOrderHistory(ctx context.Context, userEmail string) ([]model.Order, error) {
	args := m.Called(ctx, userEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderQueryService) ListByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

// MockOrderStatusService is a mock implementation of OrderStatusService.
type MockOrderStatusService struct {
	mock.Mock
}

func (m *MockOrderStatusService) UpdateStatus(ctx context.Context, id uuid.UUID, next model.OrderStatus) (*model.Order, error) {
	args := m.Called(ctx, id, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderStatusService) RecordPayment(ctx context.Context, id uuid.UUID, transactionID, paymentStatus string) (*model.Order, error) {
	args := m.Called(ctx, id, transactionID, paymentStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

type handlerFixture struct {
	checkout *MockCheckoutService
	queries  *MockOrderQueryService
	status   *MockOrderStatusService
	router   http.Handler
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		checkout: new(MockCheckoutService),
		queries:  new(MockOrderQueryService),
		status:   new(MockOrderStatusService),
	}
	h := NewOrderHandler(f.checkout, f.queries, f.status, zerolog.Nop())

	r := chi.NewRouter()
	r.Post("/api/orders/checkout", h.Checkout)
	r.Get("/api/orders", h.List)
	r.Get("/api/orders/history/{userEmail}", h.History)
	r.Get("/api/orders/{orderId}", h.GetByID)
	r.Patch("/api/orders/{orderId}/status", h.UpdateStatus)
	r.Patch("/api/orders/{orderId}/payment", h.RecordPayment)
	f.router = r
	return f
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf []byte
	switch b := body.(type) {
	case nil:
	case string:
		buf = []byte(b)
	default:
		var err error
		buf, err = json.Marshal(b)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func placedOrder() *model.Order {
	id := uuid.New()
	return &model.Order{
		ID:        id,
		UserEmail: "alice@example.com",
		OrderItems: []model.OrderItem{
			{ProductID: "prod1", ProductName: "Laptop", ProductPrice: decimal.RequireFromString("50.00"), Quantity: 2},
			{ProductID: "prod2", ProductName: "Mouse", ProductPrice: decimal.RequireFromString("30.00"), Quantity: 1},
		},
		TotalAmount:     decimal.RequireFromString("130.00"),
		Status:          model.OrderStatusPending,
		ShippingAddress: "221B Baker Street, London",
		OrderDate:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
}

func TestOrderHandler_Checkout(t *testing.T) {
	validBody := model.CheckoutRequest{UserEmail: "alice@example.com", ShippingAddress: "221B Baker Street, London"}

	tests := []struct {
		name           string
		body           any
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Success",
			body:           validBody,
			mockReturn:     placedOrder(),
			expectedStatus: http.StatusCreated,
			expectService:  true,
		},
		{
			name:           "Cart empty",
			body:           validBody,
			mockError:      model.ErrCartEmpty,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeCartEmpty,
			expectService:  true,
		},
		{
			name:           "Insufficient stock",
			body:           validBody,
			mockError:      model.ErrInsufficientStock.WithMessage("Insufficient stock for products: Mouse"),
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInsufficientStock,
			expectService:  true,
		},
		{
			name:           "Checkout in progress",
			body:           validBody,
			mockError:      model.ErrCheckoutInProgress,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeCheckoutInProgress,
			expectService:  true,
		},
		{
			name:           "Collaborator unavailable",
			body:           validBody,
			mockError:      fmt.Errorf("%w: dial tcp: refused", model.ErrServiceUnavailable),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   model.ErrCodeServiceUnavailable,
			expectService:  true,
		},
		{
			name:           "Reservation timeout",
			body:           validBody,
			mockError:      model.ErrReservationTimeout,
			expectedStatus: http.StatusGatewayTimeout,
			expectedCode:   model.ErrCodeReservationTimeout,
			expectService:  true,
		},
		{
			name:           "Invalid cart",
			body:           validBody,
			mockError:      model.ErrInvalidCart,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidCart,
			expectService:  true,
		},
		{
			name:           "Service internal error",
			body:           validBody,
			mockError:      errors.New("failed to persist order: connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
			expectService:  true,
		},
		{
			name:           "Invalid JSON",
			body:           "invalid json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Invalid email",
			body:           model.CheckoutRequest{UserEmail: "not-an-email", ShippingAddress: "221B Baker Street, London"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
		{
			name:           "Address too short",
			body:           model.CheckoutRequest{UserEmail: "alice@example.com", ShippingAddress: "short"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
		{
			name:           "Missing fields",
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			if tt.expectService {
				f.checkout.On("Checkout", mock.Anything, validBody.UserEmail, validBody.ShippingAddress).
					Return(tt.mockReturn, tt.mockError).Once()
			}

			w := f.do(t, http.MethodPost, "/api/orders/checkout", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
			if tt.expectService {
				f.checkout.AssertExpectations(t)
			} else {
				f.checkout.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderHandler_Checkout_ResponseBody(t *testing.T) {
	f := newHandlerFixture()
	order := placedOrder()
	f.checkout.On("Checkout", mock.Anything, mock.Anything, mock.Anything).Return(order, nil).Once()

	w := f.do(t, http.MethodPost, "/api/orders/checkout",
		model.CheckoutRequest{UserEmail: "alice@example.com", ShippingAddress: "221B Baker Street, London"})
	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, order.ID.String(), body["id"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, "130", body["totalAmount"])
	items, ok := body["orderItems"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestOrderHandler_Checkout_ErrorCarriesCorrelationID(t *testing.T) {
	f := newHandlerFixture()
	f.checkout.On("Checkout", mock.Anything, mock.Anything, mock.Anything).Return(nil, model.ErrCartEmpty).Once()

	body, err := json.Marshal(model.CheckoutRequest{UserEmail: "alice@example.com", ShippingAddress: "221B Baker Street, London"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/orders/checkout", bytes.NewReader(body))
	req = req.WithContext(correlation.WithID(req.Context(), "corr-42"))
	w := httptest.NewRecorder()

	f.router.ServeHTTP(w, req)

	resp := decodeError(t, w)
	assert.Equal(t, "corr-42", resp.CorrelationID)
	assert.Equal(t, "Cart is empty", resp.Message)
}

func TestOrderHandler_Checkout_InternalErrorIsNotLeaked(t *testing.T) {
	f := newHandlerFixture()
	f.checkout.On("Checkout", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("password authentication failed for user orders")).Once()

	w := f.do(t, http.MethodPost, "/api/orders/checkout",
		model.CheckoutRequest{UserEmail: "alice@example.com", ShippingAddress: "221B Baker Street, London"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestOrderHandler_GetByID(t *testing.T) {
	order := placedOrder()

	tests := []struct {
		name           string
		path           string
		mockReturn     *model.Order
		mockError      error
		expectedStatus int
		expectService  bool
	}{
		{
			name:           "Success",
			path:           "/api/orders/" + order.ID.String(),
			mockReturn:     order,
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Order not found",
			path:           "/api/orders/" + order.ID.String(),
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectService:  true,
		},
		{
			name:           "Service error",
			path:           "/api/orders/" + order.ID.String(),
			mockError:      errors.New("connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectService:  true,
		},
		{
			name:           "Invalid UUID format",
			path:           "/api/orders/invalid-uuid",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			if tt.expectService {
				f.queries.On("GetOrder", mock.Anything, order.ID).Return(tt.mockReturn, tt.mockError).Once()
			}

			w := f.do(t, http.MethodGet, tt.path, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectService {
				f.queries.AssertExpectations(t)
			} else {
				f.queries.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestOrderHandler_History(t *testing.T) {
	t.Run("Returns orders", func(t *testing.T) {
		f := newHandlerFixture()
		f.queries.On("GetOrderHistory", mock.Anything, "alice@example.com").
			Return([]model.Order{*placedOrder(), *placedOrder()}, nil).Once()

		w := f.do(t, http.MethodGet, "/api/orders/history/alice@example.com", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var orders []model.Order
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
		assert.Len(t, orders, 2)
	})

	t.Run("Empty history is an empty JSON array", func(t *testing.T) {
		f := newHandlerFixture()
		f.queries.On("GetOrderHistory", mock.Anything, "nobody@example.com").Return([]model.Order{}, nil).Once()

		w := f.do(t, http.MethodGet, "/api/orders/history/nobody@example.com", nil)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("Invalid email", func(t *testing.T) {
		f := newHandlerFixture()

		w := f.do(t, http.MethodGet, "/api/orders/history/not-an-email", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		f.queries.AssertNotCalled(t, "GetOrderHistory", mock.Anything, mock.Anything)
	})
}

func TestOrderHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		wantStatus     model.OrderStatus
		wantLimit      int
		expectedStatus int
		expectService  bool
	}{
		{name: "Status with default limit", query: "?status=PENDING", wantStatus: model.OrderStatusPending, expectedStatus: http.StatusOK, expectService: true},
		{name: "Status with limit", query: "?status=SHIPPED&limit=5", wantStatus: model.OrderStatusShipped, wantLimit: 5, expectedStatus: http.StatusOK, expectService: true},
		{name: "Missing status", query: "", expectedStatus: http.StatusBadRequest},
		{name: "Unknown status", query: "?status=LOST", expectedStatus: http.StatusBadRequest},
		{name: "Bad limit", query: "?status=PENDING&limit=abc", expectedStatus: http.StatusBadRequest},
		{name: "Zero limit", query: "?status=PENDING&limit=0", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			if tt.expectService {
				f.queries.On("ListByStatus", mock.Anything, tt.wantStatus, tt.wantLimit).Return([]model.Order{}, nil).Once()
			}

			w := f.do(t, http.MethodGet, "/api/orders"+tt.query, nil)

			assert.Equal(t, tt.expectedStatus, w.Code)
			f.queries.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	order := placedOrder()
	path := "/api/orders/" + order.ID.String() + "/status"

	tests := []struct {
		name           string
		path           string
		body           any
		mockError      error
		expectedStatus int
		expectedCode   string
		expectService  bool
	}{
		{
			name:           "Success",
			path:           path,
			body:           model.StatusUpdateRequest{Status: "CONFIRMED"},
			expectedStatus: http.StatusOK,
			expectService:  true,
		},
		{
			name:           "Transition not allowed",
			path:           path,
			body:           model.StatusUpdateRequest{Status: "CONFIRMED"},
			mockError:      model.ErrInvalidStatusTransition,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeInvalidStatusTransition,
			expectService:  true,
		},
		{
			name:           "Order not found",
			path:           path,
			body:           model.StatusUpdateRequest{Status: "CONFIRMED"},
			mockError:      model.ErrOrderNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeOrderNotFound,
			expectService:  true,
		},
		{
			name:           "Unknown status",
			path:           path,
			body:           model.StatusUpdateRequest{Status: "LOST"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidStatus,
		},
		{
			name:           "Missing status",
			path:           path,
			body:           map[string]string{},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
		{
			name:           "Invalid UUID format",
			path:           "/api/orders/nope/status",
			body:           model.StatusUpdateRequest{Status: "CONFIRMED"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHandlerFixture()
			if tt.expectService {
				var ret *model.Order
				if tt.mockError == nil {
					confirmed := *order
					confirmed.Status = model.OrderStatusConfirmed
					ret = &confirmed
				}
				f.status.On("UpdateStatus", mock.Anything, order.ID, model.OrderStatusConfirmed).Return(ret, tt.mockError).Once()
			}

			w := f.do(t, http.MethodPatch, tt.path, tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
			f.status.AssertExpectations(t)
		})
	}
}

func TestOrderHandler_RecordPayment(t *testing.T) {
	order := placedOrder()
	path := "/api/orders/" + order.ID.String() + "/payment"

	t.Run("Success", func(t *testing.T) {
		f := newHandlerFixture()
		f.status.On("RecordPayment", mock.Anything, order.ID, "txn_1", "COMPLETED").Return(order, nil).Once()

		w := f.do(t, http.MethodPatch, path, model.PaymentUpdateRequest{TransactionID: "txn_1", PaymentStatus: "COMPLETED"})

		assert.Equal(t, http.StatusOK, w.Code)
		f.status.AssertExpectations(t)
	})

	t.Run("Missing transaction id", func(t *testing.T) {
		f := newHandlerFixture()

		w := f.do(t, http.MethodPatch, path, model.PaymentUpdateRequest{PaymentStatus: "COMPLETED"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeError(t, w).Message, "transactionId is required")
	})

	t.Run("Unknown order", func(t *testing.T) {
		f := newHandlerFixture()
		f.status.On("RecordPayment", mock.Anything, order.ID, "txn_1", "FAILED").Return(nil, model.ErrOrderNotFound).Once()

		w := f.do(t, http.MethodPatch, path, model.PaymentUpdateRequest{TransactionID: "txn_1", PaymentStatus: "FAILED"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		checks         map[string]Check
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "No checks",
			checks:         nil,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"healthy"}`,
		},
		{
			name: "All up",
			checks: map[string]Check{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"healthy","checks":{"database":"up","redis":"up"}}`,
		},
		{
			name: "One down",
			checks: map[string]Check{
				"database": func(context.Context) error { return errors.New("unreachable") },
				"redis":    func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   `{"status":"unhealthy","checks":{"database":"down","redis":"up"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, time.Second, zerolog.Nop())

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}
