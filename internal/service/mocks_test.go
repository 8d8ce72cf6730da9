package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"order-service/internal/dispatch"
	"order-service/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/mock"
)

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	// Return a MockTx interface value, not a pointer
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	args := m.Called(ctx, tx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	args := m.Called(ctx, tx, items)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUser(ctx context.Context, userEmail string) ([]model.Order, error) {
	args := m.Called(ctx, userEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByStatus(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus, at time.Time) (bool, error) {
	args := m.Called(ctx, id, from, to, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) UpdatePayment(ctx context.Context, id uuid.UUID, transactionID, paymentStatus string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, transactionID, paymentStatus, at)
	return args.Bool(0), args.Error(1)
}

// MockTx is a minimal mock implementation of pgx.Tx for testing.
type MockTx struct {
	mock.Mock
	committed  bool
	rolledBack bool
}

func (m *MockTx) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	m.committed = true
	return args.Error(0)
}

func (m *MockTx) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	m.rolledBack = true
	return args.Error(0)
}

// Stub methods to satisfy pgx.Tx interface - these are not used in our tests
func (m *MockTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (m *MockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (m *MockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (m *MockTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (m *MockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (m *MockTx) Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error) {
	return
}
func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (m *MockTx) Conn() *pgx.Conn                                               { return nil }

// MockCartService is a mock implementation of CartService.
type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) GetCart(ctx context.Context, userEmail string) ([]model.CartLine, error) {
	args := m.Called(ctx, userEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.CartLine), args.Error(1)
}

func (m *MockCartService) ClearCart(ctx context.Context, userEmail string) error {
	args := m.Called(ctx, userEmail)
	return args.Error(0)
}

// MockStockService is a mock implementation of StockService.
type MockStockService struct {
	mock.Mock
}

func (m *MockStockService) BulkReserveStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BulkStockResponse), args.Error(1)
}

func (m *MockStockService) RestoreStock(ctx context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	args := m.Called(ctx, requests)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BulkStockResponse), args.Error(1)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendOrderConfirmation(ctx context.Context, confirmation model.OrderConfirmation) error {
	args := m.Called(ctx, confirmation)
	return args.Error(0)
}

// MockArchiver is a mock implementation of notify.ReceiptArchiver.
type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, order *model.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

// MockMetrics is a mock implementation of CheckoutMetrics.
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) OrderPlaced(duration time.Duration) {
	m.Called(duration)
}

func (m *MockMetrics) OrderFailed(reason string) {
	m.Called(reason)
}

// inlineDispatcher runs submitted tasks immediately and records their names.
type inlineDispatcher struct {
	mu     sync.Mutex
	names  []string
	errs   []error
	reject error
}

func (d *inlineDispatcher) Submit(ctx context.Context, name string, task dispatch.Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.names = append(d.names, name)
	if d.reject != nil {
		return d.reject
	}
	d.errs = append(d.errs, task(context.WithoutCancel(ctx)))
	return nil
}

func (d *inlineDispatcher) submitted() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.names...)
}

// memoryCart is a stateful cart collaborator keyed by user.
type memoryCart struct {
	mu     sync.Mutex
	carts  map[string][]model.CartLine
	clears int
}

func newMemoryCart() *memoryCart {
	return &memoryCart{carts: map[string][]model.CartLine{}}
}

func (c *memoryCart) put(userEmail string, lines ...model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userEmail] = lines
}

func (c *memoryCart) GetCart(_ context.Context, userEmail string) ([]model.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.CartLine(nil), c.carts[userEmail]...), nil
}

func (c *memoryCart) ClearCart(_ context.Context, userEmail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	delete(c.carts, userEmail)
	return nil
}

// memoryStock answers reservations from a stock table. Like a catalogue
// that reserves per product, it decrements every product that has enough
// stock even when others in the batch fail.
type memoryStock struct {
	mu       sync.Mutex
	stock    map[string]int
	restored []model.StockReservationRequest
}

func (s *memoryStock) BulkReserveStock(_ context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[string]bool, len(requests))
	for _, req := range requests {
		ok := s.stock[req.ProductID] >= req.Quantity
		if ok {
			s.stock[req.ProductID] -= req.Quantity
		}
		results[req.ProductID] = ok
	}
	return &model.BulkStockResponse{Results: results}, nil
}

func (s *memoryStock) RestoreStock(_ context.Context, requests []model.StockReservationRequest) (*model.BulkStockResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make(map[string]bool, len(requests))
	for _, req := range requests {
		s.stock[req.ProductID] += req.Quantity
		s.restored = append(s.restored, req)
		results[req.ProductID] = true
	}
	return &model.BulkStockResponse{Results: results}, nil
}

// memoryOrderRepository keeps orders in a map. Transactions are not modelled:
// rows written inside a transaction are visible immediately.
type memoryOrderRepository struct {
	mu     sync.Mutex
	orders map[uuid.UUID]model.Order
}

func newMemoryOrderRepository() *memoryOrderRepository {
	return &memoryOrderRepository{orders: map[uuid.UUID]model.Order{}}
}

func (r *memoryOrderRepository) BeginTx(context.Context) (pgx.Tx, error) {
	tx := new(MockTx)
	tx.On("Commit", mock.Anything).Return(nil)
	tx.On("Rollback", mock.Anything).Return(nil)
	return tx, nil
}

func (r *memoryOrderRepository) CreateOrder(_ context.Context, _ pgx.Tx, order *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *order
	stored.OrderItems = nil
	r.orders[order.ID] = stored
	return nil
}

func (r *memoryOrderRepository) CreateOrderItems(_ context.Context, _ pgx.Tx, items []model.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		order := r.orders[item.OrderID]
		order.OrderItems = append(order.OrderItems, item)
		r.orders[item.OrderID] = order
	}
	return nil
}

func (r *memoryOrderRepository) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return &order, nil
}

func (r *memoryOrderRepository) ListByUser(_ context.Context, userEmail string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Order{}
	for _, order := range r.orders {
		if order.UserEmail == userEmail {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	return out, nil
}

func (r *memoryOrderRepository) ListByStatus(_ context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Order{}
	for _, order := range r.orders {
		if order.Status == status && len(out) < limit {
			out = append(out, order)
		}
	}
	return out, nil
}

func (r *memoryOrderRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.OrderStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = at
	r.orders[id] = order
	return true, nil
}

func (r *memoryOrderRepository) UpdatePayment(_ context.Context, id uuid.UUID, transactionID, paymentStatus string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return false, nil
	}
	order.PaymentTransactionID = &transactionID
	order.PaymentStatus = &paymentStatus
	order.PaymentUpdatedAt = &at
	r.orders[id] = order
	return true, nil
}

// memoryCache is an in-process OrderCache that counts lookups.
type memoryCache struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]model.Order
	history map[string][]model.Order
	err     error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{orders: map[uuid.UUID]model.Order{}, history: map[string][]model.Order{}}
}

func (c *memoryCache) GetOrder(_ context.Context, id uuid.UUID) (*model.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	order, ok := c.orders[id]
	if !ok {
		return nil, false, nil
	}
	return &order, true, nil
}

func (c *memoryCache) SetOrder(_ context.Context, order *model.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.orders[order.ID] = *order
	return nil
}

func (c *memoryCache) GetHistory(_ context.Context, userEmail string) ([]model.Order, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	orders, ok := c.history[userEmail]
	return orders, ok, nil
}

func (c *memoryCache) SetHistory(_ context.Context, userEmail string, orders []model.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.history[userEmail] = orders
	return nil
}

func (c *memoryCache) InvalidateOrder(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.orders, id)
	return c.err
}

func (c *memoryCache) InvalidateHistory(_ context.Context, userEmail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.history, userEmail)
	return c.err
}
