package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"order-service/internal/config"
	"order-service/internal/database"
	"order-service/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a migrated test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB starts a PostgreSQL container, connects through
// database.NewPool and applies the embedded migrations.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	dbConfig := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	logger := zerolog.Nop()
	pool, err := database.NewPool(ctx, dbConfig, logger)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool, logger); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
	}
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	if _, err := pool.Exec(context.Background(), "TRUNCATE order_items, orders"); err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}
}

// Collaborators fakes the cart, product and notification services over
// real HTTP so the production clients are exercised end to end.
type Collaborators struct {
	Cart         *httptest.Server
	Product      *httptest.Server
	Notification *httptest.Server

	mu            sync.Mutex
	carts         map[string][]model.CartLine
	stock         map[string]int
	confirmations []string
}

// NewCollaborators starts the fake services and stops them when t ends.
func NewCollaborators(t *testing.T) *Collaborators {
	t.Helper()

	c := &Collaborators{
		carts: map[string][]model.CartLine{},
		stock: map[string]int{},
	}

	cart := chi.NewRouter()
	cart.Get("/api/cart/{email}", c.getCart)
	cart.Delete("/api/cart/{email}", c.clearCart)
	c.Cart = httptest.NewServer(cart)

	product := chi.NewRouter()
	product.Put("/api/products/stock/bulk", c.reserve)
	product.Put("/api/products/stock/bulk/restore", c.restore)
	c.Product = httptest.NewServer(product)

	notification := chi.NewRouter()
	notification.Post("/api/notifications/order-confirmation", c.confirm)
	c.Notification = httptest.NewServer(notification)

	t.Cleanup(func() {
		c.Cart.Close()
		c.Product.Close()
		c.Notification.Close()
	})
	return c
}

// SetCart replaces the user's cart.
func (c *Collaborators) SetCart(email string, lines ...model.CartLine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[email] = lines
}

// SetStock sets the available quantity of a product.
func (c *Collaborators) SetStock(productID string, qty int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stock[productID] = qty
}

// Stock returns the available quantity of a product.
func (c *Collaborators) Stock(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stock[productID]
}

// CartSize returns the number of lines in the user's cart.
func (c *Collaborators) CartSize(email string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.carts[email])
}

// Confirmations returns the order ids confirmations were sent for.
func (c *Collaborators) Confirmations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.confirmations...)
}

func (c *Collaborators) getCart(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	lines, ok := c.carts[chi.URLParam(r, "email")]
	c.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, lines)
}

func (c *Collaborators) clearCart(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	delete(c.carts, chi.URLParam(r, "email"))
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *Collaborators) reserve(w http.ResponseWriter, r *http.Request) {
	c.adjustStock(w, r, func(available, qty int) (int, bool) {
		if available < qty {
			return available, false
		}
		return available - qty, true
	})
}

func (c *Collaborators) restore(w http.ResponseWriter, r *http.Request) {
	c.adjustStock(w, r, func(available, qty int) (int, bool) {
		return available + qty, true
	})
}

func (c *Collaborators) adjustStock(w http.ResponseWriter, r *http.Request, apply func(available, qty int) (int, bool)) {
	var requests []model.StockReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&requests); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	c.mu.Lock()
	resp := model.BulkStockResponse{Results: make(map[string]bool, len(requests))}
	for _, req := range requests {
		available, known := c.stock[req.ProductID]
		if !known {
			resp.Results[req.ProductID] = false
			resp.FailureCount++
			continue
		}
		next, ok := apply(available, req.Quantity)
		c.stock[req.ProductID] = next
		resp.Results[req.ProductID] = ok
		if ok {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
		}
	}
	c.mu.Unlock()

	writeJSON(w, resp)
}

func (c *Collaborators) confirm(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	c.confirmations = append(c.confirmations, r.URL.Query().Get("orderId"))
	c.mu.Unlock()
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
