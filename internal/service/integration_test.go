//go:build integration

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/database"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/store"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:14-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if _, err := database.Migrate(ctx, db, database.Up); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Logf("Failed to close database: %v", err)
		}
		if err := postgres.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return db, cleanup
}

func seedUser(t *testing.T, db *sql.DB, username string) *models.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), db, models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleCustomer,
	})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	return user
}

func seedProduct(t *testing.T, db *sql.DB, name string, price int64, stock int) *models.Product {
	t.Helper()
	product, err := store.CreateProduct(context.Background(), db, models.Product{
		Name:  name,
		Price: decimal.NewFromInt(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("Create product %s: %v", name, err)
	}
	return product
}

func stockOf(t *testing.T, db *sql.DB, id int64) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), db, id)
	if err != nil {
		t.Fatalf("Get product %d: %v", id, err)
	}
	return product.Stock
}

func TestIntegration_OrderLifecycle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	orders := NewOrderService(Deps{DB: db, MaxRetries: 5})

	user := seedUser(t, db, "lifecycle")
	a := seedProduct(t, db, "Product A", 100, 10)
	b := seedProduct(t, db, "Product B", 200, 10)

	order, err := orders.Create(ctx, user.ID, []models.LineItem{
		{ProductID: a.ID, Quantity: 5},
		{ProductID: b.ID, Quantity: 3},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !order.Total.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected total 1100, got %s", order.Total)
	}
	if !order.Total.Equal(order.ItemsTotal()) {
		t.Errorf("Total %s does not match items %s", order.Total, order.ItemsTotal())
	}
	if stockOf(t, db, a.ID) != 5 || stockOf(t, db, b.ID) != 7 {
		t.Errorf("Unexpected stock after create: A=%d B=%d", stockOf(t, db, a.ID), stockOf(t, db, b.ID))
	}

	_, err = orders.Create(ctx, user.ID, []models.LineItem{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: 999},
	})
	if !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("Expected insufficient stock, got %v", err)
	}
	if stockOf(t, db, a.ID) != 5 {
		t.Errorf("Failed create must not reserve stock, A=%d", stockOf(t, db, a.ID))
	}

	if _, err := orders.UpdateStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
		t.Fatalf("Cancel order: %v", err)
	}
	if stockOf(t, db, a.ID) != 5 {
		t.Errorf("Status change must not touch stock, A=%d", stockOf(t, db, a.ID))
	}

	if err := orders.Delete(ctx, order.ID); err != nil {
		t.Fatalf("Delete order: %v", err)
	}
	if stockOf(t, db, a.ID) != 10 || stockOf(t, db, b.ID) != 10 {
		t.Errorf("Delete must restore stock: A=%d B=%d", stockOf(t, db, a.ID), stockOf(t, db, b.ID))
	}

	if _, err := orders.Get(ctx, order.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected deleted order to be gone, got %v", err)
	}
}

func TestIntegration_OrderKeepsPriceSnapshot(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deps := Deps{DB: db, MaxRetries: 5}
	orders := NewOrderService(deps)
	catalog := NewCatalogService(deps)

	user := seedUser(t, db, "snapshot")
	a := seedProduct(t, db, "Product A", 100, 10)
	b := seedProduct(t, db, "Product B", 250, 10)

	placed, err := orders.Create(ctx, user.ID, []models.LineItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if _, err := catalog.Update(ctx, a.ID, ProductInput{Name: a.Name, Price: decimal.NewFromInt(999), Stock: 8}); err != nil {
		t.Fatalf("Update product A: %v", err)
	}
	if _, err := catalog.Update(ctx, b.ID, ProductInput{Name: b.Name, Price: decimal.RequireFromString("1.50"), Stock: 9}); err != nil {
		t.Fatalf("Update product B: %v", err)
	}

	got, err := orders.Get(ctx, placed.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}

	if !got.Total.Equal(decimal.NewFromInt(450)) {
		t.Errorf("Expected total 450 after price change, got %s", got.Total)
	}
	if !got.Total.Equal(got.ItemsTotal()) {
		t.Errorf("Total %s does not match items total %s", got.Total, got.ItemsTotal())
	}

	want := map[int64]decimal.Decimal{a.ID: decimal.NewFromInt(100), b.ID: decimal.NewFromInt(250)}
	if len(got.Items) != len(want) {
		t.Fatalf("Expected %d items, got %d", len(want), len(got.Items))
	}
	for _, item := range got.Items {
		if !item.PriceAtTime.Equal(want[item.ProductID]) {
			t.Errorf("Product %d: expected price_at_time %s, got %s", item.ProductID, want[item.ProductID], item.PriceAtTime)
		}
	}
}

func TestIntegration_CheckoutClearsCart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	carts := NewCartService(Deps{DB: db, MaxRetries: 5})

	user := seedUser(t, db, "shopper")
	a := seedProduct(t, db, "Product A", 4, 5)

	if _, err := carts.Add(ctx, user.ID, a.ID, 3); err != nil {
		t.Fatalf("Add to cart: %v", err)
	}
	if _, err := carts.Add(ctx, user.ID, a.ID, 3); !errors.Is(err, apperr.ErrInsufficientStock) {
		t.Fatalf("Expected cart limit rejection, got %v", err)
	}

	order, err := carts.Checkout(ctx, user.ID)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if !order.Total.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected total 12, got %s", order.Total)
	}
	if stockOf(t, db, a.ID) != 2 {
		t.Errorf("Expected stock 2, got %d", stockOf(t, db, a.ID))
	}

	items, err := carts.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List cart: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected empty cart, got %d items", len(items))
	}

	if _, err := carts.Checkout(ctx, user.ID); !errors.Is(err, apperr.ErrEmptyCart) {
		t.Errorf("Expected empty cart error, got %v", err)
	}
}

func TestIntegration_ConcurrentReservationsNeverOversell(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	orders := NewOrderService(Deps{DB: db, MaxRetries: 10})

	const stock = 10
	const buyers = 25

	product := seedProduct(t, db, "Scarce", 10, stock)
	users := make([]*models.User, buyers)
	for i := range users {
		users[i] = seedUser(t, db, fmt.Sprintf("buyer%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(user *models.User) {
			defer wg.Done()
			_, err := orders.Create(ctx, user.ID, []models.LineItem{{ProductID: product.ID, Quantity: 1}})
			switch {
			case err == nil:
				mu.Lock()
				succeeded++
				mu.Unlock()
			case errors.Is(err, apperr.ErrInsufficientStock), errors.Is(err, apperr.ErrConflict):
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(users[i])
	}
	wg.Wait()

	if succeeded > stock {
		t.Fatalf("Oversold: %d orders for %d units", succeeded, stock)
	}

	remaining := stockOf(t, db, product.ID)
	if remaining < 0 || remaining != stock-succeeded {
		t.Errorf("Expected stock %d, got %d", stock-succeeded, remaining)
	}
}
