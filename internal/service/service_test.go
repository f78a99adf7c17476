package service

import (
	"context"
	"database/sql"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/safar/order-engine/internal/cache"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/notify"
	"github.com/stretchr/testify/require"
)

var (
	userColumns    = []string{"id", "username", "email", "password_hash", "role", "created_at"}
	productColumns = []string{"id", "name", "price", "stock", "created_at", "updated_at"}
	orderColumns   = []string{"id", "user_id", "total", "status", "created_at", "updated_at"}
	itemColumns    = []string{"id", "order_id", "product_id", "quantity", "price_at_time"}
	cartColumns    = []string{"id", "user_id", "product_id", "quantity"}
)

var (
	qGetUser        = regexp.QuoteMeta(`FROM users WHERE id = $1`)
	qLockProduct    = regexp.QuoteMeta(`FROM products WHERE id = $1 FOR UPDATE`)
	qGetProduct     = regexp.QuoteMeta(`SELECT id, name, price, stock, created_at, updated_at FROM products WHERE id = $1`)
	qInsertOrder    = regexp.QuoteMeta(`INSERT INTO orders`)
	qInsertItem     = regexp.QuoteMeta(`INSERT INTO order_items`)
	qReserve        = regexp.QuoteMeta(`SET stock = stock - $1`)
	qRestore        = regexp.QuoteMeta(`SET stock = stock + $1`)
	qLockOrder      = regexp.QuoteMeta(`FROM orders WHERE id = $1 FOR UPDATE`)
	qSetStatus      = regexp.QuoteMeta(`UPDATE orders SET status = $1`)
	qOrderItems     = regexp.QuoteMeta(`FROM order_items WHERE order_id = ANY($1)`)
	qDeleteOrder    = regexp.QuoteMeta(`DELETE FROM orders WHERE id = $1`)
	qLockCart       = regexp.QuoteMeta(`FROM cart_items WHERE user_id = $1 ORDER BY product_id FOR UPDATE`)
	qLockCartItem   = regexp.QuoteMeta(`FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`)
	qSetCartQty     = regexp.QuoteMeta(`INSERT INTO cart_items`)
	qClearCart      = regexp.QuoteMeta(`DELETE FROM cart_items WHERE user_id = $1`)
	qUserTaken      = regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1 OR email = $2)`)
	qInsertUser     = regexp.QuoteMeta(`INSERT INTO users`)
	qUserByUsername = regexp.QuoteMeta(`FROM users WHERE username = $1`)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Dispatch(event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Event(nil), n.events...)
}

type recordingCache struct {
	invalidated []int64
}

func (c *recordingCache) GetProduct(ctx context.Context, _ int64, load cache.LoadFunc) (*models.Product, error) {
	return load(ctx)
}

func (c *recordingCache) Invalidate(_ context.Context, ids ...int64) {
	c.invalidated = append(c.invalidated, ids...)
}

type fixture struct {
	db       *sql.DB
	mock     sqlmock.Sqlmock
	notifier *recordingNotifier
	cache    *recordingCache
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{db: db, mock: mock, notifier: &recordingNotifier{}, cache: &recordingCache{}}
	f.deps = Deps{DB: db, Cache: f.cache, Notifier: f.notifier, MaxRetries: 0}
	return f
}

func (f *fixture) expectUser(id int64) {
	f.mock.ExpectQuery(qGetUser).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(id, "alice", "alice@example.com", "hash", "customer", time.Now()))
}

func (f *fixture) expectLockProduct(id int64, name, price string, stock int) {
	now := time.Now()
	f.mock.ExpectQuery(qLockProduct).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(productColumns).AddRow(id, name, price, stock, now, now))
}

func (f *fixture) expectInsertOrder(orderID, userID int64, total string) {
	now := time.Now()
	f.mock.ExpectQuery(qInsertOrder).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(orderID, userID, total, "pending", now, now))
}

func (f *fixture) expectInsertItem(itemID, orderID, productID int64, qty int, price string) {
	f.mock.ExpectQuery(qInsertItem).
		WithArgs(orderID, productID, qty, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(itemColumns).AddRow(itemID, orderID, productID, qty, price))
}

func (f *fixture) expectReserve(productID int64, qty int, price string) {
	f.mock.ExpectQuery(qReserve).
		WithArgs(qty, productID).
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(price))
}

func (f *fixture) expectLockOrder(orderID, userID int64, status models.OrderStatus) {
	now := time.Now()
	f.mock.ExpectQuery(qLockOrder).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows(orderColumns).AddRow(orderID, userID, "21.00", string(status), now, now))
}
