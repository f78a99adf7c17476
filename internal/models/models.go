package models

import (
	"strings"
	"time"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewProduct builds a product from explicit fields, rejecting a blank name,
// a negative price or negative stock.
func NewProduct(name string, price decimal.Decimal, stock int) (Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Product{}, apperr.Invalid("product name is required")
	}
	if price.IsNegative() {
		return Product{}, apperr.Invalid("product price cannot be negative")
	}
	if stock < 0 {
		return Product{}, apperr.Invalid("product stock cannot be negative")
	}
	return Product{Name: name, Price: price, Stock: stock}, nil
}

// CartItem holds no price; the price is resolved at checkout.
type CartItem struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type Order struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Status    OrderStatus     `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Items     []OrderItem     `json:"items"`
}

// OrderItem is the snapshot taken when the order was placed. PriceAtTime
// never changes after insert.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	Quantity    int             `json:"quantity"`
	PriceAtTime decimal.Decimal `json:"price_at_time"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtTime.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums quantity * price_at_time over the order's items.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// LineItem is one requested (product, quantity) pair of a new order.
type LineItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}
