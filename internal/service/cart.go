package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/notify"
	"github.com/safar/order-engine/internal/store"
	"go.uber.org/zap"
)

type CartService struct {
	deps Deps
}

func NewCartService(deps Deps) *CartService {
	return &CartService{deps: deps.withDefaults()}
}

// Add raises the cart quantity for a product by quantity. The stock check is
// advisory: nothing is reserved until checkout.
func (s *CartService) Add(ctx context.Context, userID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity <= 0 {
		return nil, apperr.Invalid(fmt.Sprintf("quantity must be positive, got %d", quantity))
	}

	var item *models.CartItem

	err := s.deps.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := store.GetUser(ctx, tx, userID); err != nil {
			return err
		}

		product, err := store.GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if product.Stock == 0 {
			return apperr.OutOfStock(product.ID, product.Name)
		}

		existing, err := store.LockCartItem(ctx, tx, userID, productID)
		if err != nil {
			return err
		}

		total := quantity
		if existing != nil {
			total += existing.Quantity
		}
		if total > product.Stock {
			return apperr.InsufficientStock(product.ID, product.Name, total, product.Stock)
		}

		item, err = store.SetCartQuantity(ctx, tx, userID, productID, total)
		return err
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (s *CartService) Remove(ctx context.Context, userID, productID int64) error {
	return store.DeleteCartItem(ctx, s.deps.DB, userID, productID)
}

func (s *CartService) List(ctx context.Context, userID int64) ([]models.CartItem, error) {
	return store.ListCart(ctx, s.deps.DB, userID)
}

// Checkout turns the whole cart into one pending order, re-validating every
// row against current stock. Any failing row aborts the checkout untouched.
func (s *CartService) Checkout(ctx context.Context, userID int64) (*models.Order, error) {
	var (
		order     *models.Order
		recipient *models.User
		lines     []models.LineItem
	)

	err := s.deps.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		recipient, err = store.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		rows, err := store.LockCart(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperr.EmptyCart(userID)
		}

		lines = make([]models.LineItem, len(rows))
		for i, row := range rows {
			lines[i] = models.LineItem{ProductID: row.ProductID, Quantity: row.Quantity}
		}

		order, err = placeOrder(ctx, tx, userID, lines)
		if err != nil {
			return err
		}

		return store.ClearCart(ctx, tx, userID)
	})
	if err != nil {
		return nil, err
	}

	s.deps.Cache.Invalidate(ctx, lineProductIDs(lines)...)
	s.deps.Notifier.Dispatch(notify.NewOrderCreated(order, recipient))

	s.deps.Logger.Info("cart checked out",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int("items", len(order.Items)),
	)

	return order, nil
}
