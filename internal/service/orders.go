package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/notify"
	"github.com/safar/order-engine/internal/store"
	"go.uber.org/zap"
)

type OrderService struct {
	deps Deps
}

func NewOrderService(deps Deps) *OrderService {
	return &OrderService{deps: deps.withDefaults()}
}

// Create places an order for userID. Either every line is reserved and the
// order exists, or nothing changed.
func (s *OrderService) Create(ctx context.Context, userID int64, lines []models.LineItem) (*models.Order, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var order *models.Order
	var recipient *models.User

	err := s.deps.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		recipient, err = store.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		order, err = placeOrder(ctx, tx, userID, lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.deps.Cache.Invalidate(ctx, lineProductIDs(lines)...)
	s.deps.Notifier.Dispatch(notify.NewOrderCreated(order, recipient))

	s.deps.Logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)

	return order, nil
}

// UpdateStatus sets any enumerated status; no transition graph is enforced.
// A notification is sent only when the status actually changes.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperr.Invalid(fmt.Sprintf("unknown order status %q", status))
	}

	var (
		order     *models.Order
		oldStatus models.OrderStatus
		recipient *models.User
	)

	err := s.deps.inTx(ctx, func(tx *sql.Tx) error {
		current, err := store.LockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		oldStatus = current.Status

		order, err = store.SetOrderStatus(ctx, tx, orderID, status)
		if err != nil {
			return err
		}

		order.Items, err = store.OrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		recipient, err = store.GetUser(ctx, tx, order.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if oldStatus != order.Status {
		s.deps.Notifier.Dispatch(notify.NewOrderStatusChanged(order, oldStatus, recipient))
		s.deps.Logger.Info("order status changed",
			zap.Int64("order_id", order.ID),
			zap.String("old_status", string(oldStatus)),
			zap.String("new_status", string(order.Status)),
		)
	}

	return order, nil
}

// Delete restores every item's quantity to its product, skipping products
// that no longer exist, then removes the order and its items.
func (s *OrderService) Delete(ctx context.Context, orderID int64) error {
	var restored []int64

	err := s.deps.inTx(ctx, func(tx *sql.Tx) error {
		restored = restored[:0]

		if _, err := store.LockOrder(ctx, tx, orderID); err != nil {
			return err
		}

		items, err := store.OrderItems(ctx, tx, orderID)
		if err != nil {
			return err
		}

		for _, item := range items {
			err := store.RestoreStock(ctx, tx, item.ProductID, item.Quantity)
			if errors.Is(err, apperr.ErrNotFound) {
				s.deps.Logger.Warn("skip restore for missing product",
					zap.Int64("order_id", orderID),
					zap.Int64("product_id", item.ProductID),
				)
				continue
			}
			if err != nil {
				return err
			}
			restored = append(restored, item.ProductID)
		}

		return store.DeleteOrder(ctx, tx, orderID)
	})
	if err != nil {
		return err
	}

	s.deps.Cache.Invalidate(ctx, productIDs(restored)...)
	s.deps.Logger.Info("order deleted", zap.Int64("order_id", orderID), zap.Int("restored_items", len(restored)))

	return nil
}

func (s *OrderService) Get(ctx context.Context, orderID int64) (*models.Order, error) {
	return store.GetOrder(ctx, s.deps.DB, orderID)
}

func (s *OrderService) ListAll(ctx context.Context, skip, limit int) ([]models.Order, error) {
	return store.ListOrders(ctx, s.deps.DB, store.OrderFilter{Skip: skip, Limit: limit})
}

func (s *OrderService) ListForUser(ctx context.Context, userID int64, skip, limit int) ([]models.Order, error) {
	return store.ListOrders(ctx, s.deps.DB, store.OrderFilter{UserID: &userID, Skip: skip, Limit: limit})
}

// ListMine pages through the caller's orders newest first.
func (s *OrderService) ListMine(ctx context.Context, userID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersCursor(ctx, s.deps.DB, userID, cursor, limit)
}

func (s *OrderService) Summary(ctx context.Context) ([]store.StatusSummary, error) {
	return store.SummarizeOrders(ctx, s.deps.DB)
}
