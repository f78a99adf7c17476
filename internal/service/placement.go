package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/safar/order-engine/internal/store"
	"github.com/shopspring/decimal"
)

func validateLines(lines []models.LineItem) error {
	if len(lines) == 0 {
		return apperr.Invalid("order must contain at least one item")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return &apperr.Error{
				Kind:    apperr.KindInvalid,
				Message: fmt.Sprintf("quantity for product %d must be positive", line.ProductID),
				Details: apperr.Details{Entity: "product", ProductID: line.ProductID, Requested: line.Quantity},
			}
		}
	}
	return nil
}

// placeOrder validates every line against locked product rows before writing
// anything, then creates a pending order with one item per line and reserves
// the stock. Lines naming the same product are checked against their combined
// quantity. Must run inside the caller's transaction.
func placeOrder(ctx context.Context, tx *sql.Tx, userID int64, lines []models.LineItem) (*models.Order, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	requested := make(map[int64]int, len(lines))
	for _, line := range lines {
		requested[line.ProductID] += line.Quantity
	}

	ids := make([]int64, 0, len(requested))
	for id := range requested {
		ids = append(ids, id)
	}
	// Lock in id order so concurrent orders cannot deadlock on each other.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	prices := make(map[int64]decimal.Decimal, len(ids))
	for _, id := range ids {
		product, err := store.LockProduct(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if product.Stock < requested[id] {
			return nil, apperr.InsufficientStock(product.ID, product.Name, requested[id], product.Stock)
		}
		prices[id] = product.Price
	}

	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(prices[line.ProductID].Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	order, err := store.InsertOrder(ctx, tx, userID, total, models.OrderStatusPending)
	if err != nil {
		return nil, err
	}

	order.Items = make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		item, err := store.InsertOrderItem(ctx, tx, order.ID, line.ProductID, line.Quantity, prices[line.ProductID])
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}

	for _, line := range lines {
		if _, err := store.ReserveStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return nil, err
		}
	}

	return order, nil
}

func lineProductIDs(lines []models.LineItem) []int64 {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}
	return productIDs(ids)
}
