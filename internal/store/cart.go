package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
)

// LockCartItem returns the caller's row for the product, or nil when none
// exists. The row stays locked until the transaction ends.
func LockCartItem(ctx context.Context, tx *sql.Tx, userID, productID int64) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, product_id, quantity
		 FROM cart_items
		 WHERE user_id = $1 AND product_id = $2
		 FOR UPDATE`,
		userID, productID).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock cart item: %w", err)
	}

	return item, nil
}

// SetCartQuantity writes the (user, product) row with an absolute quantity,
// creating it on first add.
func SetCartQuantity(ctx context.Context, tx *sql.Tx, userID, productID int64, quantity int) (*models.CartItem, error) {
	item := &models.CartItem{}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity
		 RETURNING id, user_id, product_id, quantity`,
		userID, productID, quantity).Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity)
	if err != nil {
		return nil, fmt.Errorf("set cart quantity: %w", err)
	}

	return item, nil
}

func DeleteCartItem(ctx context.Context, q Querier, userID, productID int64) error {
	result, err := q.ExecContext(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return &apperr.Error{
			Kind:    apperr.KindNotFound,
			Message: fmt.Sprintf("product %d is not in the cart", productID),
			Details: apperr.Details{Entity: "cart_item", ProductID: productID},
		}
	}

	return nil
}

func ListCart(ctx context.Context, q Querier, userID int64) ([]models.CartItem, error) {
	return queryCart(ctx, q,
		`SELECT id, user_id, product_id, quantity
		 FROM cart_items
		 WHERE user_id = $1
		 ORDER BY id`,
		userID)
}

// LockCart returns every row of the user's cart locked for checkout, in
// product order so concurrent checkouts acquire product locks consistently.
func LockCart(ctx context.Context, tx *sql.Tx, userID int64) ([]models.CartItem, error) {
	return queryCart(ctx, tx,
		`SELECT id, user_id, product_id, quantity
		 FROM cart_items
		 WHERE user_id = $1
		 ORDER BY product_id
		 FOR UPDATE`,
		userID)
}

func ClearCart(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func queryCart(ctx context.Context, q Querier, query string, userID int64) ([]models.CartItem, error) {
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
