package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/shopspring/decimal"
)

// ReserveStock decrements stock by quantity and returns the product price at
// the moment of reservation. The conditional update keeps stock non-negative
// even without a prior row lock.
func ReserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (decimal.Decimal, error) {
	if quantity <= 0 {
		return decimal.Zero, apperr.Invalid(fmt.Sprintf("quantity must be positive, got %d", quantity))
	}

	var price decimal.Decimal
	err := tx.QueryRowContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1
		 RETURNING price`,
		quantity, productID).Scan(&price)
	if err == nil {
		return price, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("reserve stock for product %d: %w", productID, err)
	}

	var name string
	var stock int
	err = tx.QueryRowContext(ctx,
		`SELECT name, stock FROM products WHERE id = $1`,
		productID).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, apperr.NotFound("product", productID)
		}
		return decimal.Zero, fmt.Errorf("read stock for product %d: %w", productID, err)
	}

	return decimal.Zero, apperr.InsufficientStock(productID, name, quantity, stock)
}

// RestoreStock credits quantity back to the product. It is not idempotent:
// call it exactly once per committed reservation.
func RestoreStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	if quantity <= 0 {
		return apperr.Invalid(fmt.Sprintf("quantity must be positive, got %d", quantity))
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock + $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("restore stock for product %d: %w", productID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperr.NotFound("product", productID)
	}

	return nil
}

// LockProduct reads a product and holds its row lock until the transaction
// ends.
func LockProduct(ctx context.Context, tx *sql.Tx, productID int64) (*models.Product, error) {
	product := &models.Product{}

	err := tx.QueryRowContext(ctx,
		`SELECT id, name, price, stock, created_at, updated_at
		 FROM products
		 WHERE id = $1
		 FOR UPDATE`,
		productID).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("product", productID)
		}
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	return product, nil
}
