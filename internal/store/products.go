package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, name, price, stock, created_at, updated_at`

type ProductFilter struct {
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  *bool
	Skip     int
	Limit    int
}

func CreateProduct(ctx context.Context, q Querier, p models.Product) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO products (name, price, stock, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING ` + productColumns

	err := q.QueryRowContext(ctx, query, p.Name, p.Price, p.Stock).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// UpdateProduct replaces the editable fields of a product. This is a direct
// catalog edit and does not go through the ledger.
func UpdateProduct(ctx context.Context, q Querier, id int64, p models.Product) (*models.Product, error) {
	product := &models.Product{}

	query := `
		UPDATE products
		SET name = $1, price = $2, stock = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING ` + productColumns

	err := q.QueryRowContext(ctx, query, p.Name, p.Price, p.Stock, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Stock,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return product, nil
}

// DeleteProduct fails with a foreign key violation while order items still
// reference the product. Cart rows for it are removed by cascade.
func DeleteProduct(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperr.NotFound("product", id)
	}

	return nil
}

func ListProducts(ctx context.Context, q Querier, filter ProductFilter) ([]models.Product, error) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if search := strings.TrimSpace(filter.Search); search != "" {
		conds = append(conds, "name ILIKE "+arg("%"+escapeLike(search)+"%"))
	}
	if filter.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*filter.MaxPrice))
	}
	if filter.InStock != nil {
		if *filter.InStock {
			conds = append(conds, "stock > 0")
		} else {
			conds = append(conds, "stock = 0")
		}
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}
	query += " ORDER BY id LIMIT " + arg(clampLimit(filter.Limit)) + " OFFSET " + arg(skip)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Price,
			&product.Stock,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
