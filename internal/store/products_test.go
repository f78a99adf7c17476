package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productRowColumns = []string{"id", "name", "price", "stock", "created_at", "updated_at"}

func TestListProducts_AllFilters(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()
	minPrice := decimal.NewFromInt(5)
	maxPrice := decimal.NewFromInt(20)
	inStock := true

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT id, name, price, stock, created_at, updated_at FROM products WHERE name ILIKE $1 AND price >= $2 AND price <= $3 AND stock > 0 ORDER BY id LIMIT $4 OFFSET $5`)).
		WithArgs(`%50\%%`, minPrice, maxPrice, 10, 20).
		WillReturnRows(sqlmock.NewRows(productRowColumns).AddRow(int64(1), "50% Widget", "9.99", 3, now, now))

	products, err := ListProducts(context.Background(), db, ProductFilter{
		Search:   " 50% ",
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		InStock:  &inStock,
		Skip:     20,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "50% Widget", products[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListProducts_OutOfStockAndDefaults(t *testing.T) {
	db, mock := newMock(t)
	inStock := false

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE stock = 0 ORDER BY id LIMIT $1 OFFSET $2`)).
		WithArgs(DefaultLimit, 0).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	products, err := ListProducts(context.Background(), db, ProductFilter{InStock: &inStock, Skip: -1, Limit: 500})
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProduct_NotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE products`)).
		WithArgs("Widget", decimal.NewFromInt(3), 4, int64(9)).
		WillReturnRows(sqlmock.NewRows(productRowColumns))

	_, err := UpdateProduct(context.Background(), db, 9, models.Product{Name: "Widget", Price: decimal.NewFromInt(3), Stock: 4})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteProduct(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM products WHERE id = $1`)).
		WithArgs(int64(3)).
		WillReturnError(&pq.Error{Code: "23503"})

	require.NoError(t, DeleteProduct(context.Background(), db, 1))
	assert.ErrorIs(t, DeleteProduct(context.Background(), db, 2), apperr.ErrNotFound)

	var pqErr *pq.Error
	assert.ErrorAs(t, DeleteProduct(context.Background(), db, 3), &pqErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
