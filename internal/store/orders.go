package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, total, status, created_at, updated_at`

type OrderFilter struct {
	UserID *int64
	Skip   int
	Limit  int
}

// StatusSummary aggregates orders sharing one status.
type StatusSummary struct {
	Status models.OrderStatus `json:"status"`
	Count  int64              `json:"count"`
	Total  decimal.Decimal    `json:"total"`
}

func InsertOrder(ctx context.Context, tx *sql.Tx, userID int64, total decimal.Decimal, status models.OrderStatus) (*models.Order, error) {
	order := &models.Order{}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO orders (user_id, total, status, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 RETURNING `+orderColumns,
		userID, total, status).Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func InsertOrderItem(ctx context.Context, tx *sql.Tx, orderID, productID int64, quantity int, price decimal.Decimal) (*models.OrderItem, error) {
	item := &models.OrderItem{}

	err := tx.QueryRowContext(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, price_at_time)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, order_id, product_id, quantity, price_at_time`,
		orderID, productID, quantity, price).Scan(
		&item.ID,
		&item.OrderID,
		&item.ProductID,
		&item.Quantity,
		&item.PriceAtTime,
	)
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	return item, nil
}

func GetOrder(ctx context.Context, q Querier, id int64) (*models.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), id)
	if err != nil {
		return nil, err
	}

	items, err := OrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// LockOrder reads an order row without its items and holds the row lock.
func LockOrder(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id), id)
}

func SetOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status models.OrderStatus) (*models.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`UPDATE orders
		 SET status = $1, updated_at = NOW()
		 WHERE id = $2
		 RETURNING `+orderColumns,
		status, id), id)
}

// DeleteOrder removes the order; its items go with it by cascade.
func DeleteOrder(ctx context.Context, tx *sql.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return apperr.NotFound("order", id)
	}

	return nil
}

func OrderItems(ctx context.Context, q Querier, orderID int64) ([]models.OrderItem, error) {
	byOrder, err := orderItemsFor(ctx, q, []int64{orderID})
	if err != nil {
		return nil, err
	}
	items := byOrder[orderID]
	if items == nil {
		items = []models.OrderItem{}
	}
	return items, nil
}

// ListOrders returns orders newest first with their items, optionally
// restricted to one user.
func ListOrders(ctx context.Context, q Querier, filter OrderFilter) ([]models.Order, error) {
	skip := filter.Skip
	if skip < 0 {
		skip = 0
	}

	var rows *sql.Rows
	var err error
	if filter.UserID != nil {
		rows, err = q.QueryContext(ctx,
			`SELECT `+orderColumns+`
			 FROM orders
			 WHERE user_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2 OFFSET $3`,
			*filter.UserID, clampLimit(filter.Limit), skip)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT `+orderColumns+`
			 FROM orders
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1 OFFSET $2`,
			clampLimit(filter.Limit), skip)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	return orders, nil
}

func ListOrdersCursor(ctx context.Context, q Querier, userID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, apperr.Invalid("malformed cursor")
	}
	limit = clampLimit(limit)

	rows, err := q.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		   AND (created_at, id) < ($2, $3)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $4`,
		userID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		lastOrder := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: lastOrder.CreatedAt,
			ID:        lastOrder.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func SummarizeOrders(ctx context.Context, q Querier) ([]StatusSummary, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total), 0)
		 FROM orders
		 GROUP BY status
		 ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("summarize orders: %w", err)
	}
	defer rows.Close()

	summaries := []StatusSummary{}
	for rows.Next() {
		var s StatusSummary
		if err := rows.Scan(&s.Status, &s.Count, &s.Total); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return summaries, nil
}

func scanOrder(row *sql.Row, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("order", id)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

func attachItems(ctx context.Context, q Querier, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}

	byOrder, err := orderItemsFor(ctx, q, ids)
	if err != nil {
		return err
	}

	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}

	return nil
}

func orderItemsFor(ctx context.Context, q Querier, orderIDs []int64) (map[int64][]models.OrderItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, price_at_time
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, id`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]models.OrderItem, len(orderIDs))
	for rows.Next() {
		var item models.OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Quantity,
			&item.PriceAtTime,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return byOrder, nil
}
