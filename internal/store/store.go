// Package store holds the SQL for every entity. Functions that only read take
// a Querier so they run against either the pool or an open transaction;
// functions that must see locked rows take *sql.Tx.
package store

import (
	"context"
	"database/sql"
)

type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

// clampLimit bounds a requested page size to (0, MaxLimit].
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxLimit {
		return DefaultLimit
	}
	return limit
}
