// Package service composes the store primitives into units of work. Every
// mutating operation runs in one serializable transaction; cache invalidation
// and notifications happen only after commit.
package service

import (
	"context"
	"database/sql"

	"github.com/safar/order-engine/internal/cache"
	"github.com/safar/order-engine/internal/database"
	"github.com/safar/order-engine/internal/notify"
	"go.uber.org/zap"
)

type Notifier interface {
	Dispatch(event notify.Event)
}

// Deps are shared by every service.
type Deps struct {
	DB         *sql.DB
	Cache      cache.ProductCache
	Notifier   Notifier
	Logger     *zap.Logger
	MaxRetries int
}

func (d Deps) withDefaults() Deps {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Notifier == nil {
		d.Notifier = discard{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return d
}

func (d Deps) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return database.WithRetry(ctx, d.DB, database.SerializableTxOptions(d.MaxRetries), fn)
}

type discard struct{}

func (discard) Dispatch(notify.Event) {}

func productIDs(items []int64) []int64 {
	seen := make(map[int64]struct{}, len(items))
	out := make([]int64, 0, len(items))
	for _, id := range items {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
