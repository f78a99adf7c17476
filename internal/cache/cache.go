// Package cache fronts product reads with Redis. It is never consulted for
// stock decisions inside a transaction; writers invalidate after commit.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/safar/order-engine/internal/apperr"
	"github.com/safar/order-engine/internal/models"
	"go.uber.org/zap"
)

const (
	notFoundMarker = "notfound"
	notFoundTTL    = time.Minute
	fillTTL        = 30 * time.Second
)

// fillScript stores a loaded value only while the caller's fill token is
// still present. Invalidate deletes the token, so a load that raced with a
// committed write never lands in the cache.
const fillScript = `
if redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	redis.call("DEL", KEYS[2])
	return 1
end
return 0`

type LoadFunc func(ctx context.Context) (*models.Product, error)

type ProductCache interface {
	// GetProduct returns the cached product or calls load and caches its
	// result, including a not-found outcome.
	GetProduct(ctx context.Context, id int64, load LoadFunc) (*models.Product, error)
	Invalidate(ctx context.Context, ids ...int64)
}

// Nop is used when Redis is not configured.
type Nop struct{}

func (Nop) GetProduct(ctx context.Context, _ int64, load LoadFunc) (*models.Product, error) {
	return load(ctx)
}

func (Nop) Invalidate(context.Context, ...int64) {}

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Redis struct {
	client redisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client redisClient, ttl time.Duration, logger *zap.Logger) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Connect parses a redis:// URL, or a bare host:port, and pings the server.
func Connect(ctx context.Context, url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	if password != "" {
		opts.Password = password
	}
	if db != 0 {
		opts.DB = db
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func fillKey(id int64) string {
	return fmt.Sprintf("product:%d:fill", id)
}

func (c *Redis) GetProduct(ctx context.Context, id int64, load LoadFunc) (*models.Product, error) {
	key := productKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundMarker {
			return nil, apperr.NotFound("product", id)
		}

		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		c.logger.Warn("unmarshal cached product, continuing with database", zap.Int64("product_id", id), zap.Error(err))

	case errors.Is(err, redis.Nil):

	default:
		c.logger.Warn("redis get failed, continuing with database", zap.Int64("product_id", id), zap.Error(err))
	}

	fill, token := fillKey(id), uuid.NewString()
	if err := c.client.Set(ctx, fill, token, fillTTL).Err(); err != nil {
		c.logger.Warn("mark product fill", zap.Int64("product_id", id), zap.Error(err))
		token = ""
	}

	product, err := load(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			c.store(ctx, id, token, notFoundMarker, notFoundTTL)
		} else if token != "" {
			c.client.Del(ctx, fill)
		}
		return nil, err
	}

	body, err := json.Marshal(product)
	if err != nil {
		c.logger.Warn("marshal product for cache", zap.Int64("product_id", id), zap.Error(err))
		return product, nil
	}

	c.store(ctx, id, token, string(body), c.ttl)
	return product, nil
}

// store writes value under the product key if the fill token survived the
// load. An empty token means the mark could not be placed and nothing is
// cached.
func (c *Redis) store(ctx context.Context, id int64, token, value string, ttl time.Duration) {
	if token == "" {
		return
	}

	keys := []string{productKey(id), fillKey(id)}
	stored, err := c.client.Eval(ctx, fillScript, keys, token, value, ttl.Milliseconds()).Int()
	switch {
	case err != nil:
		c.logger.Warn("cache product", zap.Int64("product_id", id), zap.Error(err))
	case stored == 0:
		c.logger.Debug("product changed during load, not cached", zap.Int64("product_id", id))
	}
}

func (c *Redis) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id), fillKey(id))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("invalidate product cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
