package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProcessedTTL bounds how long a processed-order marker is kept. Gateway
// retries stop well before this.
const ProcessedTTL = 72 * time.Hour

// OrderMarker remembers orders whose success webhook already committed. It
// is a fast path only; the order row stays authoritative.
type OrderMarker interface {
	IsProcessed(ctx context.Context, orderID string) (bool, error)
	MarkProcessed(ctx context.Context, orderID string) error
}

type NopOrderMarker struct{}

func (NopOrderMarker) IsProcessed(context.Context, string) (bool, error) { return false, nil }

func (NopOrderMarker) MarkProcessed(context.Context, string) error { return nil }

type RedisOrderMarker struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisOrderMarker(rdb redis.UniversalClient) *RedisOrderMarker {
	return &RedisOrderMarker{rdb: rdb, ttl: ProcessedTTL}
}

func processedKey(orderID string) string {
	return fmt.Sprintf("order:processed:{%s}", orderID)
}

func (m *RedisOrderMarker) IsProcessed(ctx context.Context, orderID string) (bool, error) {
	_, err := m.rdb.Get(ctx, processedKey(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *RedisOrderMarker) MarkProcessed(ctx context.Context, orderID string) error {
	return m.rdb.Set(ctx, processedKey(orderID), time.Now().UTC().Format(time.RFC3339), m.ttl).Err()
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = time.Second
	opts.ReadTimeout = 400 * time.Millisecond
	opts.WriteTimeout = 400 * time.Millisecond
	opts.OnConnect = func(ctx context.Context, cn *redis.Conn) error {
		_ = cn.ClientSetName(ctx, "tourneyhost").Err()
		return nil
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
