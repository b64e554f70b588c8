package cost

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "fieldmapper:cost"
	defaultSessionTTL  = 24 * time.Hour
)

// RedisLedger shares session spend between processes.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger constructs a RedisLedger. Empty prefix and zero ttl fall
// back to defaults.
func NewRedisLedger(client *redis.Client, prefix string, ttl time.Duration) *RedisLedger {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisLedger{client: client, prefix: prefix, ttl: ttl}
}

func (l *RedisLedger) Spent(ctx context.Context, session string) (float64, error) {
	v, err := l.client.Get(ctx, l.key(session)).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (l *RedisLedger) Add(ctx context.Context, session string, usd float64) (float64, error) {
	key := l.key(session)
	pipe := l.client.TxPipeline()
	incr := pipe.IncrByFloat(ctx, key, usd)
	pipe.Expire(ctx, key, l.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (l *RedisLedger) key(session string) string {
	return l.prefix + ":" + session
}
