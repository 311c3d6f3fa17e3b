package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// RedisLimiter implementa la ventana fija con INCR + EXPIRE. La clave
// incluye el inicio de la ventana, así expira sola y no hay que barrer.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter crea el limiter compartido entre instancias.
func NewRedisLimiter(client *rdb.Client, prefix string, max int64, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "idcore:rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	winStart := time.Now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}
	// El primer hit fija la expiración de la ventana.
	if incr.Val() == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
		ttl = l.client.TTL(ctx, redisKey)
	}

	hits := incr.Val()
	res := Result{
		Allowed:   hits <= l.max,
		Remaining: max(l.max-hits, 0),
	}
	if !res.Allowed {
		res.RetryAfter = ttl.Val()
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.window
		}
	}
	return res, nil
}
