package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implementa Store sobre redis, para cuando hay más de un bridge
// apuntando al mismo store o se quiere sobrevivir restarts.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis crea el store con su propio cliente.
func NewRedis(addr string, db int, prefix string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}, nil
}

func (r *Redis) key(guid string) string {
	if r.prefix == "" {
		return "sent:" + guid
	}
	return r.prefix + ":sent:" + guid
}

func (r *Redis) Seen(ctx context.Context, guid string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(guid)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Mark(ctx context.Context, guid string) error {
	if err := r.rdb.Set(ctx, r.key(guid), 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.rdb.Close() }
