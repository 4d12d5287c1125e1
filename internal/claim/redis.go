package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisGuard is a Guard backed by Redis SET NX, usable when several
// dispatcher processes share one store.
type RedisGuard struct {
	client *redis.Client
	prefix string
}

// NewRedisGuard connects to Redis at addr and verifies the connection.
func NewRedisGuard(addr, password string, db int) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisGuard{client: client, prefix: "alertflow:claim:"}, nil
}

// Acquire claims the key atomically with SET NX and a TTL.
func (g *RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, "claimed", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire claim: %w", err)
	}
	return ok, nil
}

// Release drops the claim.
func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (g *RedisGuard) Close() error {
	return g.client.Close()
}
