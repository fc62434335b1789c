package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "senat:doc:" // senat:doc:{name} - document body

// Redis keeps each document under its own string key.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to addr and pings it before returning.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Get implements Backend.
func (r *Redis) Get(ctx context.Context, name string) ([]byte, error) {
	body, err := r.rdb.Get(ctx, redisKeyPrefix+name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return body, err
}

// Put implements Backend.
func (r *Redis) Put(ctx context.Context, name string, body []byte) error {
	return r.rdb.Set(ctx, redisKeyPrefix+name, body, 0).Err()
}

// Quarantine implements Quarantiner.
func (r *Redis) Quarantine(ctx context.Context, name string) error {
	key := redisKeyPrefix + name
	return r.rdb.Rename(ctx, key, fmt.Sprintf("%s:corrupt:%d", key, time.Now().Unix())).Err()
}

// Close implements Backend.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
