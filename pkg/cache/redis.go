package cache

import (
	"context"
	"time"

	redisclient "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}

// Redis stores entries in Redis with native expiry.
type Redis struct {
	kv     kvStore
	client *redisclient.Client
}

// NewRedis wraps a connected client.
func NewRedis(client *redisclient.Client) *Redis {
	return &Redis{kv: client, client: client}
}

// Client exposes the underlying connection, used by the invalidation consumer.
func (r *Redis) Client() *redisclient.Client {
	return r.client
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.kv.Get(ctx, key)
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.kv.Set(ctx, key, value, ttl)
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) (int64, error) {
	return r.kv.DeletePrefix(ctx, prefix)
}

func (r *Redis) Close() error {
	return r.kv.Close()
}
