package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	redisclient "github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/redis"
	"github.com/BlitzCraftHQ/nftconomy-cardano-api-sub001/pkg/utils"
)

const (
	// KeyPrefix namespaces every chart entry.
	KeyPrefix = "charts:"
	// MarketScope is the scope used for charts not tied to a collection.
	MarketScope = "_market"
)

// Backend names accepted by CACHE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Cache stores serialized chart responses.
type Cache interface {
	// Get returns the cached value. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// InvalidatePrefix removes every key starting with prefix and returns how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}

// Signature hashes the distinguishing parameters of a request.
func Signature(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(strconv.Itoa(len(p)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(p)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// Scope returns the cache scope for a collection, or MarketScope when empty.
func Scope(collection string) string {
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return MarketScope
	}
	return collection
}

// ScopePrefix is the prefix shared by every key in scope.
func ScopePrefix(scope string) string {
	return KeyPrefix + scope + ":"
}

// Key builds the cache key for a scope and signature.
func Key(scope, signature string) string {
	return ScopePrefix(scope) + signature
}

// New builds the backend named by CACHE_BACKEND.
func New(ctx context.Context, logger *zap.Logger) (Cache, error) {
	backend := strings.ToLower(utils.Env("CACHE_BACKEND", BackendMemory))
	logger = logger.With(zap.String("component", "cache"), zap.String("backend", backend))

	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		client, err := redisclient.NewClient(ctx, logger)
		if err != nil {
			return nil, err
		}
		return NewRedis(client), nil
	case BackendBadger:
		return NewBadger(BadgerConfig{
			Path:     utils.Env("BADGER_PATH", "./data/cache"),
			InMemory: utils.EnvBool("BADGER_IN_MEMORY", false),
			Logger:   logger,
		})
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
