package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Keys used by the services. Writers evict them before reporting success.
const (
	KeyActiveMenu   = "menu:active"
	cartCountPrefix = "cart:count:"
)

// CartCountKey is the cache key for the item count of one cart owner.
func CartCountKey(ownerKey string) string {
	return cartCountPrefix + ownerKey
}

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a short TTL read-through store. Values travel as JSON.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// GetJSON decodes a cached value into dest. A miss or a corrupt entry
// reports false.
func GetJSON(ctx context.Context, c Cache, key string, dest interface{}) bool {
	raw, err := c.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, raw, ttl)
}
