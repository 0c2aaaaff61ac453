package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // Cached values are stored as JSON
	"errors"        // Redis miss detection
	"strings"       // Cache key assembly
	"time"          // Entry TTLs

	"github.com/redis/go-redis/v9" // Redis client
)

// Redis read-through cache backing the hot read endpoints: referral stats
// ("refstats:account:<id>") and the admin account listing
// ("admin:accounts:..."). Entries carry short TTLs and are deleted whenever
// a referral claim mutates the balances they mirror.

// CacheKey joins key segments with the ":" convention used for every cache
// entry in the service
func CacheKey(parts ...string) string {
	return strings.Join(parts, ":")
}

// GetCache loads the JSON value cached under key into dest. The boolean
// reports whether the key existed; a miss is not an error.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil // Cache miss
	}
	if err != nil {
		return false, err // Redis failure
	}
	return true, json.Unmarshal([]byte(val), dest)
}

// SetCache stores value under key as JSON for the given TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// DeleteCache drops a cache entry after the row it mirrors has mutated
func DeleteCache(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
