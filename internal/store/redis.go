package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// IdentityCache maps external identity ids to internal user ids so that
// authenticated requests skip the users collection lookup.
type IdentityCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdentityCache(rdb *redis.Client, ttl time.Duration) *IdentityCache {
	return &IdentityCache{rdb: rdb, ttl: ttl}
}

func identityKey(externalID string) string { return "identity:" + externalID }

// GetUserID returns "" on a miss.
func (c *IdentityCache) GetUserID(ctx context.Context, externalID string) (string, error) {
	val, err := c.rdb.Get(ctx, identityKey(externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (c *IdentityCache) SetUserID(ctx context.Context, externalID, userID string) error {
	return c.rdb.Set(ctx, identityKey(externalID), userID, c.ttl).Err()
}

func (c *IdentityCache) Forget(ctx context.Context, externalID string) error {
	return c.rdb.Del(ctx, identityKey(externalID)).Err()
}
