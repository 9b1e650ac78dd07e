package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type identityCache interface {
	GetUserID(ctx context.Context, externalID string) (string, error)
	SetUserID(ctx context.Context, externalID, userID string) error
	Forget(ctx context.Context, externalID string) error
}

func runIdentityCache(t *testing.T, c identityCache) {
	ctx := context.Background()
	ext := "ext_" + primitive.NewObjectID().Hex()

	id, err := c.GetUserID(ctx, ext)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, c.SetUserID(ctx, ext, "user-1"))
	id, err = c.GetUserID(ctx, ext)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	require.NoError(t, c.Forget(ctx, ext))
	id, err = c.GetUserID(ctx, ext)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMemoryIdentityCache(t *testing.T) {
	runIdentityCache(t, NewMemoryIdentityCache())
}

func TestRedisIdentityCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb, err := NewRedisClient(context.Background(), addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	runIdentityCache(t, NewIdentityCache(rdb, time.Minute))
}
