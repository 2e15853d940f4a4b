package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-systems/supplyscore/internal/models"
)

func newTestCache(t *testing.T) (*SnapshotCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewWithClient(client, 15*time.Minute), mr
}

func TestSnapshotCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	entityID, err := uuid.NewV7()
	require.NoError(t, err)

	_, ok := c.Get(ctx, entityID)
	assert.False(t, ok, "cold cache must miss")

	snapshot := models.FeatureSnapshot{"transaction_count_6m": 12, "kyc_verified": 1}
	c.Set(ctx, entityID, snapshot)

	got, ok := c.Get(ctx, entityID)
	require.True(t, ok)
	assert.Equal(t, snapshot, got)
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)

	entityID, err := uuid.NewV7()
	require.NoError(t, err)

	c.Set(ctx, entityID, models.FeatureSnapshot{"network_size": 3})
	c.Invalidate(ctx, entityID)

	_, ok := c.Get(ctx, entityID)
	assert.False(t, ok, "invalidation must drop the entry")
}

func TestSnapshotCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t)

	entityID, err := uuid.NewV7()
	require.NoError(t, err)

	c.Set(ctx, entityID, models.FeatureSnapshot{"network_size": 3})
	mr.FastForward(16 * time.Minute)

	_, ok := c.Get(ctx, entityID)
	assert.False(t, ok, "entries expire after the configured TTL")
}

func TestNilCacheIsNoOp(t *testing.T) {
	ctx := context.Background()
	var c *SnapshotCache

	entityID, err := uuid.NewV7()
	require.NoError(t, err)

	_, ok := c.Get(ctx, entityID)
	assert.False(t, ok)
	c.Set(ctx, entityID, models.FeatureSnapshot{"a": 1})
	c.Invalidate(ctx, entityID)
	assert.NoError(t, c.Close())
}
