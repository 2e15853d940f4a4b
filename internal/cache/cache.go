// Package cache fronts the feature store with a Redis snapshot cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerline-systems/supplyscore/internal/metrics"
	"github.com/ledgerline-systems/supplyscore/internal/models"
)

// SnapshotCache caches current feature snapshots per entity. A nil
// *SnapshotCache is a valid no-op cache, so callers need no branching when
// Redis is not configured.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) (*SnapshotCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &SnapshotCache{client: client, ttl: ttl}, nil
}

// NewWithClient wraps an existing client; used by tests.
func NewWithClient(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func key(entityID uuid.UUID) string {
	return "features:" + entityID.String()
}

// Get returns the cached snapshot, or ok=false on miss or any Redis error.
// Cache failures degrade to the store, never to the caller.
func (c *SnapshotCache) Get(ctx context.Context, entityID uuid.UUID) (models.FeatureSnapshot, bool) {
	if c == nil {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key(entityID)).Bytes()
	if err != nil {
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}

	var snapshot models.FeatureSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues("hit").Inc()
	return snapshot, true
}

func (c *SnapshotCache) Set(ctx context.Context, entityID uuid.UUID, snapshot models.FeatureSnapshot) {
	if c == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	c.client.Set(ctx, key(entityID), payload, c.ttl)
}

// Invalidate drops the cached snapshot; called whenever features are stored.
func (c *SnapshotCache) Invalidate(ctx context.Context, entityID uuid.UUID) {
	if c == nil {
		return
	}
	c.client.Del(ctx, key(entityID))
}

func (c *SnapshotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
