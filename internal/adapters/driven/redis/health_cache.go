package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HealthCache = (*HealthCache)(nil)

const healthPrefix = "conduit:health:"

// HealthCache stores the latest ConnectorHealth record per connector with
// a TTL, for cross-process visibility. Records left behind by an
// unregistered connector simply age out.
type HealthCache struct {
	client *redis.Client
}

// NewHealthCache creates a Redis-backed health record cache.
func NewHealthCache(client *redis.Client) *HealthCache {
	return &HealthCache{client: client}
}

func healthCacheKey(connectorType domain.ConnectorType, instanceID string) string {
	return healthPrefix + string(connectorType) + ":" + instanceID
}

func (c *HealthCache) Save(ctx context.Context, health *domain.ConnectorHealth, ttl time.Duration) error {
	data, err := json.Marshal(health)
	if err != nil {
		return fmt.Errorf("marshal health record: %w", err)
	}

	key := healthCacheKey(health.ConnectorType, health.InstanceID)
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("save health record: %w", err)
	}
	return nil
}

func (c *HealthCache) Get(ctx context.Context, connectorType domain.ConnectorType, instanceID string) (*domain.ConnectorHealth, error) {
	data, err := c.client.Get(ctx, healthCacheKey(connectorType, instanceID)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get health record: %w", err)
	}

	var health domain.ConnectorHealth
	if err := json.Unmarshal(data, &health); err != nil {
		return nil, fmt.Errorf("unmarshal health record: %w", err)
	}
	return &health, nil
}
