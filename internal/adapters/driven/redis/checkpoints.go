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
var _ driven.CheckpointBackend = (*CheckpointCache)(nil)

const (
	// Key prefixes for Redis
	checkpointPrefix      = "conduit:checkpoint:"
	checkpointIndexPrefix = "conduit:checkpoint:index:"
)

// CheckpointCache is the shared middle checkpoint tier: fast cross-process
// reads with a TTL bounding staleness after a crash. A per-instance index
// set makes instance teardown cheap without a keyspace scan.
type CheckpointCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCheckpointCache creates a Redis-backed checkpoint tier.
// A non-positive ttl defaults to one hour.
func NewCheckpointCache(client *redis.Client, ttl time.Duration) *CheckpointCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CheckpointCache{client: client, ttl: ttl}
}

func (c *CheckpointCache) Name() string  { return "redis" }
func (c *CheckpointCache) Durable() bool { return false }

func checkpointKey(instanceID, resource string) string {
	return checkpointPrefix + instanceID + ":" + resource
}

func (c *CheckpointCache) Get(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error) {
	data, err := c.client.Get(ctx, checkpointKey(instanceID, resource)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}

	var cp domain.SyncCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (c *CheckpointCache) Save(ctx context.Context, cp *domain.SyncCheckpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Pipeline the record write and the instance index update
	pipe := c.client.Pipeline()
	pipe.Set(ctx, checkpointKey(cp.InstanceID, cp.Resource), data, c.ttl)
	pipe.SAdd(ctx, checkpointIndexPrefix+cp.InstanceID, cp.Resource)
	pipe.Expire(ctx, checkpointIndexPrefix+cp.InstanceID, c.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (c *CheckpointCache) Delete(ctx context.Context, instanceID, resource string) error {
	pipe := c.client.Pipeline()
	pipe.Del(ctx, checkpointKey(instanceID, resource))
	pipe.SRem(ctx, checkpointIndexPrefix+instanceID, resource)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

func (c *CheckpointCache) DeleteAll(ctx context.Context, instanceID string) error {
	resources, err := c.client.SMembers(ctx, checkpointIndexPrefix+instanceID).Result()
	if err != nil {
		return fmt.Errorf("list instance checkpoints: %w", err)
	}

	pipe := c.client.Pipeline()
	for _, resource := range resources {
		pipe.Del(ctx, checkpointKey(instanceID, resource))
	}
	pipe.Del(ctx, checkpointIndexPrefix+instanceID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete instance checkpoints: %w", err)
	}
	return nil
}
