package driven

import (
	"context"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// CheckpointBackend is one tier of checkpoint storage. The checkpoint
// service holds an ordered list of backends (process-local map, shared
// cache, durable store) and iterates them top-down, backfilling faster
// tiers on a miss. The same structure works whether 1, 2, or 3 tiers
// are configured.
type CheckpointBackend interface {
	// Name identifies the tier in logs ("memory", "redis", "postgres")
	Name() string

	// Durable reports whether this tier is a source of truth. Saves to
	// non-durable tiers are best-effort; a save has not happened until
	// the durable tier accepted it.
	Durable() bool

	// Get retrieves the checkpoint for (instance, resource).
	// Returns domain.ErrNotFound on a miss.
	Get(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error)

	// Save writes the checkpoint as one atomic record, replacing any prior
	Save(ctx context.Context, checkpoint *domain.SyncCheckpoint) error

	// Delete removes the checkpoint for one resource.
	// Deleting an absent checkpoint is not an error.
	Delete(ctx context.Context, instanceID, resource string) error

	// DeleteAll removes every checkpoint for an instance
	DeleteAll(ctx context.Context, instanceID string) error
}
