package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// EventStore persists connector events (PostgreSQL).
type EventStore interface {
	// InsertBatch writes a batch of events atomically: the implementation
	// groups events by kind, performs one multi-row insert per kind, and
	// wraps all inserts in a single transaction so the batch is
	// all-or-nothing.
	InsertBatch(ctx context.Context, events []*domain.ConnectorEvent) error

	// ListByBatch retrieves all events for one sync execution, in insert order
	ListByBatch(ctx context.Context, batchID string) ([]*domain.ConnectorEvent, error)

	// Ping checks if the store backend is healthy
	Ping(ctx context.Context) error
}

// HealthCache persists the latest ConnectorHealth record per connector with
// a TTL, for cross-process visibility (Redis). Advisory only: the rolling
// history window behind the record is process-local.
type HealthCache interface {
	// Save stores the record with the given TTL, replacing any prior
	Save(ctx context.Context, health *domain.ConnectorHealth, ttl time.Duration) error

	// Get retrieves the cached record.
	// Returns domain.ErrNotFound if absent or expired.
	Get(ctx context.Context, connectorType domain.ConnectorType, instanceID string) (*domain.ConnectorHealth, error)
}
