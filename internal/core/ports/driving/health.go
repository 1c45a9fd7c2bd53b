package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// HealthService maintains a hysteresis-smoothed view of connector
// reachability, independent of sync execution.
type HealthService interface {
	// StartMonitoring begins (or restarts, replacing any prior timer)
	// periodic probing of a connector. The first probe runs immediately.
	StartMonitoring(connectorType domain.ConnectorType, instanceID string, interval time.Duration)

	// UnregisterConnector stops the timer and drops the connector from the
	// active map. The last cached record remains for historical queries.
	UnregisterConnector(connectorType domain.ConnectorType, instanceID string)

	// CheckHealth runs one probe now and returns its result
	CheckHealth(ctx context.Context, connectorType domain.ConnectorType, instanceID string) (*domain.HealthCheckResult, error)

	// GetHealth returns the rolling record for one connector
	GetHealth(connectorType domain.ConnectorType, instanceID string) (*domain.ConnectorHealth, error)

	// GetHealthSummary aggregates all monitored connectors
	GetHealthSummary() *domain.HealthSummary
}

// IngestService accepts connector events for buffered batch persistence.
// Ingestion is synchronous and never blocks on I/O.
type IngestService interface {
	IngestEvent(event *domain.ConnectorEvent) error
	IngestEvents(events []*domain.ConnectorEvent) error
}
