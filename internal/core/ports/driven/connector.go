package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// SyncCallbacks carries the callback stream a connector drives during Sync.
// OnProgress is required; OnRateLimit is optional and may be nil.
type SyncCallbacks struct {
	// OnProgress reports items processed so far out of an estimated total,
	// plus a human-readable stage ("messages", "attachments", ...).
	OnProgress func(current, total int, stage string)

	// OnRateLimit reports that the provider asked the connector to back off
	OnRateLimit func(retryAfter time.Duration)
}

// Connector is the capability every external-system adapter implements.
// The engine consumes connectors uniformly; wire-protocol details (Gmail
// history API, Graph delta queries, SAP B1 sessions) live entirely behind
// this interface.
//
// Cancellation is cooperative: a well-behaved connector observes ctx
// between API calls. The engine cannot interrupt a connector mid-call.
type Connector interface {
	// Type returns the connector type this adapter implements
	Type() domain.ConnectorType

	// ValidateConfig validates the instance configuration
	ValidateConfig() domain.ValidationResult

	// TestConnection verifies the external system is reachable
	TestConnection(ctx context.Context) domain.ConnectionResult

	// HealthCheck probes the external system and reports qualitative status
	HealthCheck(ctx context.Context) domain.HealthCheckResult

	// Sync pulls changes from the external system. The returned outcome's
	// Success flag is authoritative: a connector may return Success=false
	// with some events processed (partial failure), which the coordinator
	// treats the same as a returned error at the job-status level.
	Sync(ctx context.Context, opts domain.SyncOptions, cb SyncCallbacks) (*domain.SyncOutcome, error)

	// RequiredScopes lists the OAuth scopes the adapter needs
	RequiredScopes() []string
}

// ConnectorFactory builds a connector bound to one instance's configuration
type ConnectorFactory func(instance *domain.ConnectorInstance) (Connector, error)

// ConnectorRegistry resolves connector implementations by type.
// Factories are registered once at startup; resolving an unregistered type
// returns domain.ErrConnectorNotRegistered, which is fatal for the job.
type ConnectorRegistry interface {
	// Register registers a factory for a connector type, replacing any prior
	Register(connectorType domain.ConnectorType, factory ConnectorFactory)

	// Resolve builds a connector for the given instance
	Resolve(instance *domain.ConnectorInstance) (Connector, error)

	// SupportedTypes returns all registered connector types
	SupportedTypes() []domain.ConnectorType
}
