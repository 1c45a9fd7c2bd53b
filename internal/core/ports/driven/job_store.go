package driven

import (
	"context"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// SyncJobStore handles sync job persistence (PostgreSQL)
type SyncJobStore interface {
	// Save creates or updates a sync job row
	Save(ctx context.Context, job *domain.SyncJob) error

	// Get retrieves a job by ID. Returns domain.ErrJobNotFound if absent.
	Get(ctx context.Context, jobID string) (*domain.SyncJob, error)

	// ListByInstance retrieves the most recent jobs for an instance,
	// newest first, up to limit
	ListByInstance(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error)

	// ListByOrganization retrieves the most recent jobs for an organization,
	// newest first, up to limit
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*domain.SyncJob, error)
}

// InstanceStore is the read side of the platform's connector instance
// configuration. The sync engine references instances but never owns them;
// the only writes allowed here are sync-derived bookkeeping fields.
type InstanceStore interface {
	// Get retrieves an instance by ID. Returns domain.ErrInstanceNotFound if absent.
	Get(ctx context.Context, instanceID string) (*domain.ConnectorInstance, error)

	// ListByOrganization retrieves all instances for an organization
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.ConnectorInstance, error)

	// UpdateLastSync records the completion time of the latest successful sync
	UpdateLastSync(ctx context.Context, instanceID string) error

	// UpdateHealthStatus records the latest advisory health status
	UpdateHealthStatus(ctx context.Context, instanceID string, status domain.HealthStatus) error
}
