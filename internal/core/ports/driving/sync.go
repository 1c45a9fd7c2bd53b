package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// ScheduleRequest describes a sync job to enqueue
type ScheduleRequest struct {
	InstanceID     string          `json:"instance_id"`
	OrganizationID string          `json:"organization_id"`
	SyncType       domain.SyncType `json:"sync_type"`

	// Priority orders the queue (higher first). Equal priorities are
	// serviced in insertion order.
	Priority int `json:"priority"`

	// Options are passed through to the connector's Sync call
	Options domain.SyncOptions `json:"options"`
}

// StartOptions configures the blocking StartSync convenience wrapper
type StartOptions struct {
	SyncType domain.SyncType
	Options  domain.SyncOptions

	// JobTimeout bounds how long the caller waits for a terminal state.
	// On expiry the wait fails with domain.ErrJobTimeout; the job itself
	// keeps running and is not cancelled.
	JobTimeout time.Duration
}

// SyncService is the job scheduling API consumed by the business layer.
// No failure mode crosses this boundary as a panic: all errors resolve to
// a terminal job state plus queryable history.
type SyncService interface {
	// ScheduleSync persists a pending job, enqueues it, and returns its ID
	// immediately without waiting for execution
	ScheduleSync(ctx context.Context, req ScheduleRequest) (string, error)

	// StartSync schedules at high priority and polls until the job reaches
	// a terminal state or the timeout elapses
	StartSync(ctx context.Context, instanceID string, opts StartOptions) (*domain.SyncJob, error)

	// ResumeSync re-enqueues a failed or paused job with FullSync=false so
	// existing checkpoints are honored
	ResumeSync(ctx context.Context, jobID string) error

	// CancelSync cancels a queued or running job. Cancellation of a running
	// job is cooperative: the connector observes it between API calls.
	CancelSync(ctx context.Context, jobID string) error

	// GetSyncStatus retrieves the current state of a job
	GetSyncStatus(ctx context.Context, jobID string) (*domain.SyncJob, error)

	// GetActiveSyncs lists currently running jobs for an organization
	GetActiveSyncs(ctx context.Context, organizationID string) ([]*domain.SyncJob, error)

	// GetSyncHistory lists recent jobs for an instance, newest first
	GetSyncHistory(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error)
}
