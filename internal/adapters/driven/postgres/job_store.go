package postgres

import (
	"context"
	"database/sql"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncJobStore = (*SyncJobStore)(nil)

// SyncJobStore implements driven.SyncJobStore using PostgreSQL
type SyncJobStore struct {
	db *DB
}

// NewSyncJobStore creates a new SyncJobStore
func NewSyncJobStore(db *DB) *SyncJobStore {
	return &SyncJobStore{db: db}
}

const jobColumns = `id, instance_id, organization_id, sync_type, status, priority,
	progress, events_processed, errors_count, error_message,
	created_at, updated_at, started_at, completed_at`

// Save creates or updates a sync job row
func (s *SyncJobStore) Save(ctx context.Context, job *domain.SyncJob) error {
	query := `
		INSERT INTO sync_jobs (id, instance_id, organization_id, sync_type, status, priority,
			progress, events_processed, errors_count, error_message,
			created_at, updated_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			progress = EXCLUDED.progress,
			events_processed = EXCLUDED.events_processed,
			errors_count = EXCLUDED.errors_count,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.InstanceID,
		job.OrganizationID,
		string(job.SyncType),
		string(job.Status),
		job.Priority,
		job.Progress,
		job.EventsProcessed,
		job.ErrorsCount,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
		NullTime(job.StartedAt),
		NullTime(job.CompletedAt),
	)
	return err
}

// Get retrieves a job by ID
func (s *SyncJobStore) Get(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + ` FROM sync_jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListByInstance retrieves the most recent jobs for an instance
func (s *SyncJobStore) ListByInstance(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE instance_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return s.list(ctx, query, instanceID, limit)
}

// ListByOrganization retrieves the most recent jobs for an organization
func (s *SyncJobStore) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*domain.SyncJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM sync_jobs
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return s.list(ctx, query, organizationID, limit)
}

func (s *SyncJobStore) list(ctx context.Context, query string, key string, limit int) ([]*domain.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.SyncJob, error) {
	var job domain.SyncJob
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.InstanceID,
		&job.OrganizationID,
		&job.SyncType,
		&job.Status,
		&job.Priority,
		&job.Progress,
		&job.EventsProcessed,
		&job.ErrorsCount,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.StartedAt = TimePtr(startedAt)
	job.CompletedAt = TimePtr(completedAt)
	return &job, nil
}
