package postgres

import (
	"context"
	"database/sql"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.InstanceStore = (*InstanceStore)(nil)

// InstanceStore implements driven.InstanceStore using PostgreSQL. The
// engine only reads instance configuration and writes back sync-derived
// bookkeeping (last sync time, advisory health status).
type InstanceStore struct {
	db *DB
}

// NewInstanceStore creates a new InstanceStore
func NewInstanceStore(db *DB) *InstanceStore {
	return &InstanceStore{db: db}
}

const instanceColumns = `id, connector_type, organization_id, name, enabled,
	health_status, last_sync_at, created_at, updated_at`

// Get retrieves an instance by ID
func (s *InstanceStore) Get(ctx context.Context, instanceID string) (*domain.ConnectorInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM connector_instances WHERE id = $1`

	instance, err := scanInstance(s.db.QueryRowContext(ctx, query, instanceID))
	if err == sql.ErrNoRows {
		return nil, domain.ErrInstanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// ListByOrganization retrieves all instances for an organization
func (s *InstanceStore) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.ConnectorInstance, error) {
	query := `SELECT ` + instanceColumns + `
		FROM connector_instances
		WHERE organization_id = $1
		ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*domain.ConnectorInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, instance)
	}
	return instances, rows.Err()
}

// UpdateLastSync records the completion time of the latest successful sync
func (s *InstanceStore) UpdateLastSync(ctx context.Context, instanceID string) error {
	query := `UPDATE connector_instances SET last_sync_at = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, instanceID)
	return err
}

// UpdateHealthStatus records the latest advisory health status
func (s *InstanceStore) UpdateHealthStatus(ctx context.Context, instanceID string, status domain.HealthStatus) error {
	query := `UPDATE connector_instances SET health_status = $2, updated_at = NOW() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, instanceID, string(status))
	return err
}

func scanInstance(row scanner) (*domain.ConnectorInstance, error) {
	var instance domain.ConnectorInstance
	var lastSyncAt sql.NullTime

	err := row.Scan(
		&instance.ID,
		&instance.ConnectorType,
		&instance.OrganizationID,
		&instance.Name,
		&instance.Enabled,
		&instance.HealthStatus,
		&lastSyncAt,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	instance.LastSyncAt = TimePtr(lastSyncAt)
	return &instance, nil
}
