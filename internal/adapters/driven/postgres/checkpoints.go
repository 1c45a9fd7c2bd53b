package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CheckpointBackend = (*CheckpointStore)(nil)

// CheckpointStore is the durable checkpoint tier and the source of truth.
// Each save replaces the whole (instance, resource) row, so a checkpoint
// is never partially written. When a TokenCipher is configured, the
// metadata bag is sealed before it reaches the table.
type CheckpointStore struct {
	db     *DB
	cipher *TokenCipher // optional: nil stores metadata as plain JSON
}

// NewCheckpointStore creates a new CheckpointStore. The cipher may be nil.
func NewCheckpointStore(db *DB, cipher *TokenCipher) *CheckpointStore {
	return &CheckpointStore{db: db, cipher: cipher}
}

func (s *CheckpointStore) Name() string  { return "postgres" }
func (s *CheckpointStore) Durable() bool { return true }

func (s *CheckpointStore) Get(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error) {
	query := `
		SELECT instance_id, resource, cursor, metadata, processed_count, updated_at
		FROM sync_checkpoints
		WHERE instance_id = $1 AND resource = $2
	`

	var cp domain.SyncCheckpoint
	var metadata []byte

	err := s.db.QueryRowContext(ctx, query, instanceID, resource).Scan(
		&cp.InstanceID,
		&cp.Resource,
		&cp.Cursor,
		&metadata,
		&cp.ProcessedCount,
		&cp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cp.Metadata, err = s.openMetadata(metadata)
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CheckpointStore) Save(ctx context.Context, cp *domain.SyncCheckpoint) error {
	metadata, err := s.sealMetadata(cp.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sync_checkpoints (instance_id, resource, cursor, metadata, processed_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_id, resource) DO UPDATE SET
			cursor = EXCLUDED.cursor,
			metadata = EXCLUDED.metadata,
			processed_count = EXCLUDED.processed_count,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		cp.InstanceID,
		cp.Resource,
		cp.Cursor,
		metadata,
		cp.ProcessedCount,
		cp.UpdatedAt,
	)
	return err
}

func (s *CheckpointStore) Delete(ctx context.Context, instanceID, resource string) error {
	query := `DELETE FROM sync_checkpoints WHERE instance_id = $1 AND resource = $2`
	_, err := s.db.ExecContext(ctx, query, instanceID, resource)
	return err
}

func (s *CheckpointStore) DeleteAll(ctx context.Context, instanceID string) error {
	query := `DELETE FROM sync_checkpoints WHERE instance_id = $1`
	_, err := s.db.ExecContext(ctx, query, instanceID)
	return err
}

func (s *CheckpointStore) sealMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	if s.cipher != nil {
		return s.cipher.Seal(metadata)
	}
	return json.Marshal(metadata)
}

func (s *CheckpointStore) openMetadata(blob []byte) (map[string]string, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if s.cipher != nil {
		return s.cipher.Open(blob)
	}
	var metadata map[string]string
	if err := json.Unmarshal(blob, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
