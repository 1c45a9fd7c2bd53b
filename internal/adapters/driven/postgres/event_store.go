package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EventStore = (*EventStore)(nil)

// EventStore implements driven.EventStore using PostgreSQL. A batch is
// grouped by event kind, written as one multi-row insert per kind, and
// wrapped in a single transaction so the batch is all-or-nothing.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new EventStore
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// InsertBatch writes a batch of events atomically
func (s *EventStore) InsertBatch(ctx context.Context, events []*domain.ConnectorEvent) error {
	if len(events) == 0 {
		return nil
	}

	grouped := make(map[domain.EventKind][]*domain.ConnectorEvent)
	for _, ev := range events {
		kind := ev.Kind
		if kind == "" {
			kind = domain.EventKindConnector
		}
		grouped[kind] = append(grouped[kind], ev)
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		for kind, group := range grouped {
			if err := insertKind(ctx, tx, kind, group); err != nil {
				return fmt.Errorf("insert %s events: %w", kind, err)
			}
		}
		return nil
	})
}

func insertKind(ctx context.Context, tx *sql.Tx, kind domain.EventKind, events []*domain.ConnectorEvent) error {
	switch kind {
	case domain.EventKindConnector:
		return insertRows(ctx, tx, events, `INSERT INTO connector_events
			(id, instance_id, batch_id, resource_type, resource_id, action, status, duration_ms, metadata, occurred_at)`,
			10, func(ev *domain.ConnectorEvent, metadata []byte) []any {
				return []any{ev.ID, ev.InstanceID, ev.BatchID, ev.ResourceType, ev.ResourceID,
					string(ev.Action), string(ev.Status), ev.DurationMs, metadata, ev.OccurredAt}
			})
	case domain.EventKindRateLimit:
		return insertRows(ctx, tx, events, `INSERT INTO rate_limit_events
			(id, instance_id, batch_id, duration_ms, metadata, occurred_at)`,
			6, func(ev *domain.ConnectorEvent, metadata []byte) []any {
				return []any{ev.ID, ev.InstanceID, ev.BatchID, ev.DurationMs, metadata, ev.OccurredAt}
			})
	case domain.EventKindHealth:
		return insertRows(ctx, tx, events, `INSERT INTO health_events
			(id, instance_id, resource_type, status, duration_ms, metadata, occurred_at)`,
			7, func(ev *domain.ConnectorEvent, metadata []byte) []any {
				return []any{ev.ID, ev.InstanceID, ev.ResourceType, string(ev.Status),
					ev.DurationMs, metadata, ev.OccurredAt}
			})
	default:
		return fmt.Errorf("unknown event kind: %s", kind)
	}
}

// insertRows builds one multi-row INSERT for a kind's events
func insertRows(
	ctx context.Context,
	tx *sql.Tx,
	events []*domain.ConnectorEvent,
	insertClause string,
	cols int,
	bind func(ev *domain.ConnectorEvent, metadata []byte) []any,
) error {
	placeholders := make([]string, 0, len(events))
	args := make([]any, 0, len(events)*cols)

	for i, ev := range events {
		var metadata []byte
		if len(ev.Metadata) > 0 {
			var err error
			metadata, err = json.Marshal(ev.Metadata)
			if err != nil {
				return fmt.Errorf("marshal event metadata: %w", err)
			}
		}

		row := make([]string, cols)
		for c := 0; c < cols; c++ {
			row[c] = fmt.Sprintf("$%d", i*cols+c+1)
		}
		placeholders = append(placeholders, "("+strings.Join(row, ", ")+")")
		args = append(args, bind(ev, metadata)...)
	}

	query := insertClause + " VALUES " + strings.Join(placeholders, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ListByBatch retrieves all connector events for one sync execution
func (s *EventStore) ListByBatch(ctx context.Context, batchID string) ([]*domain.ConnectorEvent, error) {
	query := `
		SELECT id, instance_id, batch_id, resource_type, resource_id, action, status, duration_ms, metadata, occurred_at
		FROM connector_events
		WHERE batch_id = $1
		ORDER BY occurred_at
	`

	rows, err := s.db.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.ConnectorEvent
	for rows.Next() {
		var ev domain.ConnectorEvent
		var metadata []byte

		err := rows.Scan(
			&ev.ID,
			&ev.InstanceID,
			&ev.BatchID,
			&ev.ResourceType,
			&ev.ResourceID,
			&ev.Action,
			&ev.Status,
			&ev.DurationMs,
			&metadata,
			&ev.OccurredAt,
		)
		if err != nil {
			return nil, err
		}

		ev.Kind = domain.EventKindConnector
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &ev.Metadata); err != nil {
				return nil, err
			}
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// Ping checks if the store backend is healthy
func (s *EventStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
