package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind groups events by their storage table
type EventKind string

const (
	// EventKindConnector is a discrete fact about one synced resource
	EventKindConnector EventKind = "connector"

	// EventKindRateLimit records a provider rate-limit encounter
	EventKindRateLimit EventKind = "rate_limit"

	// EventKindHealth records a health probe outcome
	EventKindHealth EventKind = "health"
)

// EventAction is what happened to the external resource
type EventAction string

const (
	EventActionCreated EventAction = "created"
	EventActionUpdated EventAction = "updated"
	EventActionDeleted EventAction = "deleted"
)

// EventStatus is the processing outcome for one event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
	EventStatusSkipped EventStatus = "skipped"
)

// ConnectorEvent is one discrete fact emitted during a sync. Events are
// ephemeral until flushed by the ingestion buffer and append-only once
// persisted. BatchID groups all events from one sync execution so they
// can be correlated or rolled back together later.
type ConnectorEvent struct {
	ID           string            `json:"id"`
	InstanceID   string            `json:"instance_id"`
	BatchID      string            `json:"batch_id"`
	Kind         EventKind         `json:"kind"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	Action       EventAction       `json:"action"`
	Status       EventStatus       `json:"status"`
	DurationMs   int64             `json:"duration_ms"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// NewConnectorEvent creates a connector-kind event with a fresh ID
func NewConnectorEvent(instanceID, batchID, resourceType, resourceID string, action EventAction, status EventStatus) *ConnectorEvent {
	return &ConnectorEvent{
		ID:           uuid.NewString(),
		InstanceID:   instanceID,
		BatchID:      batchID,
		Kind:         EventKindConnector,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Status:       status,
		OccurredAt:   time.Now(),
	}
}

// NewBatchID returns a fresh batch correlation ID for one sync execution
func NewBatchID() string {
	return uuid.NewString()
}
