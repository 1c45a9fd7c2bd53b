package domain

import "time"

// Well-known metadata keys used by the typed checkpoint helpers.
// Connectors may store any additional provider-specific keys.
const (
	MetaHistoryID = "history_id" // Gmail history API position
	MetaDeltaLink = "delta_link" // Microsoft Graph @odata.deltaLink
	MetaSyncToken = "sync_token" // Google Calendar sync token
	MetaPageToken = "page_token" // generic pagination resume token
)

// SyncCheckpoint is a durable cursor scoped to (instance, resource),
// e.g. "gmail:user@x.com" or "drive:changes". It is overwritten as one
// atomic record on every save, never appended, and read at the start of
// every incremental sync to resume.
type SyncCheckpoint struct {
	InstanceID string `json:"instance_id"`

	// Resource names the sub-stream this cursor tracks within the instance
	Resource string `json:"resource"`

	// Cursor is an opaque resumption token owned by the connector
	Cursor string `json:"cursor"`

	// Metadata carries provider-specific tokens (history IDs, delta links)
	Metadata map[string]string `json:"metadata,omitempty"`

	// ProcessedCount is the cumulative number of items processed for the resource
	ProcessedCount int `json:"processed_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewCheckpoint creates a checkpoint for a resource with the given cursor
func NewCheckpoint(instanceID, resource, cursor string) *SyncCheckpoint {
	return &SyncCheckpoint{
		InstanceID: instanceID,
		Resource:   resource,
		Cursor:     cursor,
		Metadata:   map[string]string{},
		UpdatedAt:  time.Now(),
	}
}

// Meta returns a metadata value, or empty string if absent
func (c *SyncCheckpoint) Meta(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// SetMeta sets a metadata value, allocating the bag if needed
func (c *SyncCheckpoint) SetMeta(key, value string) {
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	c.Metadata[key] = value
}

// Clone returns a deep copy so tier backfills never share the metadata map
func (c *SyncCheckpoint) Clone() *SyncCheckpoint {
	cp := *c
	if c.Metadata != nil {
		cp.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
