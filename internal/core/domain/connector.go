package domain

import "time"

// ConnectorType identifies a supported external-system adapter
type ConnectorType string

const (
	ConnectorTypeGmail          ConnectorType = "gmail"
	ConnectorTypeOutlook        ConnectorType = "outlook"
	ConnectorTypeGoogleCalendar ConnectorType = "google_calendar"
	ConnectorTypeGoogleDrive    ConnectorType = "google_drive"
	ConnectorTypeSalesforce     ConnectorType = "salesforce"
	ConnectorTypeHubspot        ConnectorType = "hubspot"
	ConnectorTypeSAPB1          ConnectorType = "sap_b1"
)

// ConnectorInstance identifies one configured connection to an external
// system for one organization. Owned by the platform's configuration store;
// the sync engine references instances but never creates or deletes them.
type ConnectorInstance struct {
	ID             string        `json:"id"`
	ConnectorType  ConnectorType `json:"connector_type"`
	OrganizationID string        `json:"organization_id"`
	Name           string        `json:"name"`
	Enabled        bool          `json:"enabled"`
	HealthStatus   HealthStatus  `json:"health_status"`
	LastSyncAt     *time.Time    `json:"last_sync_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// SyncOptions configures a single connector sync invocation
type SyncOptions struct {
	// FullSync forces a complete re-fetch, ignoring saved checkpoints
	FullSync bool `json:"full_sync"`

	// DeltaToken is the provider-specific cursor to resume from.
	// Empty means the connector starts from its own baseline.
	DeltaToken string `json:"delta_token,omitempty"`

	// LookbackMonths bounds how far back a full sync reaches
	LookbackMonths int `json:"lookback_months,omitempty"`
}

// SyncOutcome is the structured result a connector returns from Sync.
// Success is the connector's own verdict: a connector may return
// Success=false with some events processed (partial failure).
type SyncOutcome struct {
	Success     bool   `json:"success"`
	EventsCount int    `json:"events_count"`
	DeltaToken  string `json:"delta_token,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidationResult reports the outcome of connector config validation
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ConnectionResult reports the outcome of a connection test
type ConnectionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
