package domain

import "time"

// HealthStatus is the qualitative reachability state of a connector
type HealthStatus string

const (
	HealthStatusConnected    HealthStatus = "connected"
	HealthStatusDegraded     HealthStatus = "degraded"
	HealthStatusDisconnected HealthStatus = "disconnected"
	HealthStatusError        HealthStatus = "error"
	HealthStatusUnknown      HealthStatus = "unknown"
)

// HealthCheckResult is the outcome of a single connector health probe
type HealthCheckResult struct {
	Healthy   bool         `json:"healthy"`
	Status    HealthStatus `json:"status"`
	LatencyMs int64        `json:"latency_ms"`
	Error     string       `json:"error,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
}

// ConnectorHealth is the rolling, in-memory-primary health record for one
// (connector type, instance) pair. The history window behind UptimePercent
// and AverageLatencyMs is process-local and lost on restart; the record is
// cached cross-process with a TTL for visibility only, never treated as a
// source of truth.
type ConnectorHealth struct {
	ConnectorType ConnectorType `json:"connector_type"`
	InstanceID    string        `json:"instance_id"`

	LastResult HealthCheckResult `json:"last_result"`

	// Streak counters: a success resets ConsecutiveFailures to zero and
	// vice versa. No partial decay.
	ConsecutiveFailures  int `json:"consecutive_failures"`
	ConsecutiveSuccesses int `json:"consecutive_successes"`

	// Window-derived metrics (healthy checks / total checks in window)
	UptimePercent    float64 `json:"uptime_percent"`
	AverageLatencyMs float64 `json:"average_latency_ms"`

	LastCheckedAt time.Time `json:"last_checked_at"`
}

// IsHealthy reports whether the last probe found the connector healthy
func (h *ConnectorHealth) IsHealthy() bool {
	return h.LastResult.Healthy
}

// HealthEventType classifies a health state transition
type HealthEventType string

const (
	// HealthEventRecovered fires when an unhealthy connector turns healthy
	HealthEventRecovered HealthEventType = "recovered"

	// HealthEventUnhealthy fires when a healthy connector turns unhealthy
	HealthEventUnhealthy HealthEventType = "unhealthy"

	// HealthEventDegraded fires when status enters degraded from non-degraded
	HealthEventDegraded HealthEventType = "degraded"

	// HealthEventHealthy fires on a steady-state healthy probe
	HealthEventHealthy HealthEventType = "healthy"

	// HealthEventCheckComplete fires for probes with no notable transition
	HealthEventCheckComplete HealthEventType = "check_complete"
)

// OverallStatus is the aggregated fleet-level health verdict
type OverallStatus string

const (
	OverallStatusHealthy  OverallStatus = "healthy"
	OverallStatusDegraded OverallStatus = "degraded"
	OverallStatusCritical OverallStatus = "critical"
)

// HealthSummary aggregates all monitored connectors
type HealthSummary struct {
	Total         int                  `json:"total"`
	ByStatus      map[HealthStatus]int `json:"by_status"`
	Unhealthy     int                  `json:"unhealthy"`
	OverallStatus OverallStatus        `json:"overall_status"`
	GeneratedAt   time.Time            `json:"generated_at"`
}
