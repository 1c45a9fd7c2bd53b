package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.HealthService = (*HealthMonitor)(nil)

// HealthEvent is a typed health state transition notification
type HealthEvent struct {
	Type          domain.HealthEventType
	ConnectorType domain.ConnectorType
	InstanceID    string
	Result        domain.HealthCheckResult
	Health        domain.ConnectorHealth
}

// monitored is the per-connector probe loop state
type monitored struct {
	connectorType domain.ConnectorType
	instanceID    string
	health        *domain.ConnectorHealth
	history       []domain.HealthCheckResult
	stopCh        chan struct{}
}

// HealthMonitor maintains a hysteresis-smoothed view of each registered
// connector's reachability, independent of sync execution. Probes run on a
// per-connector interval with a hard timeout; a probe that exceeds the
// timeout is treated as a failed check, never left pending.
//
// The rolling history window is process-local and lost on restart. The
// latest record is cached with a TTL for cross-process visibility, but is
// advisory monitoring data, never a source of truth.
type HealthMonitor struct {
	registry  driven.ConnectorRegistry
	instances driven.InstanceStore
	cache     driven.HealthCache    // optional
	ingest    driving.IngestService // optional
	logger    *slog.Logger
	onEvent   func(HealthEvent)

	probeTimeout time.Duration
	retention    time.Duration
	cacheTTL     time.Duration
	maxHistory   int

	// limiter paces probes across all monitored connectors so a large
	// fleet cannot stampede the providers
	limiter *rate.Limiter

	mu        sync.RWMutex
	connected map[string]*monitored
}

// HealthMonitorConfig holds configuration for the HealthMonitor.
type HealthMonitorConfig struct {
	Registry  driven.ConnectorRegistry
	Instances driven.InstanceStore
	Cache     driven.HealthCache    // optional: cross-process record cache
	Ingest    driving.IngestService // optional: health events to the buffer
	Logger    *slog.Logger

	// OnEvent receives typed transition events (optional)
	OnEvent func(HealthEvent)

	// ProbeTimeout is the hard per-probe deadline (default: 10s)
	ProbeTimeout time.Duration

	// Retention bounds the history window by age (default: 24h)
	Retention time.Duration

	// CacheTTL is the TTL for cached records (default: 5m)
	CacheTTL time.Duration

	// MaxHistory bounds the history window by length (default: 100)
	MaxHistory int

	// ProbesPerSecond paces probes fleet-wide (default: 5/s, burst 10)
	ProbesPerSecond float64
}

// NewHealthMonitor creates a new health monitor.
func NewHealthMonitor(cfg HealthMonitorConfig) *HealthMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = 10 * time.Second
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = 100
	}

	probesPerSecond := cfg.ProbesPerSecond
	if probesPerSecond <= 0 {
		probesPerSecond = 5
	}
	burst := int(probesPerSecond) * 2
	if burst < 1 {
		burst = 1
	}

	return &HealthMonitor{
		registry:     cfg.Registry,
		instances:    cfg.Instances,
		cache:        cfg.Cache,
		ingest:       cfg.Ingest,
		logger:       logger,
		onEvent:      cfg.OnEvent,
		probeTimeout: probeTimeout,
		retention:    retention,
		cacheTTL:     cacheTTL,
		maxHistory:   maxHistory,
		limiter:      rate.NewLimiter(rate.Limit(probesPerSecond), burst),
		connected:    make(map[string]*monitored),
	}
}

func healthKey(connectorType domain.ConnectorType, instanceID string) string {
	return string(connectorType) + ":" + instanceID
}

// StartMonitoring begins periodic probing of a connector, replacing any
// prior timer for the same (type, instance). The first probe runs
// immediately, then on each interval.
func (m *HealthMonitor) StartMonitoring(connectorType domain.ConnectorType, instanceID string, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	key := healthKey(connectorType, instanceID)

	m.mu.Lock()
	if prior, ok := m.connected[key]; ok {
		close(prior.stopCh)
	}
	mon := &monitored{
		connectorType: connectorType,
		instanceID:    instanceID,
		health: &domain.ConnectorHealth{
			ConnectorType: connectorType,
			InstanceID:    instanceID,
			LastResult:    domain.HealthCheckResult{Status: domain.HealthStatusUnknown},
		},
		stopCh: make(chan struct{}),
	}
	m.connected[key] = mon
	m.mu.Unlock()

	m.logger.Info("health monitoring started",
		"connector_type", connectorType,
		"instance_id", instanceID,
		"interval", interval,
	)

	go m.probeLoop(mon, interval)
}

func (m *HealthMonitor) probeLoop(mon *monitored, interval time.Duration) {
	ctx := context.Background()

	if _, err := m.CheckHealth(ctx, mon.connectorType, mon.instanceID); err != nil {
		m.logger.Warn("health probe failed", "instance_id", mon.instanceID, "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-mon.stopCh:
			return
		case <-ticker.C:
			if _, err := m.CheckHealth(ctx, mon.connectorType, mon.instanceID); err != nil {
				m.logger.Warn("health probe failed", "instance_id", mon.instanceID, "error", err)
			}
		}
	}
}

// UnregisterConnector stops the probe timer and drops the connector from
// the active map. The last cached record is left in place for historical
// queries.
func (m *HealthMonitor) UnregisterConnector(connectorType domain.ConnectorType, instanceID string) {
	key := healthKey(connectorType, instanceID)

	m.mu.Lock()
	mon, ok := m.connected[key]
	if ok {
		close(mon.stopCh)
		delete(m.connected, key)
	}
	m.mu.Unlock()

	if ok {
		m.logger.Info("health monitoring stopped",
			"connector_type", connectorType,
			"instance_id", instanceID,
		)
	}
}

// CheckHealth runs one probe now, updates counters and the windowed
// metrics, and emits a typed transition event. Probe failures are never
// fatal to anything beyond the reported status.
func (m *HealthMonitor) CheckHealth(ctx context.Context, connectorType domain.ConnectorType, instanceID string) (*domain.HealthCheckResult, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result := m.probe(ctx, instanceID)
	event := m.record(connectorType, instanceID, result)

	if m.cache != nil {
		m.mu.RLock()
		mon, ok := m.connected[healthKey(connectorType, instanceID)]
		var snapshot domain.ConnectorHealth
		if ok {
			snapshot = *mon.health
		}
		m.mu.RUnlock()
		if ok {
			if err := m.cache.Save(ctx, &snapshot, m.cacheTTL); err != nil {
				m.logger.Warn("health cache write failed", "instance_id", instanceID, "error", err)
			}
		}
	}

	if m.ingest != nil {
		status := domain.EventStatusSuccess
		if !result.Healthy {
			status = domain.EventStatusFailed
		}
		_ = m.ingest.IngestEvent(&domain.ConnectorEvent{
			ID:           domain.NewBatchID(),
			InstanceID:   instanceID,
			Kind:         domain.EventKindHealth,
			ResourceType: string(connectorType),
			Status:       status,
			DurationMs:   result.LatencyMs,
			Metadata:     map[string]string{"health_status": string(result.Status)},
			OccurredAt:   result.CheckedAt,
		})
	}

	if event != nil && m.onEvent != nil {
		m.onEvent(*event)
	}

	return &result, nil
}

// probe runs the connector's own health check under the hard timeout.
func (m *HealthMonitor) probe(ctx context.Context, instanceID string) domain.HealthCheckResult {
	started := time.Now()

	fail := func(format string, args ...any) domain.HealthCheckResult {
		return domain.HealthCheckResult{
			Healthy:   false,
			Status:    domain.HealthStatusError,
			LatencyMs: time.Since(started).Milliseconds(),
			Error:     fmt.Sprintf(format, args...),
			CheckedAt: time.Now(),
		}
	}

	instance, err := m.instances.Get(ctx, instanceID)
	if err != nil {
		return fail("load instance: %v", err)
	}

	connector, err := m.registry.Resolve(instance)
	if err != nil {
		return fail("%v", err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	// The probe goroutine may outlive the timeout if the connector ignores
	// ctx; the check itself is still reported failed on time.
	done := make(chan domain.HealthCheckResult, 1)
	go func() {
		done <- connector.HealthCheck(probeCtx)
	}()

	select {
	case result := <-done:
		if result.CheckedAt.IsZero() {
			result.CheckedAt = time.Now()
		}
		if result.LatencyMs == 0 {
			result.LatencyMs = time.Since(started).Milliseconds()
		}
		return result
	case <-probeCtx.Done():
		return fail("health check timed out after %s", m.probeTimeout)
	}
}

// record folds a probe result into the rolling record and classifies the
// transition. Returns nil if the connector is no longer monitored.
func (m *HealthMonitor) record(connectorType domain.ConnectorType, instanceID string, result domain.HealthCheckResult) *HealthEvent {
	key := healthKey(connectorType, instanceID)

	m.mu.Lock()
	defer m.mu.Unlock()

	mon, ok := m.connected[key]
	if !ok {
		// One-shot CheckHealth for an unmonitored connector still works;
		// it just has no rolling record to update
		return &HealthEvent{
			Type:          domain.HealthEventCheckComplete,
			ConnectorType: connectorType,
			InstanceID:    instanceID,
			Result:        result,
		}
	}

	prev := mon.health.LastResult
	hadPrev := prev.Status != domain.HealthStatusUnknown

	if result.Healthy {
		mon.health.ConsecutiveSuccesses++
		mon.health.ConsecutiveFailures = 0
	} else {
		mon.health.ConsecutiveFailures++
		mon.health.ConsecutiveSuccesses = 0
	}
	mon.health.LastResult = result
	mon.health.LastCheckedAt = result.CheckedAt

	// Append and prune the window: by age on every write, then by length
	mon.history = append(mon.history, result)
	cutoff := time.Now().Add(-m.retention)
	start := 0
	for start < len(mon.history) && mon.history[start].CheckedAt.Before(cutoff) {
		start++
	}
	mon.history = mon.history[start:]
	if len(mon.history) > m.maxHistory {
		mon.history = mon.history[len(mon.history)-m.maxHistory:]
	}

	healthy := 0
	var latencySum int64
	for _, r := range mon.history {
		if r.Healthy {
			healthy++
		}
		latencySum += r.LatencyMs
	}
	mon.health.UptimePercent = float64(healthy) / float64(len(mon.history)) * 100
	mon.health.AverageLatencyMs = float64(latencySum) / float64(len(mon.history))

	eventType := domain.HealthEventCheckComplete
	switch {
	case hadPrev && !prev.Healthy && result.Healthy:
		eventType = domain.HealthEventRecovered
	case !result.Healthy && (!hadPrev || prev.Healthy):
		// An unhealthy first probe or a healthy-to-unhealthy flip
		eventType = domain.HealthEventUnhealthy
	case result.Status == domain.HealthStatusDegraded && prev.Status != domain.HealthStatusDegraded:
		eventType = domain.HealthEventDegraded
	case result.Healthy:
		eventType = domain.HealthEventHealthy
	}

	return &HealthEvent{
		Type:          eventType,
		ConnectorType: connectorType,
		InstanceID:    instanceID,
		Result:        result,
		Health:        *mon.health,
	}
}

// GetHealth returns the rolling record for one monitored connector.
func (m *HealthMonitor) GetHealth(connectorType domain.ConnectorType, instanceID string) (*domain.ConnectorHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mon, ok := m.connected[healthKey(connectorType, instanceID)]
	if !ok {
		return nil, domain.ErrNotMonitored
	}
	snapshot := *mon.health
	return &snapshot, nil
}

// GetHealthSummary aggregates all monitored connectors into counts per
// status and an overall verdict: critical when more than half are
// unhealthy or disconnected, degraded when any connector is unhealthy,
// disconnected or degraded, healthy otherwise.
func (m *HealthMonitor) GetHealthSummary() *domain.HealthSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &domain.HealthSummary{
		ByStatus:      make(map[domain.HealthStatus]int),
		OverallStatus: domain.OverallStatusHealthy,
		GeneratedAt:   time.Now(),
	}

	degraded := 0
	for _, mon := range m.connected {
		summary.Total++
		status := mon.health.LastResult.Status
		summary.ByStatus[status]++

		switch status {
		case domain.HealthStatusDisconnected, domain.HealthStatusError:
			summary.Unhealthy++
		case domain.HealthStatusDegraded:
			degraded++
		default:
			if !mon.health.LastResult.Healthy && status != domain.HealthStatusUnknown {
				summary.Unhealthy++
			}
		}
	}

	if summary.Total == 0 {
		return summary
	}

	switch {
	case summary.Unhealthy*2 > summary.Total:
		summary.OverallStatus = domain.OverallStatusCritical
	case summary.Unhealthy > 0 || degraded > 0:
		summary.OverallStatus = domain.OverallStatusDegraded
	}

	return summary
}

// Shutdown stops every probe timer.
func (m *HealthMonitor) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, mon := range m.connected {
		close(mon.stopCh)
		delete(m.connected, key)
	}
}
