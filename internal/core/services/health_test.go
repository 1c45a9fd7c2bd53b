package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/conduit-core/internal/adapters/driven/connectors"
	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven/mocks"
)

// probeSwitch flips a mock connector between healthy and unhealthy probes
type probeSwitch struct {
	mu      sync.Mutex
	healthy bool
	latency int64
}

func (p *probeSwitch) set(healthy bool) {
	p.mu.Lock()
	p.healthy = healthy
	p.mu.Unlock()
}

func (p *probeSwitch) check(ctx context.Context) domain.HealthCheckResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.healthy {
		return domain.HealthCheckResult{
			Healthy:   true,
			Status:    domain.HealthStatusConnected,
			LatencyMs: p.latency,
			CheckedAt: time.Now(),
		}
	}
	return domain.HealthCheckResult{
		Healthy:   false,
		Status:    domain.HealthStatusError,
		LatencyMs: p.latency,
		Error:     "boom",
		CheckedAt: time.Now(),
	}
}

type healthFixture struct {
	monitor *HealthMonitor
	probe   *probeSwitch
	cache   *mocks.MockHealthCache

	eventMu sync.Mutex
	events  []HealthEvent
}

func newHealthFixture(t *testing.T) *healthFixture {
	t.Helper()

	f := &healthFixture{
		probe: &probeSwitch{healthy: true, latency: 100},
		cache: mocks.NewMockHealthCache(),
	}

	instances := mocks.NewMockInstanceStore()
	instances.Add(&domain.ConnectorInstance{
		ID:             "inst-1",
		ConnectorType:  domain.ConnectorTypeGmail,
		OrganizationID: "org-1",
	})

	conn := mocks.NewMockConnector()
	conn.HealthCheckFn = f.probe.check

	registry := connectors.NewRegistry()
	registry.Register(domain.ConnectorTypeGmail, func(*domain.ConnectorInstance) (driven.Connector, error) {
		return conn, nil
	})

	f.monitor = NewHealthMonitor(HealthMonitorConfig{
		Registry:        registry,
		Instances:       instances,
		Cache:           f.cache,
		ProbesPerSecond: 1000,
		OnEvent: func(ev HealthEvent) {
			f.eventMu.Lock()
			f.events = append(f.events, ev)
			f.eventMu.Unlock()
		},
	})
	t.Cleanup(f.monitor.Shutdown)
	return f
}

// startAndWait begins monitoring with a long interval and waits for the
// immediate first probe to land.
func (f *healthFixture) startAndWait(t *testing.T) {
	t.Helper()
	f.monitor.StartMonitoring(domain.ConnectorTypeGmail, "inst-1", time.Hour)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h, err := f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1")
		if err == nil && h.LastResult.Status != domain.HealthStatusUnknown {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("first probe never recorded")
}

func (f *healthFixture) check(t *testing.T) *domain.HealthCheckResult {
	t.Helper()
	result, err := f.monitor.CheckHealth(context.Background(), domain.ConnectorTypeGmail, "inst-1")
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	return result
}

func (f *healthFixture) eventTypes() []domain.HealthEventType {
	f.eventMu.Lock()
	defer f.eventMu.Unlock()
	types := make([]domain.HealthEventType, len(f.events))
	for i, ev := range f.events {
		types[i] = ev.Type
	}
	return types
}

func TestHysteresisCounters(t *testing.T) {
	f := newHealthFixture(t)
	f.startAndWait(t)

	h, _ := f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1")
	if h.ConsecutiveSuccesses != 1 || h.ConsecutiveFailures != 0 {
		t.Errorf("after first healthy probe: successes=%d failures=%d", h.ConsecutiveSuccesses, h.ConsecutiveFailures)
	}

	f.probe.set(false)
	for i := 0; i < 3; i++ {
		f.check(t)
	}
	h, _ = f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1")
	if h.ConsecutiveFailures != 3 {
		t.Errorf("expected 3 consecutive failures, got %d", h.ConsecutiveFailures)
	}
	if h.ConsecutiveSuccesses != 0 {
		t.Errorf("expected successes reset to 0, got %d", h.ConsecutiveSuccesses)
	}

	// One success fully resets the failure streak, no partial decay
	f.probe.set(true)
	f.check(t)
	h, _ = f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1")
	if h.ConsecutiveFailures != 0 || h.ConsecutiveSuccesses != 1 {
		t.Errorf("after recovery: successes=%d failures=%d", h.ConsecutiveSuccesses, h.ConsecutiveFailures)
	}
}

func TestWindowedUptimeAndLatency(t *testing.T) {
	f := newHealthFixture(t)
	f.startAndWait(t)

	// First probe was healthy; two more healthy, one failing = 4 checks
	f.check(t)
	f.check(t)
	f.probe.set(false)
	f.check(t)

	h, _ := f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1")
	if h.UptimePercent != 75 {
		t.Errorf("expected uptime 75%%, got %v", h.UptimePercent)
	}
	if h.AverageLatencyMs != 100 {
		t.Errorf("expected average latency 100ms, got %v", h.AverageLatencyMs)
	}
}

func TestTransitionEvents(t *testing.T) {
	f := newHealthFixture(t)
	f.startAndWait(t)

	f.probe.set(false)
	f.check(t) // healthy -> unhealthy
	f.check(t) // steady unhealthy
	f.probe.set(true)
	f.check(t) // unhealthy -> healthy

	want := []domain.HealthEventType{
		domain.HealthEventHealthy,
		domain.HealthEventUnhealthy,
		domain.HealthEventCheckComplete,
		domain.HealthEventRecovered,
	}
	got := f.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestFirstProbeUnhealthyEmitsUnhealthy(t *testing.T) {
	f := newHealthFixture(t)
	f.probe.set(false)
	f.startAndWait(t)

	got := f.eventTypes()
	if len(got) == 0 || got[0] != domain.HealthEventUnhealthy {
		t.Errorf("expected unhealthy event on failing first probe, got %v", got)
	}
}

func TestHealthRecordCached(t *testing.T) {
	f := newHealthFixture(t)
	f.startAndWait(t)

	cached, err := f.cache.Get(context.Background(), domain.ConnectorTypeGmail, "inst-1")
	if err != nil {
		t.Fatalf("expected cached record: %v", err)
	}
	if !cached.IsHealthy() {
		t.Error("expected healthy cached record")
	}
}

func TestUnregisterConnector(t *testing.T) {
	f := newHealthFixture(t)
	f.startAndWait(t)

	f.monitor.UnregisterConnector(domain.ConnectorTypeGmail, "inst-1")

	if _, err := f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1"); !errors.Is(err, domain.ErrNotMonitored) {
		t.Fatalf("expected ErrNotMonitored, got %v", err)
	}

	// The cached record survives unregistration for historical queries
	if _, err := f.cache.Get(context.Background(), domain.ConnectorTypeGmail, "inst-1"); err != nil {
		t.Errorf("expected cached record to remain: %v", err)
	}
}

func TestCheckHealthUnmonitored(t *testing.T) {
	f := newHealthFixture(t)

	// A one-shot check works without StartMonitoring
	result := f.check(t)
	if !result.Healthy {
		t.Error("expected healthy result")
	}

	if _, err := f.monitor.GetHealth(domain.ConnectorTypeGmail, "inst-1"); !errors.Is(err, domain.ErrNotMonitored) {
		t.Fatalf("expected ErrNotMonitored, got %v", err)
	}
}

func TestProbeTimeout(t *testing.T) {
	instances := mocks.NewMockInstanceStore()
	instances.Add(&domain.ConnectorInstance{ID: "inst-1", ConnectorType: domain.ConnectorTypeGmail})

	conn := mocks.NewMockConnector()
	conn.HealthCheckFn = func(ctx context.Context) domain.HealthCheckResult {
		<-ctx.Done()
		return domain.HealthCheckResult{Healthy: true, Status: domain.HealthStatusConnected}
	}

	registry := connectors.NewRegistry()
	registry.Register(domain.ConnectorTypeGmail, func(*domain.ConnectorInstance) (driven.Connector, error) {
		return conn, nil
	})

	monitor := NewHealthMonitor(HealthMonitorConfig{
		Registry:        registry,
		Instances:       instances,
		ProbeTimeout:    30 * time.Millisecond,
		ProbesPerSecond: 1000,
	})
	defer monitor.Shutdown()

	result, err := monitor.CheckHealth(context.Background(), domain.ConnectorTypeGmail, "inst-1")
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if result.Healthy {
		t.Error("expected timed-out probe reported unhealthy")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("expected timeout error, got %q", result.Error)
	}
}

func TestHealthSummary(t *testing.T) {
	instances := mocks.NewMockInstanceStore()
	probes := map[string]*probeSwitch{}
	registry := connectors.NewRegistry()
	registry.Register(domain.ConnectorTypeGmail, func(instance *domain.ConnectorInstance) (driven.Connector, error) {
		conn := mocks.NewMockConnector()
		probe := probes[instance.ID]
		conn.HealthCheckFn = probe.check
		return conn, nil
	})

	for _, id := range []string{"inst-1", "inst-2"} {
		instances.Add(&domain.ConnectorInstance{ID: id, ConnectorType: domain.ConnectorTypeGmail})
		probes[id] = &probeSwitch{healthy: true}
	}

	monitor := NewHealthMonitor(HealthMonitorConfig{
		Registry:        registry,
		Instances:       instances,
		ProbesPerSecond: 1000,
	})
	defer monitor.Shutdown()

	// Nothing monitored yet
	summary := monitor.GetHealthSummary()
	if summary.Total != 0 || summary.OverallStatus != domain.OverallStatusHealthy {
		t.Errorf("expected empty healthy summary, got %+v", summary)
	}

	for _, id := range []string{"inst-1", "inst-2"} {
		monitor.StartMonitoring(domain.ConnectorTypeGmail, id, time.Hour)
	}
	waitFor(t, func() bool {
		s := monitor.GetHealthSummary()
		return s.ByStatus[domain.HealthStatusConnected] == 2
	}, "initial probes never recorded")

	summary = monitor.GetHealthSummary()
	if summary.OverallStatus != domain.OverallStatusHealthy {
		t.Errorf("expected healthy fleet, got %s", summary.OverallStatus)
	}

	// One of two unhealthy: degraded, not critical (not a majority)
	probes["inst-2"].set(false)
	if _, err := monitor.CheckHealth(context.Background(), domain.ConnectorTypeGmail, "inst-2"); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	summary = monitor.GetHealthSummary()
	if summary.Unhealthy != 1 {
		t.Errorf("expected 1 unhealthy, got %d", summary.Unhealthy)
	}
	if summary.OverallStatus != domain.OverallStatusDegraded {
		t.Errorf("expected degraded, got %s", summary.OverallStatus)
	}

	// Both unhealthy: a majority, so critical
	probes["inst-1"].set(false)
	if _, err := monitor.CheckHealth(context.Background(), domain.ConnectorTypeGmail, "inst-1"); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	summary = monitor.GetHealthSummary()
	if summary.OverallStatus != domain.OverallStatusCritical {
		t.Errorf("expected critical, got %s", summary.OverallStatus)
	}
}

func TestHealthEventsIngested(t *testing.T) {
	store := mocks.NewMockEventStore()
	buffer := NewEventBuffer(EventBufferConfig{Store: store, BatchSize: 1000})

	instances := mocks.NewMockInstanceStore()
	instances.Add(&domain.ConnectorInstance{ID: "inst-1", ConnectorType: domain.ConnectorTypeGmail})

	registry := connectors.NewRegistry()
	registry.Register(domain.ConnectorTypeGmail, func(*domain.ConnectorInstance) (driven.Connector, error) {
		return mocks.NewMockConnector(), nil
	})

	monitor := NewHealthMonitor(HealthMonitorConfig{
		Registry:        registry,
		Instances:       instances,
		Ingest:          buffer,
		ProbesPerSecond: 1000,
	})
	defer monitor.Shutdown()

	if _, err := monitor.CheckHealth(context.Background(), domain.ConnectorTypeGmail, "inst-1"); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}

	if buffer.Len() != 1 {
		t.Fatalf("expected 1 buffered health event, got %d", buffer.Len())
	}
}
