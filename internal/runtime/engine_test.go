package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/conduit-core/internal/adapters/driven/connectors"
	"github.com/custodia-labs/conduit-core/internal/adapters/driven/memory"
	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
	"github.com/custodia-labs/conduit-core/internal/core/services"
)

func newTestEngine(t *testing.T) (*Engine, *mocks.MockEventStore, *mocks.MockSyncJobStore) {
	t.Helper()

	jobs := mocks.NewMockSyncJobStore()
	instances := mocks.NewMockInstanceStore()
	events := mocks.NewMockEventStore()
	registry := connectors.NewRegistry()

	instances.Add(&domain.ConnectorInstance{
		ID:             "inst-1",
		ConnectorType:  domain.ConnectorTypeGmail,
		OrganizationID: "org-1",
	})
	registry.Register(domain.ConnectorTypeGmail, func(*domain.ConnectorInstance) (driven.Connector, error) {
		conn := mocks.NewMockConnector()
		conn.SyncFn = func(ctx context.Context, opts domain.SyncOptions, cb driven.SyncCallbacks) (*domain.SyncOutcome, error) {
			return &domain.SyncOutcome{Success: true, EventsCount: 3, DeltaToken: "tok"}, nil
		}
		return conn, nil
	})

	engine := NewEngine(EngineConfig{
		JobStore:        jobs,
		InstanceStore:   instances,
		EventStore:      events,
		Registry:        registry,
		CheckpointTiers: []driven.CheckpointBackend{memory.NewCheckpointMap()},
		HealthCache:     mocks.NewMockHealthCache(),
	})
	return engine, events, jobs
}

func TestNewEngineWiresServices(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	assert.NotNil(t, engine.Syncs())
	assert.NotNil(t, engine.Health())
	assert.NotNil(t, engine.Ingest())
	assert.NotNil(t, engine.Checkpoints())
	assert.NotNil(t, engine.Scheduler())
}

func TestEngineEndToEndSync(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.Start()
	defer engine.Shutdown(context.Background())

	job, err := engine.Syncs().StartSync(context.Background(), "inst-1", driving.StartOptions{
		JobTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.EventsProcessed)

	cp, err := engine.Checkpoints().GetCheckpoint(context.Background(), "inst-1", services.PrimaryResource)
	require.NoError(t, err)
	assert.Equal(t, "tok", cp.Cursor)
}

func TestEngineShutdownDrainsBuffer(t *testing.T) {
	engine, events, _ := newTestEngine(t)
	engine.Start()

	err := engine.Ingest().IngestEvent(domain.NewConnectorEvent(
		"inst-1", domain.NewBatchID(), "email", "msg-1",
		domain.EventActionCreated, domain.EventStatusSuccess,
	))
	require.NoError(t, err)

	require.NoError(t, engine.Shutdown(context.Background()))

	batches := events.Batches()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)

	// Buffer rejects ingestion after shutdown
	err = engine.Ingest().IngestEvent(domain.NewConnectorEvent(
		"inst-1", domain.NewBatchID(), "email", "msg-2",
		domain.EventActionCreated, domain.EventStatusSuccess,
	))
	assert.ErrorIs(t, err, domain.ErrBufferClosed)
}

func TestEngineSchedulerFeedsCoordinator(t *testing.T) {
	engine, _, jobs := newTestEngine(t)
	engine.Start()
	defer engine.Shutdown(context.Background())

	require.NoError(t, engine.Scheduler().Add(services.Schedule{
		InstanceID:     "inst-1",
		OrganizationID: "org-1",
		CronSpec:       "@hourly",
	}))
	assert.Equal(t, 1, engine.Scheduler().Count())

	// The cron entry exists; a direct schedule through the same service
	// confirms the wiring end to end without waiting for the hour to turn
	jobID, err := engine.Syncs().ScheduleSync(context.Background(), driving.ScheduleRequest{
		InstanceID:     "inst-1",
		OrganizationID: "org-1",
	})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for {
		job, err := jobs.Get(context.Background(), jobID)
		if err == nil && job.IsTerminal() {
			assert.Equal(t, domain.JobStatusCompleted, job.Status)
			break
		}
		require.True(t, time.Now().Before(deadline), "job never finished")
		time.Sleep(5 * time.Millisecond)
	}
}
