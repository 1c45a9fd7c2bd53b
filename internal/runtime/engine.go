// Package runtime assembles the core services into a single engine
// instance. Callers construct an Engine once at startup and pass it
// (or the services it exposes) to whatever surface drives syncs; no
// package-level singletons are involved.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
	"github.com/custodia-labs/conduit-core/internal/core/services"
)

// EngineConfig holds the infrastructure dependencies and tuning knobs
// for an Engine. Stores and the registry are required; cache-tier and
// signal fields are optional.
type EngineConfig struct {
	JobStore      driven.SyncJobStore
	InstanceStore driven.InstanceStore
	EventStore    driven.EventStore
	Registry      driven.ConnectorRegistry
	Logger        *slog.Logger

	// CheckpointTiers are consulted fastest-first; the last durable
	// tier is the source of truth.
	CheckpointTiers []driven.CheckpointBackend

	// HealthCache mirrors health records cross-process (optional)
	HealthCache driven.HealthCache

	// OnHealthEvent receives health transition events (optional)
	OnHealthEvent func(services.HealthEvent)

	// OnBufferSignal receives buffer_full / flush_error signals (optional)
	OnBufferSignal func(services.BufferSignal)

	MaxConcurrentJobs int
	BatchSize         int
	FlushInterval     time.Duration
	ProbeTimeout      time.Duration
}

// Engine owns the sync coordinator, checkpoint service, event buffer,
// health monitor and recurring scheduler, wired together over the
// configured stores.
type Engine struct {
	logger *slog.Logger

	coordinator *services.Coordinator
	checkpoints *services.CheckpointService
	buffer      *services.EventBuffer
	health      *services.HealthMonitor
	scheduler   *services.RecurringScheduler
}

// NewEngine wires the core services together. The returned engine is
// inert until Start is called.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	checkpoints := services.NewCheckpointService(logger, cfg.CheckpointTiers...)

	buffer := services.NewEventBuffer(services.EventBufferConfig{
		Store:         cfg.EventStore,
		Logger:        logger,
		OnSignal:      cfg.OnBufferSignal,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	})

	health := services.NewHealthMonitor(services.HealthMonitorConfig{
		Registry:     cfg.Registry,
		Instances:    cfg.InstanceStore,
		Cache:        cfg.HealthCache,
		Ingest:       buffer,
		Logger:       logger,
		OnEvent:      cfg.OnHealthEvent,
		ProbeTimeout: cfg.ProbeTimeout,
	})

	coordinator := services.NewCoordinator(services.CoordinatorConfig{
		JobStore:          cfg.JobStore,
		InstanceStore:     cfg.InstanceStore,
		Registry:          cfg.Registry,
		Checkpoints:       checkpoints,
		Health:            health,
		Ingest:            buffer,
		Logger:            logger,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
	})

	scheduler := services.NewRecurringScheduler(coordinator, logger)

	return &Engine{
		logger:      logger,
		coordinator: coordinator,
		checkpoints: checkpoints,
		buffer:      buffer,
		health:      health,
		scheduler:   scheduler,
	}
}

// Start begins background processing: the buffer flush timer and the
// recurring schedule runner.
func (e *Engine) Start() {
	e.buffer.Start()
	e.scheduler.Start()
	e.logger.Info("engine started")
}

// Shutdown stops the scheduler and health probes, then drains the
// event buffer. Running sync jobs are not interrupted; cancel them
// individually via the sync service if needed.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.scheduler.Stop()
	e.health.Shutdown()

	if err := e.buffer.Shutdown(ctx); err != nil {
		e.logger.Error("event buffer shutdown", "error", err)
		return err
	}

	e.logger.Info("engine stopped")
	return nil
}

// Syncs returns the sync service surface.
func (e *Engine) Syncs() driving.SyncService { return e.coordinator }

// Health returns the health monitoring surface.
func (e *Engine) Health() driving.HealthService { return e.health }

// Ingest returns the event ingestion surface.
func (e *Engine) Ingest() driving.IngestService { return e.buffer }

// Checkpoints returns the tiered checkpoint service.
func (e *Engine) Checkpoints() *services.CheckpointService { return e.checkpoints }

// Scheduler returns the recurring sync scheduler.
func (e *Engine) Scheduler() *services.RecurringScheduler { return e.scheduler }
