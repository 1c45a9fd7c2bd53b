package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
)

// PrimaryResource is the checkpoint resource the coordinator itself
// maintains for an instance's top-level delta token. Connectors that track
// finer-grained resources (per-mailbox, per-calendar) talk to the
// checkpoint service directly under their own resource names.
const PrimaryResource = "delta"

// Verify interface compliance
var _ driving.SyncService = (*Coordinator)(nil)

// Coordinator is the single authority for "is a sync currently running for
// instance X". It queues job requests, bounds concurrency, drives each
// job's connector Sync call, persists progress and checkpoints, and
// reports completion.
//
// The queue and the active-job maps are the only mutable shared state and
// are touched only under mu. Launched executions are fire-and-forget: the
// drain loop never blocks on a job, and every terminal path re-triggers
// the drain exactly once from a defer so a crashing job cannot stall the
// queue.
type Coordinator struct {
	jobStore      driven.SyncJobStore
	instanceStore driven.InstanceStore
	registry      driven.ConnectorRegistry
	checkpoints   *CheckpointService
	health        driving.HealthService  // optional
	ingest        driving.IngestService  // optional
	logger        *slog.Logger

	maxConcurrent  int
	pollInterval   time.Duration
	healthInterval time.Duration

	mu               sync.Mutex
	queue            *jobQueue
	active           map[string]*activeJob // jobID -> execution
	activeByInstance map[string]string     // instanceID -> jobID
}

// activeJob tracks one in-flight execution
type activeJob struct {
	job    *domain.SyncJob
	cancel context.CancelFunc
}

// CoordinatorConfig holds dependencies for the Coordinator.
type CoordinatorConfig struct {
	JobStore      driven.SyncJobStore
	InstanceStore driven.InstanceStore
	Registry      driven.ConnectorRegistry
	Checkpoints   *CheckpointService
	Health        driving.HealthService // optional: job-duration monitoring
	Ingest        driving.IngestService // optional: rate-limit event capture
	Logger        *slog.Logger

	// MaxConcurrentJobs bounds simultaneously running jobs (default: 3)
	MaxConcurrentJobs int

	// PollInterval is how often StartSync re-checks job status (default: 250ms)
	PollInterval time.Duration

	// HealthInterval is the probe cadence while a job runs (default: 30s)
	HealthInterval time.Duration
}

// NewCoordinator creates a new sync coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxConcurrent := cfg.MaxConcurrentJobs
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}

	healthInterval := cfg.HealthInterval
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}

	return &Coordinator{
		jobStore:         cfg.JobStore,
		instanceStore:    cfg.InstanceStore,
		registry:         cfg.Registry,
		checkpoints:      cfg.Checkpoints,
		health:           cfg.Health,
		ingest:           cfg.Ingest,
		logger:           logger,
		maxConcurrent:    maxConcurrent,
		pollInterval:     pollInterval,
		healthInterval:   healthInterval,
		queue:            newJobQueue(),
		active:           make(map[string]*activeJob),
		activeByInstance: make(map[string]string),
	}
}

// ScheduleSync persists a pending job, enqueues it, and returns its ID
// immediately without waiting for execution.
func (c *Coordinator) ScheduleSync(ctx context.Context, req driving.ScheduleRequest) (string, error) {
	if req.InstanceID == "" {
		return "", fmt.Errorf("%w: instance_id is required", domain.ErrInvalidInput)
	}

	syncType := req.SyncType
	if syncType == "" {
		syncType = domain.SyncTypeIncremental
	}

	job := domain.NewSyncJob(req.InstanceID, req.OrganizationID, syncType, req.Priority)

	opts := req.Options
	if syncType == domain.SyncTypeFull {
		opts.FullSync = true
	}

	if err := c.jobStore.Save(ctx, job); err != nil {
		return "", fmt.Errorf("persist sync job: %w", err)
	}

	c.mu.Lock()
	c.queue.push(job, opts)
	c.mu.Unlock()

	c.logger.Info("sync scheduled",
		"job_id", job.ID,
		"instance_id", job.InstanceID,
		"sync_type", job.SyncType,
		"priority", job.Priority,
	)

	c.drain()
	return job.ID, nil
}

// StartSync schedules at high priority and polls until the job reaches a
// terminal state or the timeout elapses. On timeout the wait fails with
// domain.ErrJobTimeout; the underlying job keeps running and is not
// auto-cancelled.
func (c *Coordinator) StartSync(ctx context.Context, instanceID string, opts driving.StartOptions) (*domain.SyncJob, error) {
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}

	instance, err := c.instanceStore.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	jobID, err := c.ScheduleSync(ctx, driving.ScheduleRequest{
		InstanceID:     instanceID,
		OrganizationID: instance.OrganizationID,
		SyncType:       opts.SyncType,
		Priority:       100,
		Options:        opts.Options,
	})
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		job, err := c.GetSyncStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() {
			return job, nil
		}
		if time.Now().After(deadline) {
			return job, fmt.Errorf("%w: job %s after %s", domain.ErrJobTimeout, jobID, timeout)
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// ResumeSync re-enqueues a failed or paused job. The re-run always honors
// existing checkpoints (FullSync=false); without checkpoints it behaves
// identically to a fresh incremental run.
func (c *Coordinator) ResumeSync(ctx context.Context, jobID string) error {
	job, err := c.jobStore.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.CanResume() {
		return fmt.Errorf("%w: job %s is %s", domain.ErrJobNotResumable, jobID, job.Status)
	}

	job.ResetForResume()
	if err := c.jobStore.Save(ctx, job); err != nil {
		return fmt.Errorf("persist resumed job: %w", err)
	}

	c.mu.Lock()
	c.queue.push(job, domain.SyncOptions{FullSync: false})
	c.mu.Unlock()

	c.logger.Info("sync resumed", "job_id", job.ID, "instance_id", job.InstanceID)

	c.drain()
	return nil
}

// CancelSync cancels a queued or running job and always leaves it
// CANCELLED. For a running job cancellation is cooperative: the abort
// signal is observed by the connector between API calls, and the
// execution goroutine performs its own bookkeeping teardown when the
// connector returns. Partially written checkpoints remain valid resume
// points.
func (c *Coordinator) CancelSync(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if aj, ok := c.active[jobID]; ok {
		aj.job.MarkCancelled()
		job := *aj.job
		aj.cancel()
		c.mu.Unlock()

		if err := c.jobStore.Save(ctx, &job); err != nil {
			c.logger.Warn("failed to persist cancelled job", "job_id", jobID, "error", err)
		}
		c.logger.Info("sync cancellation signalled", "job_id", jobID)
		return nil
	}

	if qj := c.queue.remove(jobID); qj != nil {
		qj.job.MarkCancelled()
		job := *qj.job
		c.mu.Unlock()

		if err := c.jobStore.Save(ctx, &job); err != nil {
			return fmt.Errorf("persist cancelled job: %w", err)
		}
		c.logger.Info("queued sync cancelled", "job_id", jobID)
		return nil
	}
	c.mu.Unlock()

	job, err := c.jobStore.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: job %s is already %s", domain.ErrInvalidInput, jobID, job.Status)
	}

	job.MarkCancelled()
	return c.jobStore.Save(ctx, job)
}

// GetSyncStatus retrieves the current state of a job. Active jobs are
// answered from coordinator memory so callers see live progress.
func (c *Coordinator) GetSyncStatus(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	c.mu.Lock()
	if aj, ok := c.active[jobID]; ok {
		snapshot := *aj.job
		c.mu.Unlock()
		return &snapshot, nil
	}
	for _, qj := range c.queue.items {
		if qj.job.ID == jobID {
			snapshot := *qj.job
			c.mu.Unlock()
			return &snapshot, nil
		}
	}
	c.mu.Unlock()

	return c.jobStore.Get(ctx, jobID)
}

// GetActiveSyncs lists currently running jobs for an organization.
func (c *Coordinator) GetActiveSyncs(ctx context.Context, organizationID string) ([]*domain.SyncJob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	jobs := make([]*domain.SyncJob, 0, len(c.active))
	for _, aj := range c.active {
		if organizationID != "" && aj.job.OrganizationID != organizationID {
			continue
		}
		snapshot := *aj.job
		jobs = append(jobs, &snapshot)
	}
	return jobs, nil
}

// GetSyncHistory lists recent jobs for an instance, newest first.
func (c *Coordinator) GetSyncHistory(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error) {
	if limit <= 0 {
		limit = 20
	}
	return c.jobStore.ListByInstance(ctx, instanceID, limit)
}

// ActiveCount returns the number of in-flight jobs.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// QueuedCount returns the number of queued jobs.
func (c *Coordinator) QueuedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// drain is the single-flight queue processing loop: while the queue is
// non-empty and a concurrency slot is free, pop the head and launch its
// execution without awaiting it. Entries whose instance already has a
// running job are held back and re-queued, preserving their insertion
// order, so one busy instance cannot block others.
func (c *Coordinator) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var held []*queuedJob
	for c.queue.Len() > 0 && len(c.active) < c.maxConcurrent {
		qj := c.queue.pop()

		if _, busy := c.activeByInstance[qj.job.InstanceID]; busy {
			held = append(held, qj)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		c.active[qj.job.ID] = &activeJob{job: qj.job, cancel: cancel}
		c.activeByInstance[qj.job.InstanceID] = qj.job.ID

		go c.execute(ctx, qj)
	}

	// Held entries keep their original sequence numbers, so re-inserting
	// them preserves the stable ordering
	for _, qj := range held {
		c.queue.reinsert(qj)
	}
}

// execute drives one job to a terminal state.
func (c *Coordinator) execute(ctx context.Context, qj *queuedJob) {
	job := qj.job
	logger := c.logger.With("job_id", job.ID, "instance_id", job.InstanceID)

	defer func() {
		// Persist the terminal snapshot before dropping the job from the
		// active set, so status reads never fall back to a stale row. This
		// covers the fatal pre-sync exits too.
		snapshot := c.snapshot(job)
		if err := c.jobStore.Save(context.Background(), &snapshot); err != nil {
			logger.Error("failed to persist terminal job state", "error", err)
		}

		c.mu.Lock()
		delete(c.active, job.ID)
		delete(c.activeByInstance, job.InstanceID)
		c.mu.Unlock()

		c.drain()
	}()

	// Fetch the instance exactly once per execution
	instance, err := c.instanceStore.Get(ctx, job.InstanceID)
	if err != nil {
		c.finalize(job, func() { job.MarkFailed(fmt.Sprintf("load instance: %v", err)) })
		logger.Error("sync failed", "error", err)
		return
	}

	connector, err := c.registry.Resolve(instance)
	if err != nil {
		// Fatal configuration error, never retried
		c.finalize(job, func() { job.MarkFailed(err.Error()) })
		logger.Error("sync failed", "error", err)
		return
	}

	c.finalize(job, job.MarkRunning)
	running := c.snapshot(job)
	if err := c.jobStore.Save(context.Background(), &running); err != nil {
		logger.Warn("failed to persist job start", "error", err)
	}
	logger.Info("sync started", "connector_type", instance.ConnectorType)

	if c.health != nil {
		c.health.StartMonitoring(instance.ConnectorType, instance.ID, c.healthInterval)
		defer c.health.UnregisterConnector(instance.ConnectorType, instance.ID)
	}

	opts := c.resolveOptions(ctx, job, qj.opts)
	batchID := domain.NewBatchID()

	lastPct := -1
	callbacks := driven.SyncCallbacks{
		OnProgress: func(current, total int, stage string) {
			c.mu.Lock()
			job.UpdateProgress(current, total)
			pct := job.Progress
			snapshot := *job
			c.mu.Unlock()

			if pct != lastPct {
				lastPct = pct
				if err := c.jobStore.Save(context.Background(), &snapshot); err != nil {
					logger.Warn("failed to persist job progress", "error", err)
				}
			}
		},
		OnRateLimit: func(retryAfter time.Duration) {
			logger.Warn("connector rate limited", "retry_after", retryAfter)
			if c.ingest != nil {
				_ = c.ingest.IngestEvent(&domain.ConnectorEvent{
					ID:         domain.NewBatchID(),
					InstanceID: instance.ID,
					BatchID:    batchID,
					Kind:       domain.EventKindRateLimit,
					Status:     domain.EventStatusSkipped,
					DurationMs: retryAfter.Milliseconds(),
					OccurredAt: time.Now(),
				})
			}
		},
	}

	outcome, err := connector.Sync(ctx, opts, callbacks)

	switch {
	case c.isCancelled(job):
		// CancelSync already marked and persisted the job; nothing to overwrite
		logger.Info("sync cancelled")

	case err != nil && errors.Is(err, context.Canceled):
		c.finalize(job, job.MarkCancelled)
		logger.Info("sync cancelled")

	case err != nil:
		c.finalize(job, func() { job.MarkFailed(err.Error()) })
		logger.Error("sync failed", "error", err)

	case !outcome.Success:
		// A structured partial failure: already-ingested events and saved
		// checkpoints stay valid, so a resume only replays the remainder
		c.finalize(job, func() { job.MarkFailed(outcome.Error) })
		logger.Warn("sync reported failure",
			"events_count", outcome.EventsCount,
			"error", outcome.Error,
		)

	default:
		c.saveDeltaCheckpoint(instance.ID, outcome)
		c.finalize(job, func() { job.MarkCompleted(outcome.EventsCount) })

		if err := c.instanceStore.UpdateLastSync(context.Background(), instance.ID); err != nil {
			logger.Warn("failed to record last sync time", "error", err)
		}

		logger.Info("sync completed", "events_count", outcome.EventsCount)
	}
}

// resolveOptions merges the scheduled options with the saved delta
// checkpoint. A full sync ignores checkpoints; an incremental sync with no
// explicit delta token resumes from the primary checkpoint if one exists.
func (c *Coordinator) resolveOptions(ctx context.Context, job *domain.SyncJob, opts domain.SyncOptions) domain.SyncOptions {
	if opts.FullSync || opts.DeltaToken != "" || c.checkpoints == nil {
		return opts
	}

	cp, err := c.checkpoints.GetCheckpoint(ctx, job.InstanceID, PrimaryResource)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("failed to load checkpoint", "job_id", job.ID, "error", err)
		}
		return opts
	}

	opts.DeltaToken = cp.Cursor
	return opts
}

// saveDeltaCheckpoint persists the connector's returned delta token as the
// instance's primary checkpoint.
func (c *Coordinator) saveDeltaCheckpoint(instanceID string, outcome *domain.SyncOutcome) {
	if c.checkpoints == nil || outcome.DeltaToken == "" {
		return
	}

	ctx := context.Background()
	cp, err := c.checkpoints.GetCheckpoint(ctx, instanceID, PrimaryResource)
	if err != nil {
		cp = domain.NewCheckpoint(instanceID, PrimaryResource, outcome.DeltaToken)
	}
	cp.Cursor = outcome.DeltaToken
	cp.ProcessedCount += outcome.EventsCount

	if err := c.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		c.logger.Warn("failed to save delta checkpoint", "instance_id", instanceID, "error", err)
	}
}

// finalize applies a job mutation under the coordinator lock so status
// projections never observe a half-applied transition.
func (c *Coordinator) finalize(job *domain.SyncJob, mutate func()) {
	c.mu.Lock()
	mutate()
	c.mu.Unlock()
}

func (c *Coordinator) snapshot(job *domain.SyncJob) domain.SyncJob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *job
}

func (c *Coordinator) isCancelled(job *domain.SyncJob) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return job.Status == domain.JobStatusCancelled
}
