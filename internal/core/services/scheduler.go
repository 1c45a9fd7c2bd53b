package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
)

// Schedule is one recurring sync configuration for an instance
type Schedule struct {
	InstanceID     string          `json:"instance_id"`
	OrganizationID string          `json:"organization_id"`
	CronSpec       string          `json:"cron_spec"`
	SyncType       domain.SyncType `json:"sync_type"`
	Priority       int             `json:"priority"`
}

// RecurringScheduler enqueues sync jobs on cron schedules, one entry per
// instance. It only feeds the coordinator's queue; the coordinator's
// per-instance exclusivity means an overlapping fire simply waits behind
// the already-running job.
type RecurringScheduler struct {
	syncs  driving.SyncService
	logger *slog.Logger
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID // instanceID -> entry
}

// NewRecurringScheduler creates a scheduler feeding the given sync service.
func NewRecurringScheduler(syncs driving.SyncService, logger *slog.Logger) *RecurringScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecurringScheduler{
		syncs:   syncs,
		logger:  logger,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Add registers (or replaces) the recurring schedule for an instance.
func (s *RecurringScheduler) Add(schedule Schedule) error {
	if schedule.InstanceID == "" {
		return fmt.Errorf("%w: instance_id is required", domain.ErrInvalidInput)
	}
	if schedule.SyncType == "" {
		schedule.SyncType = domain.SyncTypeIncremental
	}

	id, err := s.cron.AddFunc(schedule.CronSpec, func() {
		s.fire(schedule)
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", schedule.CronSpec, err)
	}

	s.mu.Lock()
	if prior, ok := s.entries[schedule.InstanceID]; ok {
		s.cron.Remove(prior)
	}
	s.entries[schedule.InstanceID] = id
	s.mu.Unlock()

	s.logger.Info("recurring sync scheduled",
		"instance_id", schedule.InstanceID,
		"cron", schedule.CronSpec,
		"sync_type", schedule.SyncType,
	)
	return nil
}

// Remove drops the recurring schedule for an instance, if any.
func (s *RecurringScheduler) Remove(instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[instanceID]; ok {
		s.cron.Remove(id)
		delete(s.entries, instanceID)
		s.logger.Info("recurring sync removed", "instance_id", instanceID)
	}
}

// Count returns the number of active schedules.
func (s *RecurringScheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins firing schedules.
func (s *RecurringScheduler) Start() {
	s.cron.Start()
	s.logger.Info("recurring scheduler started")
}

// Stop stops firing schedules and waits for in-flight fires to return.
func (s *RecurringScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("recurring scheduler stopped")
}

func (s *RecurringScheduler) fire(schedule Schedule) {
	jobID, err := s.syncs.ScheduleSync(context.Background(), driving.ScheduleRequest{
		InstanceID:     schedule.InstanceID,
		OrganizationID: schedule.OrganizationID,
		SyncType:       schedule.SyncType,
		Priority:       schedule.Priority,
	})
	if err != nil {
		s.logger.Error("failed to enqueue recurring sync",
			"instance_id", schedule.InstanceID,
			"error", err,
		)
		return
	}

	s.logger.Info("recurring sync enqueued",
		"instance_id", schedule.InstanceID,
		"job_id", jobID,
	)
}
