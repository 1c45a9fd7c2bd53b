package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driving"
)

// stubSyncService records ScheduleSync calls
type stubSyncService struct {
	mu       sync.Mutex
	requests []driving.ScheduleRequest
	err      error
}

func (s *stubSyncService) ScheduleSync(ctx context.Context, req driving.ScheduleRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.requests = append(s.requests, req)
	return "job-1", nil
}

func (s *stubSyncService) StartSync(ctx context.Context, instanceID string, opts driving.StartOptions) (*domain.SyncJob, error) {
	return nil, errors.New("not implemented")
}
func (s *stubSyncService) ResumeSync(ctx context.Context, jobID string) error  { return nil }
func (s *stubSyncService) CancelSync(ctx context.Context, jobID string) error  { return nil }
func (s *stubSyncService) GetSyncStatus(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	return nil, domain.ErrJobNotFound
}
func (s *stubSyncService) GetActiveSyncs(ctx context.Context, organizationID string) ([]*domain.SyncJob, error) {
	return nil, nil
}
func (s *stubSyncService) GetSyncHistory(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error) {
	return nil, nil
}

func (s *stubSyncService) scheduled() []driving.ScheduleRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]driving.ScheduleRequest(nil), s.requests...)
}

func TestSchedulerAddValidation(t *testing.T) {
	syncs := &stubSyncService{}
	scheduler := NewRecurringScheduler(syncs, nil)

	if err := scheduler.Add(Schedule{CronSpec: "0 * * * *"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing instance, got %v", err)
	}

	if err := scheduler.Add(Schedule{InstanceID: "inst-1", CronSpec: "not a cron"}); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}

	if err := scheduler.Add(Schedule{InstanceID: "inst-1", CronSpec: "0 * * * *"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if scheduler.Count() != 1 {
		t.Errorf("expected 1 schedule, got %d", scheduler.Count())
	}
}

func TestSchedulerReplaceAndRemove(t *testing.T) {
	syncs := &stubSyncService{}
	scheduler := NewRecurringScheduler(syncs, nil)

	if err := scheduler.Add(Schedule{InstanceID: "inst-1", CronSpec: "0 * * * *"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Re-adding the same instance replaces, not duplicates
	if err := scheduler.Add(Schedule{InstanceID: "inst-1", CronSpec: "30 * * * *"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if scheduler.Count() != 1 {
		t.Errorf("expected 1 schedule after replace, got %d", scheduler.Count())
	}

	scheduler.Remove("inst-1")
	if scheduler.Count() != 0 {
		t.Errorf("expected 0 schedules after remove, got %d", scheduler.Count())
	}

	// Removing an unknown instance is a no-op
	scheduler.Remove("missing")
}

func TestSchedulerFireEnqueuesSync(t *testing.T) {
	syncs := &stubSyncService{}
	scheduler := NewRecurringScheduler(syncs, nil)

	scheduler.fire(Schedule{
		InstanceID:     "inst-1",
		OrganizationID: "org-1",
		SyncType:       domain.SyncTypeIncremental,
		Priority:       5,
	})

	requests := syncs.scheduled()
	if len(requests) != 1 {
		t.Fatalf("expected 1 scheduled sync, got %d", len(requests))
	}
	req := requests[0]
	if req.InstanceID != "inst-1" || req.OrganizationID != "org-1" {
		t.Errorf("unexpected request %+v", req)
	}
	if req.SyncType != domain.SyncTypeIncremental || req.Priority != 5 {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestSchedulerFireSwallowsErrors(t *testing.T) {
	syncs := &stubSyncService{err: errors.New("queue down")}
	scheduler := NewRecurringScheduler(syncs, nil)

	// Must not panic; the failure is logged and the next fire retries
	scheduler.fire(Schedule{InstanceID: "inst-1"})

	if len(syncs.scheduled()) != 0 {
		t.Error("expected no recorded requests on failure")
	}
}

func TestSchedulerStartStop(t *testing.T) {
	syncs := &stubSyncService{}
	scheduler := NewRecurringScheduler(syncs, nil)

	if err := scheduler.Add(Schedule{InstanceID: "inst-1", CronSpec: "@hourly"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	scheduler.Start()
	scheduler.Stop()
}
