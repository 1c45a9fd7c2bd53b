package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncType distinguishes a full re-sync from an incremental delta sync
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

// JobStatus represents the lifecycle state of a sync job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusPaused    JobStatus = "paused"
)

// SyncJob represents one execution attempt of a sync for a connector
// instance. Jobs are created PENDING, mutated only by the coordinator
// goroutine driving them, and terminal once completed, failed or cancelled.
// PAUSED jobs can be resumed back to PENDING.
type SyncJob struct {
	ID             string   `json:"id"`
	InstanceID     string   `json:"instance_id"`
	OrganizationID string   `json:"organization_id"`
	SyncType       SyncType `json:"sync_type"`

	Status JobStatus `json:"status"`

	// Priority determines queue order (higher = more urgent)
	Priority int `json:"priority"`

	// Progress is a clamped 0-100 percentage. It never reports 100 until
	// the job is actually terminal, so observers cannot see a finished
	// percentage on a job that is still finalizing.
	Progress int `json:"progress"`

	EventsProcessed int    `json:"events_processed"`
	ErrorsCount     int    `json:"errors_count"`
	ErrorMessage    string `json:"error_message,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSyncJob creates a pending sync job for an instance
func NewSyncJob(instanceID, organizationID string, syncType SyncType, priority int) *SyncJob {
	now := time.Now()
	return &SyncJob{
		ID:             uuid.NewString(),
		InstanceID:     instanceID,
		OrganizationID: organizationID,
		SyncType:       syncType,
		Status:         JobStatusPending,
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsTerminal returns true once the job can no longer change state
func (j *SyncJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// CanResume returns true if the job may be re-enqueued
func (j *SyncJob) CanResume() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusPaused
}

// MarkRunning transitions the job to running
func (j *SyncJob) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// MarkCompleted transitions the job to completed and pins progress at 100
func (j *SyncJob) MarkCompleted(eventsProcessed int) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.EventsProcessed = eventsProcessed
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.ErrorMessage = ""
}

// MarkFailed transitions the job to failed with the given message
func (j *SyncJob) MarkFailed(msg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = msg
	j.ErrorsCount++
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// MarkCancelled transitions the job to cancelled
func (j *SyncJob) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// ResetForResume returns a failed or paused job to pending so the
// coordinator can re-enqueue it. Progress and counters carry over;
// checkpoints saved by the previous attempt remain valid resume points.
func (j *SyncJob) ResetForResume() {
	j.Status = JobStatusPending
	j.ErrorMessage = ""
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = time.Now()
}

// UpdateProgress records connector progress, clamped to [0, 99].
// 100 is reserved for MarkCompleted.
func (j *SyncJob) UpdateProgress(current, total int) {
	if total <= 0 {
		return
	}
	pct := current * 100 / total
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	j.Progress = pct
	j.EventsProcessed = current
	j.UpdatedAt = time.Now()
}
