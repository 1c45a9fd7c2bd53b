package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// MockSyncJobStore is an in-memory SyncJobStore for testing
type MockSyncJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*domain.SyncJob

	// SaveErr, if set, is returned by Save
	SaveErr error
}

// NewMockSyncJobStore creates a new MockSyncJobStore
func NewMockSyncJobStore() *MockSyncJobStore {
	return &MockSyncJobStore{jobs: make(map[string]*domain.SyncJob)}
}

func (m *MockSyncJobStore) Save(ctx context.Context, job *domain.SyncJob) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *job
	m.jobs[job.ID] = &snapshot
	return nil
}

func (m *MockSyncJobStore) Get(ctx context.Context, jobID string) (*domain.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	snapshot := *job
	return &snapshot, nil
}

func (m *MockSyncJobStore) ListByInstance(ctx context.Context, instanceID string, limit int) ([]*domain.SyncJob, error) {
	return m.list(func(j *domain.SyncJob) bool { return j.InstanceID == instanceID }, limit)
}

func (m *MockSyncJobStore) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]*domain.SyncJob, error) {
	return m.list(func(j *domain.SyncJob) bool { return j.OrganizationID == organizationID }, limit)
}

func (m *MockSyncJobStore) list(match func(*domain.SyncJob) bool, limit int) ([]*domain.SyncJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []*domain.SyncJob
	for _, job := range m.jobs {
		if match(job) {
			snapshot := *job
			jobs = append(jobs, &snapshot)
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// MockInstanceStore is an in-memory InstanceStore for testing
type MockInstanceStore struct {
	mu        sync.RWMutex
	instances map[string]*domain.ConnectorInstance

	// GetErr, if set, is returned by Get
	GetErr error
}

// NewMockInstanceStore creates a new MockInstanceStore
func NewMockInstanceStore() *MockInstanceStore {
	return &MockInstanceStore{instances: make(map[string]*domain.ConnectorInstance)}
}

// Add seeds an instance
func (m *MockInstanceStore) Add(instance *domain.ConnectorInstance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[instance.ID] = instance
}

func (m *MockInstanceStore) Get(ctx context.Context, instanceID string) (*domain.ConnectorInstance, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	instance, ok := m.instances[instanceID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	snapshot := *instance
	return &snapshot, nil
}

func (m *MockInstanceStore) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.ConnectorInstance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var instances []*domain.ConnectorInstance
	for _, instance := range m.instances {
		if instance.OrganizationID == organizationID {
			snapshot := *instance
			instances = append(instances, &snapshot)
		}
	}
	return instances, nil
}

func (m *MockInstanceStore) UpdateLastSync(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, ok := m.instances[instanceID]; ok {
		now := time.Now()
		instance.LastSyncAt = &now
	}
	return nil
}

func (m *MockInstanceStore) UpdateHealthStatus(ctx context.Context, instanceID string, status domain.HealthStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance, ok := m.instances[instanceID]; ok {
		instance.HealthStatus = status
	}
	return nil
}

// MockEventStore records batches handed to InsertBatch
type MockEventStore struct {
	mu      sync.Mutex
	batches [][]*domain.ConnectorEvent

	// InsertErrFn, if set, is consulted per InsertBatch call
	InsertErrFn func(events []*domain.ConnectorEvent) error

	// Gate, if set, is received from before each insert completes,
	// letting tests hold a flush open
	Gate chan struct{}
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{}
}

func (m *MockEventStore) InsertBatch(ctx context.Context, events []*domain.ConnectorEvent) error {
	if m.Gate != nil {
		<-m.Gate
	}
	if m.InsertErrFn != nil {
		if err := m.InsertErrFn(events); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]*domain.ConnectorEvent, len(events))
	copy(batch, events)
	m.batches = append(m.batches, batch)
	return nil
}

func (m *MockEventStore) ListByBatch(ctx context.Context, batchID string) ([]*domain.ConnectorEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*domain.ConnectorEvent
	for _, batch := range m.batches {
		for _, ev := range batch {
			if ev.BatchID == batchID {
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

func (m *MockEventStore) Ping(ctx context.Context) error { return nil }

// Batches returns a copy of all recorded batches
func (m *MockEventStore) Batches() [][]*domain.ConnectorEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := make([][]*domain.ConnectorEvent, len(m.batches))
	copy(batches, m.batches)
	return batches
}

// MockHealthCache is an in-memory HealthCache for testing
type MockHealthCache struct {
	mu      sync.RWMutex
	records map[string]*domain.ConnectorHealth
}

// NewMockHealthCache creates a new MockHealthCache
func NewMockHealthCache() *MockHealthCache {
	return &MockHealthCache{records: make(map[string]*domain.ConnectorHealth)}
}

func (m *MockHealthCache) Save(ctx context.Context, health *domain.ConnectorHealth, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *health
	m.records[string(health.ConnectorType)+":"+health.InstanceID] = &snapshot
	return nil
}

func (m *MockHealthCache) Get(ctx context.Context, connectorType domain.ConnectorType, instanceID string) (*domain.ConnectorHealth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	health, ok := m.records[string(connectorType)+":"+instanceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	snapshot := *health
	return &snapshot, nil
}
