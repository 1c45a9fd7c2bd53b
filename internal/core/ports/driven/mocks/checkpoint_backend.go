package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
)

// MockCheckpointBackend is an in-memory CheckpointBackend for testing
// tiered read/write behavior. Error injection fields let tests break one
// tier at a time.
type MockCheckpointBackend struct {
	TierName  string
	IsDurable bool

	// GetErr / SaveErr, if set, are returned by the respective calls
	GetErr  error
	SaveErr error

	mu          sync.RWMutex
	checkpoints map[string]*domain.SyncCheckpoint
	saveCount   int
}

// NewMockCheckpointBackend creates a named mock tier
func NewMockCheckpointBackend(name string, durable bool) *MockCheckpointBackend {
	return &MockCheckpointBackend{
		TierName:    name,
		IsDurable:   durable,
		checkpoints: make(map[string]*domain.SyncCheckpoint),
	}
}

func (m *MockCheckpointBackend) Name() string  { return m.TierName }
func (m *MockCheckpointBackend) Durable() bool { return m.IsDurable }

func (m *MockCheckpointBackend) Get(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[instanceID+"|"+resource]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cp.Clone(), nil
}

func (m *MockCheckpointBackend) Save(ctx context.Context, cp *domain.SyncCheckpoint) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[cp.InstanceID+"|"+cp.Resource] = cp.Clone()
	m.saveCount++
	return nil
}

func (m *MockCheckpointBackend) Delete(ctx context.Context, instanceID, resource string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checkpoints, instanceID+"|"+resource)
	return nil
}

func (m *MockCheckpointBackend) DeleteAll(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.checkpoints {
		if strings.HasPrefix(k, instanceID+"|") {
			delete(m.checkpoints, k)
		}
	}
	return nil
}

// SaveCount returns how many saves this tier has accepted
func (m *MockCheckpointBackend) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saveCount
}

// Len returns the number of stored checkpoints
func (m *MockCheckpointBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.checkpoints)
}
