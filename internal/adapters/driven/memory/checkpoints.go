package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CheckpointBackend = (*CheckpointMap)(nil)

// CheckpointMap is the process-local checkpoint tier: an O(1) map read
// with no I/O. Records are cloned on the way in and out so callers never
// share the metadata bag with the tier.
type CheckpointMap struct {
	mu          sync.RWMutex
	checkpoints map[string]*domain.SyncCheckpoint
}

// NewCheckpointMap creates an empty process-local tier.
func NewCheckpointMap() *CheckpointMap {
	return &CheckpointMap{
		checkpoints: make(map[string]*domain.SyncCheckpoint),
	}
}

func (m *CheckpointMap) Name() string  { return "memory" }
func (m *CheckpointMap) Durable() bool { return false }

func key(instanceID, resource string) string {
	return instanceID + "|" + resource
}

func (m *CheckpointMap) Get(ctx context.Context, instanceID, resource string) (*domain.SyncCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.checkpoints[key(instanceID, resource)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cp.Clone(), nil
}

func (m *CheckpointMap) Save(ctx context.Context, cp *domain.SyncCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[key(cp.InstanceID, cp.Resource)] = cp.Clone()
	return nil
}

func (m *CheckpointMap) Delete(ctx context.Context, instanceID, resource string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.checkpoints, key(instanceID, resource))
	return nil
}

func (m *CheckpointMap) DeleteAll(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := instanceID + "|"
	for k := range m.checkpoints {
		if strings.HasPrefix(k, prefix) {
			delete(m.checkpoints, k)
		}
	}
	return nil
}
