package connectors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConnectorRegistry = (*Registry)(nil)

// Registry is the connector factory registry. Factories are registered
// once at process start; resolution is a runtime lookup with an explicit
// unregistered-type error rather than a silent fallback.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.ConnectorType]driven.ConnectorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[domain.ConnectorType]driven.ConnectorFactory),
	}
}

// Register registers a factory for a connector type, replacing any prior.
func (r *Registry) Register(connectorType domain.ConnectorType, factory driven.ConnectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[connectorType] = factory
}

// Resolve builds a connector for the given instance. Returns
// domain.ErrConnectorNotRegistered for unknown types; the coordinator
// treats that as a fatal, non-retryable job failure.
func (r *Registry) Resolve(instance *domain.ConnectorInstance) (driven.Connector, error) {
	r.mu.RLock()
	factory, ok := r.factories[instance.ConnectorType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectorNotRegistered, instance.ConnectorType)
	}

	connector, err := factory(instance)
	if err != nil {
		return nil, fmt.Errorf("build %s connector: %w", instance.ConnectorType, err)
	}
	return connector, nil
}

// SupportedTypes returns all registered connector types, sorted.
func (r *Registry) SupportedTypes() []domain.ConnectorType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.ConnectorType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
