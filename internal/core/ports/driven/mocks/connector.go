package mocks

import (
	"context"

	"github.com/custodia-labs/conduit-core/internal/core/domain"
	"github.com/custodia-labs/conduit-core/internal/core/ports/driven"
)

// MockConnector is a mock implementation of Connector for testing
type MockConnector struct {
	TypeFn           func() domain.ConnectorType
	ValidateConfigFn func() domain.ValidationResult
	TestConnectionFn func(ctx context.Context) domain.ConnectionResult
	HealthCheckFn    func(ctx context.Context) domain.HealthCheckResult
	SyncFn           func(ctx context.Context, opts domain.SyncOptions, cb driven.SyncCallbacks) (*domain.SyncOutcome, error)
	RequiredScopesFn func() []string
}

func NewMockConnector() *MockConnector {
	return &MockConnector{}
}

func (m *MockConnector) Type() domain.ConnectorType {
	if m.TypeFn != nil {
		return m.TypeFn()
	}
	return domain.ConnectorTypeGmail
}

func (m *MockConnector) ValidateConfig() domain.ValidationResult {
	if m.ValidateConfigFn != nil {
		return m.ValidateConfigFn()
	}
	return domain.ValidationResult{Valid: true}
}

func (m *MockConnector) TestConnection(ctx context.Context) domain.ConnectionResult {
	if m.TestConnectionFn != nil {
		return m.TestConnectionFn(ctx)
	}
	return domain.ConnectionResult{Success: true}
}

func (m *MockConnector) HealthCheck(ctx context.Context) domain.HealthCheckResult {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return domain.HealthCheckResult{Healthy: true, Status: domain.HealthStatusConnected}
}

func (m *MockConnector) Sync(ctx context.Context, opts domain.SyncOptions, cb driven.SyncCallbacks) (*domain.SyncOutcome, error) {
	if m.SyncFn != nil {
		return m.SyncFn(ctx, opts, cb)
	}
	return &domain.SyncOutcome{Success: true}, nil
}

func (m *MockConnector) RequiredScopes() []string {
	if m.RequiredScopesFn != nil {
		return m.RequiredScopesFn()
	}
	return nil
}
