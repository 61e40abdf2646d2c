package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
	"github.com/sells-group/motolens/internal/resolve"
)

// --- Resolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveDetailed(ctx context.Context, vin string) (*resolve.Result, error) {
	args := m.Called(ctx, vin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolve.Result), args.Error(1)
}

// --- Enricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, v *model.Vehicle) *model.Vehicle {
	args := m.Called(ctx, v)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.Vehicle)
}

func (m *mockEnricher) BreakerSnapshot() resilience.CircuitSnapshot {
	args := m.Called()
	return args.Get(0).(resilience.CircuitSnapshot)
}

func (m *mockEnricher) ResetBreaker() resilience.CircuitSnapshot {
	args := m.Called()
	return args.Get(0).(resilience.CircuitSnapshot)
}

func (m *mockEnricher) PurgeCache() int {
	args := m.Called()
	return args.Int(0)
}
