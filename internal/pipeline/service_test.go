package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
	"github.com/sells-group/motolens/internal/resolve"
)

const hondaVIN = "1HGCM82633A004352"

func decodedHonda() *model.Vehicle {
	return &model.Vehicle{
		VIN:            hondaVIN,
		VINValid:       true,
		Make:           "Honda",
		Year:           2003,
		SourceProvider: "nhtsa",
	}
}

func TestLookup_WithoutEnrichment(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveDetailed", mock.Anything, hondaVIN).Return(&resolve.Result{
		Vehicle:  decodedHonda(),
		Score:    45,
		Attempts: []model.ProviderResult{{Provider: "nhtsa", Score: 45}},
	}, nil)
	e := &mockEnricher{}

	svc := New(r, e)
	got, err := svc.Lookup(context.Background(), "  "+hondaVIN+"\n", false)
	require.NoError(t, err)

	assert.Equal(t, hondaVIN, got.Vehicle.VIN)
	assert.Equal(t, 45, got.DecodeScore)
	assert.Equal(t, 45, got.Score)
	assert.Equal(t, 45, got.Breakdown.Total)
	assert.Len(t, got.Attempts, 1)
	e.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
	r.AssertExpectations(t)
}

func TestLookup_WithEnrichmentRescores(t *testing.T) {
	decoded := decodedHonda()
	enriched := decoded.Clone()
	enriched.Model = "Accord"
	enriched.Engine = "2.4L I4"
	enriched.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentApplied, Fields: []string{"model", "engine"}}

	r := &mockResolver{}
	r.On("ResolveDetailed", mock.Anything, hondaVIN).Return(&resolve.Result{Vehicle: decoded, Score: 45}, nil)
	e := &mockEnricher{}
	e.On("Enrich", mock.Anything, decoded).Return(enriched).Once()

	got, err := New(r, e).Lookup(context.Background(), hondaVIN, true)
	require.NoError(t, err)

	assert.Equal(t, "Accord", got.Vehicle.Model)
	assert.Equal(t, 45, got.DecodeScore)
	assert.Equal(t, 67, got.Score)
	assert.Equal(t, model.EnrichmentApplied, got.Vehicle.Enrichment.Status)
	e.AssertExpectations(t)
}

func TestLookup_ResolveError(t *testing.T) {
	failure := &apierr.Error{Kind: apierr.AllProvidersFailed}
	r := &mockResolver{}
	r.On("ResolveDetailed", mock.Anything, hondaVIN).Return(&resolve.Result{
		Attempts: []model.ProviderResult{{Provider: "nhtsa", Err: apierr.New(apierr.Timeout, "nhtsa", "")}},
	}, failure)
	e := &mockEnricher{}

	got, err := New(r, e).Lookup(context.Background(), hondaVIN, true)
	require.Error(t, err)
	assert.Equal(t, apierr.AllProvidersFailed, apierr.KindOf(err))
	assert.Nil(t, got.Vehicle)
	assert.Len(t, got.Attempts, 1)
	e.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything)
}

func TestLookup_NilEnricher(t *testing.T) {
	r := &mockResolver{}
	r.On("ResolveDetailed", mock.Anything, hondaVIN).Return(&resolve.Result{Vehicle: decodedHonda(), Score: 45}, nil)

	svc := New(r, nil)
	got, err := svc.Lookup(context.Background(), hondaVIN, true)
	require.NoError(t, err)
	assert.Equal(t, model.EnrichmentNone, got.Vehicle.Enrichment.Status)
	assert.Equal(t, "disabled", got.Vehicle.Enrichment.Reason)

	_, ok := svc.Breaker()
	assert.False(t, ok)
}

func TestService_Breaker(t *testing.T) {
	e := &mockEnricher{}
	e.On("BreakerSnapshot").Return(resilience.CircuitSnapshot{StateName: "open", IsOpen: true})

	snap, ok := New(&mockResolver{}, e).Breaker()
	require.True(t, ok)
	assert.True(t, snap.IsOpen)
}

func TestService_ResetBreaker(t *testing.T) {
	_, ok := New(&mockResolver{}, nil).ResetBreaker()
	assert.False(t, ok)

	e := &mockEnricher{}
	e.On("ResetBreaker").Return(resilience.CircuitSnapshot{StateName: "closed"}).Once()

	snap, ok := New(&mockResolver{}, e).ResetBreaker()
	require.True(t, ok)
	assert.Equal(t, "closed", snap.StateName)
	e.AssertExpectations(t)
}

func TestService_PurgeCache(t *testing.T) {
	_, ok := New(&mockResolver{}, nil).PurgeCache()
	assert.False(t, ok)

	e := &mockEnricher{}
	e.On("PurgeCache").Return(7).Once()

	n, ok := New(&mockResolver{}, e).PurgeCache()
	require.True(t, ok)
	assert.Equal(t, 7, n)
	e.AssertExpectations(t)
}

func TestService_EnrichNil(t *testing.T) {
	assert.Nil(t, New(&mockResolver{}, nil).Enrich(context.Background(), nil))
}
