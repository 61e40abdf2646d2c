// Package pipeline composes resolution and enrichment into the lookup
// operation served by the CLI and HTTP surfaces.
package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
	"github.com/sells-group/motolens/internal/resolve"
	"github.com/sells-group/motolens/internal/scorer"
)

// Resolver is the decoding stage.
type Resolver interface {
	ResolveDetailed(ctx context.Context, vin string) (*resolve.Result, error)
}

// Enricher is the enrichment stage.
type Enricher interface {
	Enrich(ctx context.Context, v *model.Vehicle) *model.Vehicle
	BreakerSnapshot() resilience.CircuitSnapshot
	ResetBreaker() resilience.CircuitSnapshot
	PurgeCache() int
}

// LookupResult is the outcome of one lookup.
type LookupResult struct {
	Vehicle     *model.Vehicle         `json:"vehicle,omitempty" yaml:"vehicle,omitempty"`
	DecodeScore int                    `json:"decodeScore" yaml:"decodeScore"`
	Score       int                    `json:"score" yaml:"score"`
	Breakdown   scorer.Breakdown       `json:"breakdown" yaml:"breakdown"`
	Attempts    []model.ProviderResult `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Service runs lookups. The enricher may be nil.
type Service struct {
	resolver Resolver
	enricher Enricher
}

// New creates a Service.
func New(r Resolver, e Enricher) *Service {
	return &Service{resolver: r, enricher: e}
}

// Lookup resolves vin and, when enrich is set, fills missing fields. A
// resolution error is returned with whatever attempt trail was collected.
func (s *Service) Lookup(ctx context.Context, vin string, enrich bool) (*LookupResult, error) {
	vin = strings.TrimSpace(vin)

	res, err := s.resolver.ResolveDetailed(ctx, vin)
	out := &LookupResult{}
	if res != nil {
		out.Attempts = res.Attempts
	}
	if err != nil {
		return out, err
	}

	v := res.Vehicle
	out.DecodeScore = res.Score
	if enrich {
		v = s.Enrich(ctx, v)
	}
	out.Vehicle = v
	out.Breakdown = scorer.Explain(v)
	out.Score = out.Breakdown.Total

	zap.L().Info("pipeline: lookup complete",
		zap.String("vin", vin),
		zap.String("provider", v.SourceProvider),
		zap.Int("decode_score", out.DecodeScore),
		zap.Int("score", out.Score),
		zap.String("enrichment", string(v.Enrichment.Status)),
	)
	return out, nil
}

// Enrich runs the enrichment stage on v. Without an enricher the copy is
// tagged as not enriched.
func (s *Service) Enrich(ctx context.Context, v *model.Vehicle) *model.Vehicle {
	if v == nil {
		return nil
	}
	if s.enricher == nil {
		out := v.Clone()
		out.Enrichment = model.EnrichmentInfo{Status: model.EnrichmentNone, Reason: "disabled"}
		return out
	}
	return s.enricher.Enrich(ctx, v)
}

// Breaker reports the enrichment breaker state. ok is false without an
// enricher.
func (s *Service) Breaker() (snap resilience.CircuitSnapshot, ok bool) {
	if s.enricher == nil {
		return resilience.CircuitSnapshot{}, false
	}
	return s.enricher.BreakerSnapshot(), true
}

// ResetBreaker force-closes the enrichment breaker. ok is false without an
// enricher.
func (s *Service) ResetBreaker() (snap resilience.CircuitSnapshot, ok bool) {
	if s.enricher == nil {
		return resilience.CircuitSnapshot{}, false
	}
	return s.enricher.ResetBreaker(), true
}

// PurgeCache drops the in-memory enrichment cache. ok is false without an
// enricher.
func (s *Service) PurgeCache() (n int, ok bool) {
	if s.enricher == nil {
		return 0, false
	}
	return s.enricher.PurgeCache(), true
}
