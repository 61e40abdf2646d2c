// Package resolve runs a VIN through the decoding providers in priority order
// and returns the most complete record.
package resolve

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/motolens/internal/apierr"
	"github.com/sells-group/motolens/internal/model"
	"github.com/sells-group/motolens/internal/resilience"
	"github.com/sells-group/motolens/internal/scorer"
	"github.com/sells-group/motolens/internal/vin"
	"github.com/sells-group/motolens/pkg/vindecode"
)

// DefaultThreshold is the score at which a result is accepted without
// consulting later providers.
const DefaultThreshold = 70

// LookupRecorder persists the audit trail of a resolution.
type LookupRecorder interface {
	RecordLookup(ctx context.Context, rec *model.LookupRecord) error
}

// Result is the detailed outcome of a resolution.
type Result struct {
	Vehicle  *model.Vehicle         `json:"vehicle,omitempty"`
	Score    int                    `json:"score"`
	Attempts []model.ProviderResult `json:"attempts"`
}

// Resolver walks providers sequentially. It is safe for concurrent use; each
// call keeps its own state.
type Resolver struct {
	providers []vindecode.Provider
	threshold int
	retry     resilience.RetryConfig
	recorder  LookupRecorder
	score     func(*model.Vehicle) int
	now       func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold sets the acceptance threshold.
func WithThreshold(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.threshold = n
		}
	}
}

// WithRetry sets the retry policy applied to each provider call. Only
// transient kinds (timeout, connection) are retried.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(r *Resolver) {
		r.retry = cfg
	}
}

// WithRecorder appends each resolution to rec.
func WithRecorder(rec LookupRecorder) Option {
	return func(r *Resolver) {
		r.recorder = rec
	}
}

// WithScorer replaces the completeness scorer.
func WithScorer(fn func(*model.Vehicle) int) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.score = fn
		}
	}
}

// WithClock sets the time source used for lookup timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Resolver that consults providers in the given order.
func New(providers []vindecode.Provider, opts ...Option) *Resolver {
	r := &Resolver{
		providers: providers,
		threshold: DefaultThreshold,
		retry:     resilience.DefaultRetryConfig(),
		score:     scorer.Score,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Threshold returns the acceptance threshold.
func (r *Resolver) Threshold() int { return r.threshold }

// Providers returns the provider names in consultation order.
func (r *Resolver) Providers() []string {
	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the best canonical record for v, or a typed error.
func (r *Resolver) Resolve(ctx context.Context, v string) (*model.Vehicle, error) {
	res, err := r.ResolveDetailed(ctx, v)
	if err != nil {
		return nil, err
	}
	return res.Vehicle, nil
}

// ResolveDetailed is Resolve plus the per-provider attempt trail. The trail is
// returned even when resolution fails.
func (r *Resolver) ResolveDetailed(ctx context.Context, v string) (*Result, error) {
	if !vin.Valid(v) {
		return &Result{}, apierr.New(apierr.InvalidVinFormat, "", "vin must be 17 characters without I, O or Q")
	}

	res := &Result{}
	var (
		best      *model.Vehicle
		bestScore = -1
		firstErr  error
	)

	for _, p := range r.providers {
		if ctx.Err() != nil {
			if firstErr == nil {
				firstErr = apierr.FromTransport(p.Name(), ctx.Err())
			}
			break
		}

		if !p.Available() {
			zap.L().Debug("resolve: provider skipped",
				zap.String("provider", p.Name()),
				zap.String("error_code", apierr.CredentialsMissing.Code()),
			)
			res.Attempts = append(res.Attempts, model.ProviderResult{
				Provider: p.Name(),
				Skipped:  true,
				Err:      apierr.New(apierr.CredentialsMissing, p.Name(), "credentials not configured"),
			})
			continue
		}

		start := time.Now()
		rec, err := r.call(ctx, p, v)
		attempt := model.ProviderResult{Provider: p.Name(), Duration: time.Since(start)}

		if err != nil {
			attempt.Err = err
			res.Attempts = append(res.Attempts, attempt)
			kind := apierr.KindOf(err)
			zap.L().Warn("resolve: provider failed",
				zap.String("provider", p.Name()),
				zap.String("vin", v),
				zap.String("error_code", kind.Code()),
				zap.Duration("duration", attempt.Duration),
				zap.Error(err),
			)
			if kind == apierr.InvalidVinFormat {
				r.record(ctx, v, res, err)
				return res, err
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		rec.VIN = v
		if rec.SourceProvider == "" {
			rec.SourceProvider = p.Name()
		}
		score := r.score(rec)
		attempt.Vehicle = rec
		attempt.Score = score
		res.Attempts = append(res.Attempts, attempt)

		zap.L().Info("resolve: provider decoded",
			zap.String("provider", p.Name()),
			zap.String("vin", v),
			zap.Int("score", score),
			zap.Duration("duration", attempt.Duration),
		)

		// Strictly greater: earlier providers win ties.
		if score > bestScore {
			best, bestScore = rec, score
		}
		if score >= r.threshold {
			break
		}
	}

	if best != nil {
		res.Vehicle = best
		res.Score = bestScore
		r.record(ctx, v, res, nil)
		return res, nil
	}

	err := r.terminalError(firstErr)
	r.record(ctx, v, res, err)
	return res, err
}

// call invokes one provider under the retry policy.
func (r *Resolver) call(ctx context.Context, p vindecode.Provider, v string) (*model.Vehicle, error) {
	cfg := r.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(p.Name(), v)
	}
	rec, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*model.Vehicle, error) {
		return p.Decode(ctx, v)
	})
	if err == nil && rec == nil {
		err = apierr.New(apierr.NotFound, p.Name(), "empty result")
	}
	return rec, err
}

func (r *Resolver) terminalError(firstErr error) error {
	if firstErr != nil {
		return &apierr.Error{Kind: apierr.AllProvidersFailed, Detail: "no provider returned a record", Err: firstErr}
	}
	if len(r.providers) == 0 {
		return apierr.New(apierr.AllProvidersFailed, "", "no providers configured")
	}
	return apierr.New(apierr.CredentialsMissing, "", "no provider has credentials configured")
}

// record appends the resolution to the lookup log. Failures are logged and
// never change the outcome.
func (r *Resolver) record(ctx context.Context, v string, res *Result, err error) {
	if r.recorder == nil {
		return
	}
	lr := &model.LookupRecord{
		ID:        uuid.NewString(),
		VIN:       v,
		Score:     res.Score,
		Attempts:  attemptSummary(res.Attempts),
		CreatedAt: r.now().UTC(),
	}
	if res.Vehicle != nil {
		lr.Provider = res.Vehicle.SourceProvider
	}
	if err != nil {
		lr.ErrorCode = apierr.KindOf(err).Code()
	}
	if recErr := r.recorder.RecordLookup(context.WithoutCancel(ctx), lr); recErr != nil {
		zap.L().Warn("resolve: record lookup", zap.String("vin", v), zap.Error(recErr))
	}
}

// attemptSummary renders attempts as "provider=score" or "provider=ERROR_CODE".
func attemptSummary(attempts []model.ProviderResult) []string {
	out := make([]string, 0, len(attempts))
	for _, a := range attempts {
		switch {
		case a.Err != nil:
			out = append(out, a.Provider+"="+apierr.KindOf(a.Err).Code())
		default:
			out = append(out, a.Provider+"="+strconv.Itoa(a.Score))
		}
	}
	return out
}
