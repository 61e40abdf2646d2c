package resilience

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Gate enforces a minimum spacing between calls across every goroutine that
// shares it. Waiters are served in arrival order by the underlying limiter,
// which also owns the "last call" timestamp.
type Gate struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewGate returns a gate admitting one call per interval. A non-positive
// interval disables spacing.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the next call slot or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "resilience: gate wait")
	}
	return nil
}

// Interval returns the configured spacing.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
