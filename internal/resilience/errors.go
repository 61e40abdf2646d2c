package resilience

import (
	"github.com/sells-group/motolens/internal/apierr"
)

// IsTransient reports whether err is a transport-level failure that may
// succeed on an immediate second attempt against the same provider.
func IsTransient(err error) bool {
	switch apierr.KindOf(err) {
	case apierr.Timeout, apierr.ConnectionError:
		return true
	default:
		return false
	}
}

// IsRateLimited reports whether err is a rate-limit failure. This is the
// default trip condition for the enrichment circuit breaker.
func IsRateLimited(err error) bool {
	return apierr.IsKind(err, apierr.RateLimited)
}
