// Package resilience provides the circuit breaker, call-spacing gate and retry
// helpers used around external provider calls.
package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state; requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means too many failures; requests are rejected immediately.
	CircuitOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive tripping failures before
	// opening the circuit. Default: 3.
	FailureThreshold int

	// Cooldown is how long the circuit stays open. Once it elapses the next
	// call is a full attempt with the failure counter zeroed. Default: 5m.
	Cooldown time.Duration

	// Window bounds how far apart consecutive failures may be and still count
	// as one streak. Zero disables the window.
	Window time.Duration

	// ShouldTrip decides which errors count toward the threshold. Errors it
	// rejects leave the counter untouched. If nil, every error trips.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the defaults used for enrichment calls.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
		Window:           10 * time.Minute,
	}
}

// CircuitSnapshot is a point-in-time view of the breaker for observability.
type CircuitSnapshot struct {
	State               CircuitState `json:"-"`
	StateName           string       `json:"state"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	OpenedAt            *time.Time   `json:"opened_at,omitempty"`
	IsOpen              bool         `json:"is_open"`
}

// CircuitBreaker is a two-state (closed/open) breaker. There is no half-open
// probing: after the cooldown the breaker closes and the next call decides.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	consecutiveFailures int
	lastFailureTime     time.Time
	openedAt            time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// WithClock replaces the breaker's time source. Intended for tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.nowFunc = now
	return cb
}

// Allow reports whether a call may proceed, closing an open circuit whose
// cooldown has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitClosed {
		return nil
	}
	if cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		cb.consecutiveFailures = 0
		cb.transition(CircuitClosed)
		return nil
	}
	return ErrCircuitOpen
}

// Record feeds the outcome of a call into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFailures = 0
		return
	}
	if cb.cfg.ShouldTrip != nil && !cb.cfg.ShouldTrip(err) {
		return
	}

	now := cb.nowFunc()
	if cb.cfg.Window > 0 && cb.consecutiveFailures > 0 && now.Sub(cb.lastFailureTime) > cb.cfg.Window {
		cb.consecutiveFailures = 0
	}
	cb.consecutiveFailures++
	cb.lastFailureTime = now

	if cb.state == CircuitClosed && cb.consecutiveFailures >= cb.cfg.FailureThreshold {
		cb.openedAt = now
		cb.transition(CircuitOpen)
	}
}

// State returns the current circuit state, accounting for an elapsed cooldown.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.Cooldown {
		return CircuitClosed
	}
	return cb.state
}

// Snapshot returns the breaker's counters for observability.
func (cb *CircuitBreaker) Snapshot() CircuitSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := CircuitSnapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		IsOpen:              cb.state == CircuitOpen,
	}
	if cb.state == CircuitOpen {
		opened := cb.openedAt
		snap.OpenedAt = &opened
	}
	snap.StateName = snap.State.String()
	return snap
}

// Reset forces the circuit back to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	if cb.state != CircuitClosed {
		cb.transition(CircuitClosed)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(from, to)
	}
}
