// Package circuit implements a per-provider-key circuit breaker: a
// three-state machine (closed/open/half-open) that fails calls fast once
// a provider has accumulated FailureThreshold consecutive failures, then
// probes it again after RecoveryTimeout.
package circuit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is one of the three circuit breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a single breaker's thresholds.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultConfig trips after 10 consecutive failures and probes again
// after a minute.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 10,
		RecoveryTimeout:  60 * time.Second,
	}
}

// Breaker is a single provider key's circuit breaker state machine. All
// methods are safe for concurrent use; callers never need their own lock.
type Breaker struct {
	name   string
	config Config

	mu                    sync.Mutex
	state                 State
	consecutiveFailures   int
	openedAt              time.Time
	halfOpenProbeInFlight bool

	totalFailures  int64
	totalSuccesses int64
	totalTrips     int64
}

// NewBreaker creates a breaker for the given provider key.
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 10
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 60 * time.Second
	}
	return &Breaker{name: name, config: config, state: StateClosed}
}

// Allow reports whether a call should proceed, transitioning open->half-open
// when recovery_timeout has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.config.RecoveryTimeout {
			b.transitionTo(StateHalfOpen)
			b.halfOpenProbeInFlight = true
			return true
		}
		return false
	case StateHalfOpen:
		if b.halfOpenProbeInFlight {
			return false
		}
		b.halfOpenProbeInFlight = true
		return true
	default:
		return true
	}
}

// RecordSuccess closes the breaker (from half-open) or resets the failure
// counter (from closed).
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.consecutiveFailures = 0

	if b.state == StateHalfOpen {
		b.halfOpenProbeInFlight = false
		b.transitionTo(StateClosed)
		log.Info().Str("breaker", b.name).Msg("circuit breaker probe succeeded, closing")
	}
}

// RecordFailure increments the failure counter and trips the breaker once
// failure_threshold consecutive failures have been seen, or immediately
// reopens from half-open.
func (b *Breaker) RecordFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++

	switch b.state {
	case StateClosed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.trip(err)
		}
	case StateHalfOpen:
		b.halfOpenProbeInFlight = false
		b.trip(err)
	}
}

func (b *Breaker) trip(err error) {
	b.transitionTo(StateOpen)
	b.openedAt = time.Now()
	b.totalTrips++
	log.Warn().
		Str("breaker", b.name).
		Int("failures", b.consecutiveFailures).
		AnErr("cause", err).
		Msg("circuit breaker tripped")
}

func (b *Breaker) transitionTo(s State) {
	if b.state == s {
		return
	}
	b.state = s
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Status is a point-in-time snapshot for diagnostics/rendering.
type Status struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	TotalFailures       int64  `json:"total_failures"`
	TotalSuccesses      int64  `json:"total_successes"`
	TotalTrips          int64  `json:"total_trips"`
}

// StatusSnapshot returns a snapshot of the breaker's counters.
func (b *Breaker) StatusSnapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{
		Name:                b.name,
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		TotalFailures:       b.totalFailures,
		TotalSuccesses:      b.totalSuccesses,
		TotalTrips:          b.totalTrips,
	}
}

// circuitOpenError is returned by Execute when the breaker blocks a call.
type circuitOpenError struct{ name string }

func (e circuitOpenError) Error() string { return "circuit breaker open for " + e.name }

// IsCircuitOpen reports whether err was produced by a tripped breaker.
func IsCircuitOpen(err error) bool {
	_, ok := err.(circuitOpenError)
	return ok
}

// Execute runs operation only if Allow() permits it, recording the
// outcome. Returns circuitOpenError if blocked.
func (b *Breaker) Execute(operation func() error) error {
	if !b.Allow() {
		return circuitOpenError{name: b.name}
	}
	if err := operation(); err != nil {
		b.RecordFailure(err)
		return err
	}
	b.RecordSuccess()
	return nil
}
