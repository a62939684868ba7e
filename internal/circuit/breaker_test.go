package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_InitialState(t *testing.T) {
	b := NewBreaker("pubmed", DefaultConfig())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_TripsAtThreshold(t *testing.T) {
	cfg := Config{FailureThreshold: 3, RecoveryTimeout: time.Minute}
	b := NewBreaker("europepmc", cfg)

	for i := 0; i < 2; i++ {
		b.RecordFailure(errors.New("boom"))
		require.Equal(t, StateClosed, b.State(), "should not trip before threshold")
	}
	b.RecordFailure(errors.New("boom"))
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow(), "open breaker must fail fast")
}

func TestBreaker_SuccessResetsCounterInClosedState(t *testing.T) {
	cfg := Config{FailureThreshold: 3, RecoveryTimeout: time.Minute}
	b := NewBreaker("crossref", cfg)

	b.RecordFailure(errors.New("e1"))
	b.RecordFailure(errors.New("e2"))
	b.RecordSuccess()
	b.RecordFailure(errors.New("e3"))
	b.RecordFailure(errors.New("e4"))

	assert.Equal(t, StateClosed, b.State(), "reset counter means two more failures shouldn't trip")
}

func TestBreaker_HalfOpenProbeSuccessCloses(t *testing.T) {
	cfg := Config{FailureThreshold: 2, RecoveryTimeout: 10 * time.Millisecond}
	b := NewBreaker("icite", cfg)

	b.RecordFailure(errors.New("e1"))
	b.RecordFailure(errors.New("e2"))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)

	require.True(t, b.Allow(), "recovery_timeout elapsed, probe should be allowed")
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond}
	b := NewBreaker("unpaywall", cfg)

	b.RecordFailure(errors.New("e1"))
	require.Equal(t, StateOpen, b.State())

	time.Sleep(15 * time.Millisecond)
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure(errors.New("probe failed"))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenOnlyAllowsOneProbe(t *testing.T) {
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond}
	b := NewBreaker("pubtator", cfg)
	b.RecordFailure(errors.New("e1"))
	time.Sleep(15 * time.Millisecond)

	require.True(t, b.Allow())
	assert.False(t, b.Allow(), "a second concurrent probe must be rejected")
}

func TestExecute_RecordsOutcome(t *testing.T) {
	cfg := Config{FailureThreshold: 1, RecoveryTimeout: time.Minute}
	b := NewBreaker("biorxiv", cfg)

	err := b.Execute(func() error { return errors.New("fail") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, b.State())

	err = b.Execute(func() error { return nil })
	require.True(t, IsCircuitOpen(err))
}

func TestRegistry_PerKeyIsolation(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 1, RecoveryTimeout: time.Minute})

	reg.Get("pubmed").RecordFailure(errors.New("boom"))
	assert.Equal(t, StateOpen, reg.Get("pubmed").State())
	assert.Equal(t, StateClosed, reg.Get("europepmc").State(), "breaker state must never leak across provider keys")
}
