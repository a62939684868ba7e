package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_UnconfiguredProviderIsUnlimited(t *testing.T) {
	reg := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	for i := 0; i < 50; i++ {
		require.NoError(t, reg.Acquire(ctx, "no-such-provider"))
	}
}

func TestRegistry_SameKeyReturnsSameBucket(t *testing.T) {
	reg := NewRegistry()
	reg.Configure("pubmed", Config{RatePerSec: 1, Burst: 1})

	ctx := context.Background()
	require.NoError(t, reg.Acquire(ctx, "pubmed"))

	// Burst of 1 is now exhausted; a second immediate acquire from the
	// same registry+key must wait, proving it's the same bucket.
	start := time.Now()
	require.NoError(t, reg.Acquire(ctx, "pubmed"))
	assert.Greater(t, time.Since(start), 500*time.Millisecond)
}

// TestRateLimiter_BurstThenRate: with rate=3/s,
// burst=3, ten acquires fired at once complete in four waves roughly one
// second apart.
func TestRateLimiter_BurstThenRate(t *testing.T) {
	reg := NewRegistry()
	reg.Configure("pubmed", Config{RatePerSec: 3, Burst: 3})

	const n = 10
	start := time.Now()
	elapsed := make([]time.Duration, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			require.NoError(t, reg.Acquire(context.Background(), "pubmed"))
			elapsed[i] = time.Since(start)
		}()
	}
	wg.Wait()

	wave := make([]int, 4)
	for _, e := range elapsed {
		switch {
		case e < 500*time.Millisecond:
			wave[0]++
		case e < 1500*time.Millisecond:
			wave[1]++
		case e < 2500*time.Millisecond:
			wave[2]++
		default:
			wave[3]++
		}
	}
	assert.Equal(t, 3, wave[0], "first wave should be the initial burst")
	assert.Equal(t, 3, wave[1])
	assert.Equal(t, 3, wave[2])
	assert.Equal(t, 1, wave[3])
}

func TestRegistry_AcquireHonorsCancellation(t *testing.T) {
	reg := NewRegistry()
	reg.Configure("crossref", Config{RatePerSec: 0.1, Burst: 1})

	require.NoError(t, reg.Acquire(context.Background(), "crossref"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := reg.Acquire(ctx, "crossref")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestLimiter_BoundedAcquireRate: in any window of T seconds,
// acquires <= burst + rate*T.
func TestLimiter_BoundedAcquireRate(t *testing.T) {
	reg := NewRegistry()
	reg.Configure("europepmc", Config{RatePerSec: 5, Burst: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 1100*time.Millisecond)
	defer cancel()

	count := 0
	for {
		if err := reg.Acquire(ctx, "europepmc"); err != nil {
			break
		}
		count++
	}
	assert.LessOrEqual(t, count, 2+int(5*1.2)+1)
}
