package entity

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

type fakeProvider struct {
	calls int32
	delay time.Duration
	resp  *models.ResolvedEntity
	err   error
}

func (f *fakeProvider) Autocomplete(ctx context.Context, text string) (*models.ResolvedEntity, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.resp, f.err
}

func TestResolverCachesPositiveResult(t *testing.T) {
	fp := &fakeProvider{resp: &models.ResolvedEntity{Name: "BRCA1", Type: "gene", ExternalID: "672"}}
	r := New(fp, Config{TTL: time.Minute, MaxSize: 10})

	got, err := r.Resolve(context.Background(), "  BRCA1  ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "BRCA1", got.Name)

	_, err = r.Resolve(context.Background(), "brca1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fp.calls, "second call for the same normalized key should hit the cache")
}

func TestResolverCachesNegativeResult(t *testing.T) {
	fp := &fakeProvider{resp: nil}
	r := New(fp, Config{TTL: time.Minute, MaxSize: 10})

	got, err := r.Resolve(context.Background(), "nonsense-term")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = r.Resolve(context.Background(), "nonsense-term")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fp.calls)
}

func TestResolverCoalescesConcurrentMisses(t *testing.T) {
	fp := &fakeProvider{delay: 20 * time.Millisecond, resp: &models.ResolvedEntity{Name: "sepsis", Type: "disease"}}
	r := New(fp, Config{TTL: time.Minute, MaxSize: 10})

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := r.Resolve(context.Background(), "sepsis")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, fp.calls, "concurrent misses for the same key should trigger exactly one upstream fetch")
}

func TestResolveManyDedupsBlankAndRepeatedSpans(t *testing.T) {
	fp := &fakeProvider{resp: &models.ResolvedEntity{Name: "x"}}
	r := New(fp, Config{TTL: time.Minute, MaxSize: 10})

	out, err := r.ResolveMany(context.Background(), []string{"x", " X ", "", "  "})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.EqualValues(t, 1, fp.calls)
}
