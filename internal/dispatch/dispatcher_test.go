package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

type stubProvider struct {
	key     string
	records []*models.UnifiedArticle
	total   *int
	err     error
	block   bool // hold the call until the context is done
}

func (s *stubProvider) Key() string { return s.key }

func (s *stubProvider) Search(ctx context.Context, q string, limit int, f providers.Filters) (providers.SearchResult, error) {
	if s.block {
		<-ctx.Done()
		return providers.SearchResult{}, ctx.Err()
	}
	if s.err != nil {
		return providers.SearchResult{}, s.err
	}
	return providers.SearchResult{Records: s.records, TotalCount: s.total}, nil
}

func intp(n int) *int { return &n }

func TestDispatchCollectsAllProviderResults(t *testing.T) {
	registry := map[string]providers.Provider{
		"pubmed": &stubProvider{key: "pubmed", records: []*models.UnifiedArticle{
			{ID: "1", PrimarySource: "pubmed"},
			{ID: "2", PrimarySource: "pubmed"},
		}, total: intp(40)},
		"europepmc": &stubProvider{key: "europepmc", records: []*models.UnifiedArticle{
			{ID: "3", PrimarySource: "europepmc"},
		}},
	}
	d := New(registry, DefaultConfig())

	results, err := d.Dispatch(context.Background(), []string{"pubmed", "europepmc"}, "sepsis", 20, models.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byProvider := map[string]Result{}
	for _, r := range results {
		byProvider[r.Provider] = r
	}
	assert.Len(t, byProvider["pubmed"].Records, 2)
	assert.Equal(t, 2, byProvider["pubmed"].Outcome.RecordsReturned)
	require.NotNil(t, byProvider["pubmed"].Outcome.TotalCount)
	assert.Equal(t, 40, *byProvider["pubmed"].Outcome.TotalCount)
	assert.Len(t, byProvider["europepmc"].Records, 1)
	assert.Nil(t, byProvider["europepmc"].Outcome.TotalCount)
}

func TestDispatchOneFailingProviderDoesNotFailTheRequest(t *testing.T) {
	retryable := &providers.Error{
		Provider: "europepmc",
		Category: providers.CategoryRetryable,
		Err:      errors.New("upstream 503"),
	}
	registry := map[string]providers.Provider{
		"pubmed": &stubProvider{key: "pubmed", records: []*models.UnifiedArticle{
			{ID: "1", PrimarySource: "pubmed"},
		}},
		"europepmc": &stubProvider{key: "europepmc", err: retryable},
	}
	d := New(registry, DefaultConfig())

	results, err := d.Dispatch(context.Background(), []string{"pubmed", "europepmc"}, "sepsis", 20, models.Filters{})
	require.NoError(t, err)

	byProvider := map[string]Result{}
	for _, r := range results {
		byProvider[r.Provider] = r
	}
	assert.Len(t, byProvider["pubmed"].Records, 1)
	assert.Empty(t, byProvider["europepmc"].Records)
	assert.Contains(t, byProvider["europepmc"].Outcome.Err, "upstream 503")
	assert.True(t, byProvider["europepmc"].Outcome.Retryable)
}

func TestDispatchNotFoundIsEmptyNotError(t *testing.T) {
	notFound := &providers.Error{
		Provider: "pubmed",
		Category: providers.CategoryNotFound,
		Err:      errors.New("no such record"),
	}
	registry := map[string]providers.Provider{
		"pubmed": &stubProvider{key: "pubmed", err: notFound},
	}
	d := New(registry, DefaultConfig())

	results, err := d.Dispatch(context.Background(), []string{"pubmed"}, "PMID:999", 1, models.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Records)
	assert.Empty(t, results[0].Outcome.Err)
}

func TestDispatchSkipsUnknownProviderKeys(t *testing.T) {
	registry := map[string]providers.Provider{
		"pubmed": &stubProvider{key: "pubmed", records: []*models.UnifiedArticle{{ID: "1"}}},
	}
	d := New(registry, DefaultConfig())

	results, err := d.Dispatch(context.Background(), []string{"pubmed", "nosuch"}, "sepsis", 20, models.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byProvider := map[string]Result{}
	for _, r := range results {
		byProvider[r.Provider] = r
	}
	assert.Equal(t, "unknown provider", byProvider["nosuch"].Outcome.Err)
	assert.Len(t, byProvider["pubmed"].Records, 1)
}

func TestDispatchPerProviderTimeoutFailsOnlyThatProvider(t *testing.T) {
	registry := map[string]providers.Provider{
		"pubmed": &stubProvider{key: "pubmed", records: []*models.UnifiedArticle{{ID: "1"}}},
		"slow":   &stubProvider{key: "slow", block: true},
	}
	d := New(registry, Config{GlobalTimeout: 2 * time.Second, ProviderTimeout: 50 * time.Millisecond})

	start := time.Now()
	results, err := d.Dispatch(context.Background(), []string{"pubmed", "slow"}, "sepsis", 20, models.Filters{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	byProvider := map[string]Result{}
	for _, r := range results {
		byProvider[r.Provider] = r
	}
	assert.Len(t, byProvider["pubmed"].Records, 1)
	assert.NotEmpty(t, byProvider["slow"].Outcome.Err)
}

func TestDispatchCancellationReturnsSingleError(t *testing.T) {
	registry := map[string]providers.Provider{
		"slow": &stubProvider{key: "slow", block: true},
	}
	d := New(registry, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Dispatch(ctx, []string{"slow"}, "sepsis", 20, models.Filters{})
	assert.ErrorIs(t, err, context.Canceled)
}
