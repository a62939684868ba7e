// Package dispatch implements the concurrent multi-provider fan-out:
// given an AnalyzedQuery's recommended provider subset, it launches one
// goroutine per provider, each bounded by that provider's rate limiter
// and a per-provider timeout, all bounded by a global request timeout.
// Partial success is the norm: whatever completes before the global
// deadline is returned, with per-provider outcomes recorded for the
// degraded-response path. Manual goroutine + fan-in rather than errgroup,
// since results must be collected even when some providers fail or time
// out — errgroup's fail-fast cancellation is the wrong shape here.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

// Config governs dispatch timeouts.
type Config struct {
	GlobalTimeout   time.Duration
	ProviderTimeout time.Duration
}

// DefaultConfig is a 30s global deadline with 10s per provider.
func DefaultConfig() Config {
	return Config{GlobalTimeout: 30 * time.Second, ProviderTimeout: 10 * time.Second}
}

// ProviderQuery is the per-provider query string to use; most dispatches
// send the same string to every provider, but a semantic-enhancer-derived
// dispatch may send a provider-specific string instead.
type ProviderQuery struct {
	Provider string
	Query    string
}

// Result is what one provider contributed to a dispatch, paired with its
// outcome record.
type Result struct {
	Provider string
	Records  []*models.UnifiedArticle
	Outcome  models.ProviderOutcome
}

// Dispatcher fans a query out to a registry of providers.
type Dispatcher struct {
	Providers map[string]providers.Provider
	Config    Config
}

// New builds a Dispatcher over the given provider registry.
func New(registry map[string]providers.Provider, cfg Config) *Dispatcher {
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = 30 * time.Second
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	return &Dispatcher{Providers: registry, Config: cfg}
}

// Dispatch runs query against every provider key named in providerKeys,
// each bounded by a per-provider timeout and a shared rate limiter via the
// provider's own Base.Do wiring. Unknown provider keys are skipped with a
// warning, not an error: a stale ranking-profile config should degrade,
// not abort.
func (d *Dispatcher) Dispatch(ctx context.Context, providerKeys []string, query string, limit int, filters models.Filters) ([]Result, error) {
	queries := make([]ProviderQuery, 0, len(providerKeys))
	for _, k := range providerKeys {
		queries = append(queries, ProviderQuery{Provider: k, Query: query})
	}
	return d.DispatchMixed(ctx, queries, limit, filters)
}

// DispatchMixed is Dispatch generalized to per-provider query strings, used
// by the semantic-enhancer-driven path and the pipeline `search` step.
func (d *Dispatcher) DispatchMixed(ctx context.Context, queries []ProviderQuery, limit int, filters models.Filters) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Config.GlobalTimeout)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]Result, len(queries))

	for i, pq := range queries {
		provider, ok := d.Providers[pq.Provider]
		if !ok {
			results[i] = Result{
				Provider: pq.Provider,
				Outcome:  models.ProviderOutcome{Provider: pq.Provider, Err: "unknown provider", Retryable: false},
			}
			log.Warn().Str("provider", pq.Provider).Msg("dispatch: unknown provider key, skipping")
			continue
		}

		wg.Add(1)
		go func(i int, pq ProviderQuery, provider providers.Provider) {
			defer wg.Done()
			results[i] = d.callOne(ctx, provider, pq, limit, filters)
		}(i, pq, provider)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Global timeout or cancellation: in-flight adapter calls observe
		// ctx.Done() internally (rate limiter / HTTP calls are context-aware)
		// and return promptly; we still wait for the goroutines to finish
		// writing their (partial/error) results before returning, rather
		// than racing on the results slice.
		<-done
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
	}

	return results, nil
}

func (d *Dispatcher) callOne(ctx context.Context, provider providers.Provider, pq ProviderQuery, limit int, filters models.Filters) Result {
	providerCtx, cancel := context.WithTimeout(ctx, d.Config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	searchResult, err := provider.Search(providerCtx, pq.Query, limit, filters)
	elapsed := time.Since(start)

	outcome := models.ProviderOutcome{
		Provider:       pq.Provider,
		RecordsReturned: len(searchResult.Records),
		TotalCount:     searchResult.TotalCount,
		DurationMillis: elapsed.Milliseconds(),
	}

	if err != nil {
		if providers.IsNotFound(err) {
			return Result{Provider: pq.Provider, Outcome: outcome}
		}
		outcome.Err = err.Error()
		outcome.Retryable = providers.IsRetryable(err)
		log.Warn().Str("provider", pq.Provider).Err(err).Dur("elapsed", elapsed).Msg("provider search failed")
		return Result{Provider: pq.Provider, Outcome: outcome}
	}

	return Result{Provider: pq.Provider, Records: searchResult.Records, Outcome: outcome}
}
