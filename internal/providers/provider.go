// Package providers defines the uniform adapter contract and the nine
// concrete scholarly-source adapters that implement it. Every adapter can
// be searched; optional capabilities (Citing/References/Metrics and so
// on) narrow by type assertion.
package providers

import (
	"context"
	"errors"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Filters narrows a search call; mirrors models.Filters but adapters only
// see the subset they can act on directly (providers translate the rest
// into their own query syntax where possible).
type Filters = models.Filters

// SearchResult is what every adapter's Search returns.
type SearchResult struct {
	Records    []*models.UnifiedArticle
	TotalCount *int
}

// Provider is the mandatory adapter contract: every provider can be
// searched. Optional capabilities (fetch/related/citing/references/
// metrics) are separate interfaces a concrete adapter may additionally
// satisfy; callers type-assert for them (see Citing, References, Metrics,
// Related, Fetcher below).
type Provider interface {
	// Key identifies the provider for rate-limiter/circuit-breaker lookup,
	// provenance tagging, and source_trust ranking.
	Key() string
	Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error)
}

// Fetcher is the optional single-record lookup capability.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error)
}

// Related is the optional similar-articles capability.
type Related interface {
	Related(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error)
}

// Citing is the optional forward-citation capability (who cites this).
type Citing interface {
	Citing(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error)
}

// References is the optional backward-citation capability (what this cites).
type References interface {
	References(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error)
}

// Metrics is the optional batch citation-metrics capability.
type Metrics interface {
	CitationMetrics(ctx context.Context, ids []string) (map[string]models.CitationMetrics, error)
}

// ErrorCategory classifies a provider error for retry/circuit-breaker
// decisions.
type ErrorCategory int

const (
	// CategoryRetryable covers network errors, 5xx, and 429 responses.
	CategoryRetryable ErrorCategory = iota
	// CategoryPermanent covers 4xx (except 429) and parse failures.
	CategoryPermanent
	// CategoryNotFound means the upstream affirmatively has no such record;
	// callers must treat this as an empty result, not an error.
	CategoryNotFound
)

// Error wraps a provider failure with its retry category and the
// provider key that produced it.
type Error struct {
	Provider string
	Category ErrorCategory
	Err      error
}

func (e *Error) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err (or any error in its chain) is a
// provider Error categorized as retryable.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == CategoryRetryable
	}
	return false
}

// IsNotFound reports whether err represents an upstream not-found result.
func IsNotFound(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category == CategoryNotFound
	}
	return false
}
