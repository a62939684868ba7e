// Package entity implements the free-text-to-biomedical-entity
// resolver: it wraps the annotation provider (PubTator) with a TTL+LRU
// cache keyed by normalized text, and coalesces concurrent cache-miss
// callers behind a per-key singleflight group so only one upstream call
// fires per key.
package entity

import (
	"context"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Autocompleter is the capability the resolver needs from the annotation
// provider: free-text autocomplete. Document annotations (Annotator) and
// a relations lookup (Relations) are optional. PubTator satisfies
// Autocompleter and Annotator;
// Relations is a separate optional capability since not every annotation
// provider exposes entity-relation graphs.
type Autocompleter interface {
	Autocomplete(ctx context.Context, text string) (*models.ResolvedEntity, error)
}

type Annotator interface {
	Annotations(ctx context.Context, documentID string) ([]models.ResolvedEntity, error)
}

// Relations is an optional capability: given a source entity and relation
// type, return related entities. No provider in the current roster
// implements it; callers that type-assert for it get a clean "unsupported"
// rather than a panic.
type Relations interface {
	Relations(ctx context.Context, sourceEntityID, relationType string) ([]models.ResolvedEntity, error)
}

// Config shapes the resolver's cache.
type Config struct {
	TTL     time.Duration
	MaxSize int
}

// Resolver resolves free text to a canonical ResolvedEntity, caching
// results and coalescing concurrent identical lookups.
type Resolver struct {
	provider Autocompleter
	cache    *lru.LRU[string, models.ResolvedEntity]
	negCache *lru.LRU[string, struct{}] // caches confirmed-empty lookups
	group    singleflight.Group
}

// New builds a Resolver over provider, sized per cfg.
func New(provider Autocompleter, cfg Config) *Resolver {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Resolver{
		provider: provider,
		cache:    lru.NewLRU[string, models.ResolvedEntity](cfg.MaxSize, nil, cfg.TTL),
		negCache: lru.NewLRU[string, struct{}](cfg.MaxSize, nil, cfg.TTL),
	}
}

// normalize keeps cache keys canonical: lowercased, trimmed.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Resolve returns the best entity match for text, or (nil, nil) if the
// provider found nothing. Concurrent callers for the same normalized key
// are coalesced behind a single upstream call, so a burst of identical
// lookups cannot stampede the annotation service.
func (r *Resolver) Resolve(ctx context.Context, text string) (*models.ResolvedEntity, error) {
	key := normalize(text)
	if key == "" || r.provider == nil {
		return nil, nil
	}

	if cached, ok := r.cache.Get(key); ok {
		return &cached, nil
	}
	if _, ok := r.negCache.Get(key); ok {
		return nil, nil
	}

	result, err, _ := r.group.Do(key, func() (interface{}, error) {
		resolved, err := r.provider.Autocomplete(ctx, key)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			r.negCache.Add(key, struct{}{})
			return (*models.ResolvedEntity)(nil), nil
		}
		r.cache.Add(key, *resolved)
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*models.ResolvedEntity), nil
}

// ResolveMany resolves each distinct text span, skipping blanks and
// deduplicating repeated spans within the batch before hitting the cache.
func (r *Resolver) ResolveMany(ctx context.Context, texts []string) ([]models.ResolvedEntity, error) {
	seen := make(map[string]struct{}, len(texts))
	out := make([]models.ResolvedEntity, 0, len(texts))
	for _, t := range texts {
		key := normalize(t)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		resolved, err := r.Resolve(ctx, t)
		if err != nil {
			return out, err
		}
		if resolved != nil {
			out = append(out, *resolved)
		}
	}
	return out, nil
}

// Annotations returns the entities tagged within documentID, bypassing the
// resolution cache (annotation provider's own document cache, if any, is
// its concern, not the resolver's).
func (r *Resolver) Annotations(ctx context.Context, documentID string) ([]models.ResolvedEntity, error) {
	annotator, ok := r.provider.(Annotator)
	if !ok {
		return nil, nil
	}
	return annotator.Annotations(ctx, documentID)
}

// RelationsOf returns entities related to sourceEntityID by relationType,
// or (nil, nil) if the wrapped provider has no Relations capability.
func (r *Resolver) RelationsOf(ctx context.Context, sourceEntityID, relationType string) ([]models.ResolvedEntity, error) {
	rel, ok := r.provider.(Relations)
	if !ok {
		return nil, nil
	}
	return rel.Relations(ctx, sourceEntityID, relationType)
}

// CacheLen reports the current number of cached positive resolutions,
// used by diagnostics/tests.
func (r *Resolver) CacheLen() int { return r.cache.Len() }
