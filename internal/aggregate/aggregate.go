package aggregate

import (
	"time"

	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// AggregationStats is the Aggregator's bookkeeping output, used both by
// callers that need to know how degraded a response is and by the
// markdown `**Sources**` line.
type AggregationStats struct {
	TotalInput            int                       `json:"total_input"`
	UniqueArticles        int                        `json:"unique_articles"`
	DuplicatesRemoved      int                       `json:"duplicates_removed"`
	PerProviderContribution map[string]int           `json:"per_provider_contribution"`
	ProviderOutcomes      []models.ProviderOutcome   `json:"provider_outcomes,omitempty"`
}

// Config shapes one Aggregate call.
type Config struct {
	Strategy  DedupStrategy
	Profile   string
	Limit     int
	Query     string
	Entities  []models.ResolvedEntity
	UseMMR    bool
	MMRLambda float64
	Now       time.Time
}

// DefaultConfig is moderate dedup, balanced ranking, MMR on at
// lambda=0.7.
func DefaultConfig() Config {
	return Config{Strategy: StrategyModerate, Profile: "balanced", UseMMR: true, MMRLambda: 0.7}
}

// Aggregate merges provider-tagged dispatch results into a ranked
// output.
func Aggregate(results []dispatch.Result, cfg Config) ([]models.UnifiedArticle, AggregationStats) {
	stats := AggregationStats{PerProviderContribution: map[string]int{}}

	var all []*models.UnifiedArticle
	for _, r := range results {
		stats.TotalInput += len(r.Records)
		stats.PerProviderContribution[r.Provider] += len(r.Records)
		stats.ProviderOutcomes = append(stats.ProviderOutcomes, r.Outcome)
		all = append(all, r.Records...)
	}

	return aggregateRecords(all, cfg, stats)
}

// AggregateRecords runs the same dedup+rank pipeline directly over a flat
// record list (used by the pipeline `merge` step, which has no
// per-provider dispatch.Result shape).
func AggregateRecords(records []*models.UnifiedArticle, cfg Config) ([]models.UnifiedArticle, AggregationStats) {
	stats := AggregationStats{PerProviderContribution: map[string]int{}}
	stats.TotalInput = len(records)
	for _, r := range records {
		stats.PerProviderContribution[r.PrimarySource]++
	}
	return aggregateRecords(records, cfg, stats)
}

func aggregateRecords(all []*models.UnifiedArticle, cfg Config, stats AggregationStats) ([]models.UnifiedArticle, AggregationStats) {
	if len(all) == 0 {
		stats.UniqueArticles = 0
		return nil, stats
	}

	strategy := cfg.Strategy
	if strategy == "" {
		strategy = StrategyModerate
	}

	merged, duplicatesRemoved := dedupe(all, strategy)
	stats.UniqueArticles = len(merged)
	stats.DuplicatesRemoved = duplicatesRemoved

	Score(merged, Context{Query: cfg.Query, Entities: cfg.Entities, Now: cfg.Now, Profile: cfg.Profile})
	SortRanked(merged)

	limit := cfg.Limit
	if limit <= 0 {
		limit = len(merged)
	}

	final := merged
	if cfg.UseMMR {
		final = MMR(merged, cfg.MMRLambda, limit)
	} else if limit < len(merged) {
		final = merged[:limit]
	}

	out := make([]models.UnifiedArticle, len(final))
	for i, a := range final {
		out[i] = *a
	}
	return out, stats
}
