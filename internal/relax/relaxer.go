// Package relax implements progressive query relaxation: when the
// aggregator yields fewer than a configured minimum, the relaxer replays
// the dispatch with a fixed ladder of progressively broader
// queries/filters, stopping at the first step that clears the minimum.
// Each attempt is recorded for the final report.
package relax

import (
	"context"
	"sort"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Attempt is one relaxation step's outcome, recorded whether or not it
// cleared the minimum.
type Attempt struct {
	Step        string `json:"step"`
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

// Runner performs one dispatch+aggregate cycle for a (query, filters) pair
// and reports how many unique ranked articles it produced, plus the
// articles themselves.
type Runner func(ctx context.Context, query string, filters models.Filters) ([]models.UnifiedArticle, error)

// Config bounds relaxation.
type Config struct {
	MinResults int
}

// DefaultConfig relaxes whenever a search comes back empty.
func DefaultConfig() Config {
	return Config{MinResults: 1}
}

// Result is what Relax returns: whatever the best-performing step (or the
// original run) produced, plus the full attempt trail.
type Result struct {
	Articles []models.UnifiedArticle
	Relaxed  bool
	Trail    []Attempt
}

// Relax runs the initial (query, filters) through runner; if it already
// clears cfg.MinResults, no relaxation occurs. Otherwise it tries, in
// order: drop date filter, drop article-type filter, broaden age/sex/
// species to "any", collapse a boolean-AND query into an OR of the two
// most salient entities, then fall back to a single keyword — stopping at
// the first step (of at most 5) that clears the minimum. Every attempt is
// recorded, and the chain never exceeds 5 steps.
func Relax(ctx context.Context, query string, filters models.Filters, entities []models.ResolvedEntity, cfg Config, run Runner) (Result, error) {
	if cfg.MinResults <= 0 {
		cfg.MinResults = 1
	}

	initial, err := run(ctx, query, filters)
	if err != nil {
		return Result{}, err
	}
	if len(initial) >= cfg.MinResults {
		return Result{Articles: initial, Relaxed: false}, nil
	}

	var trail []Attempt
	best := initial
	bestCount := len(initial)

	steps := relaxationSteps(query, filters, entities)
	for _, step := range steps {
		results, err := run(ctx, step.query, step.filters)
		if err != nil {
			return Result{}, err
		}
		trail = append(trail, Attempt{Step: step.label, Query: step.query, ResultCount: len(results)})

		if len(results) > bestCount {
			best = results
			bestCount = len(results)
		}
		if len(results) >= cfg.MinResults {
			break
		}
	}

	return Result{Articles: best, Relaxed: true, Trail: trail}, nil
}

type relaxationStep struct {
	label   string
	query   string
	filters models.Filters
}

// relaxationSteps builds the fixed 5-step ladder, each step structurally
// simpler (fewer active constraints) than the last.
func relaxationSteps(query string, filters models.Filters, entities []models.ResolvedEntity) []relaxationStep {
	steps := make([]relaxationStep, 0, 5)

	cur := filters
	cur.YearMin, cur.YearMax = nil, nil
	steps = append(steps, relaxationStep{label: "drop_date_filter", query: query, filters: cur})

	cur2 := cur
	cur2.ArticleTypes = nil
	steps = append(steps, relaxationStep{label: "drop_article_type_filter", query: query, filters: cur2})

	cur3 := cur2
	cur3.AgeGroup, cur3.Sex, cur3.Species = "any", "any", "any"
	steps = append(steps, relaxationStep{label: "broaden_demographic_filters", query: query, filters: cur3})

	orQuery := collapseToOR(query, entities)
	steps = append(steps, relaxationStep{label: "collapse_boolean_to_or", query: orQuery, filters: cur3})

	keyword := mostSalientKeyword(query, entities)
	steps = append(steps, relaxationStep{label: "fallback_single_keyword", query: keyword, filters: models.Filters{}})

	return steps
}

// collapseToOR rewrites a strict boolean AND chain into an OR of the top
// two resolved entities (by score), falling back to the original query
// unchanged when there are fewer than two entities to work with.
func collapseToOR(query string, entities []models.ResolvedEntity) string {
	top := topEntities(entities, 2)
	if len(top) < 2 {
		return query
	}
	return top[0].Name + " OR " + top[1].Name
}

// mostSalientKeyword picks the single best keyword to retry with: the
// highest-scoring resolved entity if any, else the longest word in the
// original query (a cheap proxy for "most specific").
func mostSalientKeyword(query string, entities []models.ResolvedEntity) string {
	top := topEntities(entities, 1)
	if len(top) == 1 {
		return top[0].Name
	}
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return query
	}
	longest := fields[0]
	for _, f := range fields[1:] {
		if len(f) > len(longest) {
			longest = f
		}
	}
	return strings.Trim(longest, ".,;:()[]\"'")
}

func topEntities(entities []models.ResolvedEntity, n int) []models.ResolvedEntity {
	sorted := append([]models.ResolvedEntity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
