package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/aggregate"
	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/enhance"
	"github.com/biolit-mcp/litsearch-mcp/internal/enrich"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
	"github.com/biolit-mcp/litsearch-mcp/internal/query"
)

// Executor runs a validated PipelineConfig's step DAG: walk the steps in
// topological order, record a per-step result, honor each step's own
// error policy.
type Executor struct {
	Providers  map[string]providers.Provider
	Dispatcher *dispatch.Dispatcher
	Analyzer   *query.Analyzer
	Enhancer   *enhance.Enhancer
	Enricher   *enrich.Enricher
	Templates  *TemplateRegistry
}

// Execute runs cfg (already validated — see Validate) and produces a
// PipelineRun with per-step timing and a final ranked, limited output.
func (e *Executor) Execute(ctx context.Context, cfg models.PipelineConfig, fixes []models.ValidationFix) (models.PipelineRun, error) {
	start := time.Now()
	run := models.PipelineRun{ID: uuid.NewString(), StartedAt: start.Unix(), Fixes: fixes}

	order, err := topoSort(cfg.Steps)
	if err != nil {
		run.Aborted = true
		run.AbortReason = err.Error()
		run.DurationMS = time.Since(start).Milliseconds()
		return run, err
	}

	byID := make(map[string]models.StepResult, len(cfg.Steps))
	stepByID := make(map[string]models.PipelineStep, len(cfg.Steps))
	for _, s := range cfg.Steps {
		stepByID[s.ID] = s
	}

	for _, id := range order {
		step := stepByID[id]
		stepStart := time.Now()

		inputs := e.collectInputs(step, byID)
		result, stepErr := e.runStep(ctx, step, inputs)
		result.StepID = step.ID
		result.Action = step.Action
		result.DurationMS = time.Since(stepStart).Milliseconds()

		if stepErr != nil {
			result.Err = stepErr.Error()
			log.Warn().Str("step", step.ID).Str("action", string(step.Action)).Err(stepErr).Msg("pipeline step failed")
			if step.OnError == models.OnErrorAbort {
				run.StepResults = append(run.StepResults, result)
				run.Aborted = true
				run.AbortReason = fmt.Sprintf("step %q aborted: %v", step.ID, stepErr)
				run.DurationMS = time.Since(start).Milliseconds()
				return run, nil
			}
			// skip: downstream sees an empty result and execution continues.
			result.Articles = nil
			result.ExternalIDs = nil
		}

		byID[step.ID] = result
		run.StepResults = append(run.StepResults, result)
	}

	run.Final = e.finalOutput(run.StepResults, cfg.Output)
	run.DurationMS = time.Since(start).Milliseconds()
	return run, nil
}

// topoSort orders steps so every dependency precedes its dependents,
// preserving the original relative order among independent steps (a
// stable Kahn's-algorithm pass).
func topoSort(steps []models.PipelineStep) ([]string, error) {
	indexOf := make(map[string]int, len(steps))
	for i, s := range steps {
		indexOf[s.ID] = i
	}
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string, len(steps))
	for _, s := range steps {
		if _, ok := indegree[s.ID]; !ok {
			indegree[s.ID] = 0
		}
		for _, dep := range s.Inputs {
			if _, ok := indexOf[dep]; !ok {
				continue // dangling reference already survived validation; ignore at runtime
			}
			indegree[s.ID]++
			dependents[dep] = append(dependents[dep], s.ID)
		}
	}

	var ready []string
	for _, s := range steps {
		if indegree[s.ID] == 0 {
			ready = append(ready, s.ID)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })

	var order []string
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var newlyReady []string
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				newlyReady = append(newlyReady, dep)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool { return indexOf[newlyReady[i]] < indexOf[newlyReady[j]] })
		ready = append(ready, newlyReady...)
		sort.Slice(ready, func(i, j int) bool { return indexOf[ready[i]] < indexOf[ready[j]] })
	}

	if len(order) != len(steps) {
		return nil, fmt.Errorf("pipeline step graph has a cycle the validator did not break")
	}
	return order, nil
}

func (e *Executor) collectInputs(step models.PipelineStep, byID map[string]models.StepResult) []models.UnifiedArticle {
	var out []models.UnifiedArticle
	for _, dep := range step.Inputs {
		if r, ok := byID[dep]; ok {
			out = append(out, r.Articles...)
		}
	}
	return out
}

func (e *Executor) runStep(ctx context.Context, step models.PipelineStep, inputs []models.UnifiedArticle) (models.StepResult, error) {
	switch step.Action {
	case models.ActionSearch:
		return e.runSearch(ctx, step)
	case models.ActionPICO:
		return e.runPICO(ctx, step)
	case models.ActionExpand:
		return e.runExpand(ctx, step)
	case models.ActionDetails:
		return e.runLookup(ctx, step, inputs, lookupDetails)
	case models.ActionRelated:
		return e.runLookup(ctx, step, inputs, lookupRelated)
	case models.ActionCiting:
		return e.runLookup(ctx, step, inputs, lookupCiting)
	case models.ActionReferences:
		return e.runLookup(ctx, step, inputs, lookupReferences)
	case models.ActionMetrics:
		return e.runMetrics(ctx, inputs)
	case models.ActionMerge:
		return e.runMerge(step, inputs)
	case models.ActionFilter:
		return e.runFilter(step, inputs)
	default:
		return models.StepResult{}, fmt.Errorf("unsupported step action %q", step.Action)
	}
}

func (e *Executor) runSearch(ctx context.Context, step models.PipelineStep) (models.StepResult, error) {
	q, _ := step.Params["query"].(string)
	if q == "" {
		return models.StepResult{}, fmt.Errorf("search step requires a non-empty query")
	}
	limit := intParam(step.Params, "limit", 20)

	analyzed := e.Analyzer.Analyze(ctx, q)
	providerKeys := analyzed.Providers
	if raw, ok := step.Params["providers"].([]interface{}); ok && len(raw) > 0 {
		providerKeys = nil
		for _, p := range raw {
			if s, ok := p.(string); ok {
				providerKeys = append(providerKeys, s)
			}
		}
	}

	results, err := e.Dispatcher.Dispatch(ctx, providerKeys, q, limit, models.Filters{})
	if err != nil {
		return models.StepResult{}, err
	}

	articles, _ := aggregate.Aggregate(results, aggregate.Config{
		Strategy: aggregate.StrategyModerate,
		Profile:  analyzed.RankingProfile,
		Limit:    limit,
		Query:    q,
		Entities: analyzed.Entities,
		UseMMR:   false,
	})
	return models.StepResult{Articles: articles, ExternalIDs: ids(articles)}, nil
}

// runPICO handles a raw "pico" step (as opposed to the pico *template*,
// which pre-expands into search+merge steps): four P/I/C/O sub-searches
// fused by RRF.
func (e *Executor) runPICO(ctx context.Context, step models.PipelineStep) (models.StepResult, error) {
	fragments := []struct{ key, label string }{
		{"P", "population"}, {"I", "intervention"}, {"C", "comparison"}, {"O", "outcome"},
	}
	limit := intParam(step.Params, "limit", 20)

	var rankLists [][]*models.UnifiedArticle
	for _, f := range fragments {
		text, _ := step.Params[f.key].(string)
		if text == "" {
			continue
		}
		analyzed := e.Analyzer.Analyze(ctx, text)
		results, err := e.Dispatcher.Dispatch(ctx, analyzed.Providers, text, limit, models.Filters{})
		if err != nil {
			return models.StepResult{}, err
		}
		var ranked []*models.UnifiedArticle
		for _, r := range results {
			ranked = append(ranked, r.Records...)
		}
		aggregate.Score(ranked, aggregate.Context{Query: text, Entities: analyzed.Entities, Profile: analyzed.RankingProfile})
		aggregate.SortRanked(ranked)
		rankLists = append(rankLists, ranked)
	}

	fused := aggregate.RRFFuse(rankLists)
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}
	out := toValues(fused)
	return models.StepResult{Articles: out, ExternalIDs: ids(out)}, nil
}

func (e *Executor) runExpand(ctx context.Context, step models.PipelineStep) (models.StepResult, error) {
	q, _ := step.Params["query"].(string)
	analyzed := e.Analyzer.Analyze(ctx, q)
	enhanced := e.Enhancer.Enhance(ctx, analyzed, analyzed.Providers)

	terms := make([]string, 0)
	for _, exp := range enhanced.Expansions {
		terms = append(terms, exp.Terms...)
	}
	derived := make([]string, 0, len(enhanced.Derived))
	for _, d := range enhanced.Derived {
		derived = append(derived, d.QueryString)
	}
	return models.StepResult{
		Metadata: map[string]interface{}{"expansion_terms": terms, "derived_queries": derived},
	}, nil
}

type lookupFn func(ctx context.Context, registry map[string]providers.Provider, id string, limit int) ([]*models.UnifiedArticle, *models.UnifiedArticle, error)

func (e *Executor) runLookup(ctx context.Context, step models.PipelineStep, inputs []models.UnifiedArticle, fn lookupFn) (models.StepResult, error) {
	limit := intParam(step.Params, "limit", 20)
	seedIDs := stepSeedIDs(step, inputs)
	if len(seedIDs) == 0 {
		return models.StepResult{}, fmt.Errorf("%s step has no input article IDs to look up", step.Action)
	}

	var out []*models.UnifiedArticle
	for _, id := range seedIDs {
		list, single, err := fn(ctx, e.Providers, id, limit)
		if err != nil {
			log.Warn().Str("id", id).Str("action", string(step.Action)).Err(err).Msg("pipeline lookup step: provider error, continuing")
			continue
		}
		if single != nil {
			out = append(out, single)
		}
		out = append(out, list...)
	}
	values := toValues(out)
	return models.StepResult{Articles: values, ExternalIDs: ids(values)}, nil
}

func stepSeedIDs(step models.PipelineStep, inputs []models.UnifiedArticle) []string {
	if raw, ok := step.Params["ids"].([]interface{}); ok {
		out := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	if id, ok := step.Params["id"].(string); ok && id != "" {
		return []string{id}
	}
	return ids(inputs)
}

func lookupDetails(ctx context.Context, registry map[string]providers.Provider, id string, _ int) ([]*models.UnifiedArticle, *models.UnifiedArticle, error) {
	for _, p := range registry {
		if f, ok := p.(providers.Fetcher); ok {
			a, err := f.Fetch(ctx, id)
			if err == nil {
				return nil, a, nil
			}
			if !providers.IsNotFound(err) {
				continue
			}
		}
	}
	return nil, nil, fmt.Errorf("no provider could resolve details for %q", id)
}

func lookupRelated(ctx context.Context, registry map[string]providers.Provider, id string, limit int) ([]*models.UnifiedArticle, *models.UnifiedArticle, error) {
	for _, p := range registry {
		if r, ok := p.(providers.Related); ok {
			list, err := r.Related(ctx, id, limit)
			if err == nil {
				return list, nil, nil
			}
		}
	}
	return nil, nil, nil
}

func lookupCiting(ctx context.Context, registry map[string]providers.Provider, id string, limit int) ([]*models.UnifiedArticle, *models.UnifiedArticle, error) {
	for _, p := range registry {
		if c, ok := p.(providers.Citing); ok {
			list, err := c.Citing(ctx, id, limit)
			if err == nil {
				return list, nil, nil
			}
		}
	}
	return nil, nil, nil
}

func lookupReferences(ctx context.Context, registry map[string]providers.Provider, id string, limit int) ([]*models.UnifiedArticle, *models.UnifiedArticle, error) {
	for _, p := range registry {
		if r, ok := p.(providers.References); ok {
			list, err := r.References(ctx, id, limit)
			if err == nil {
				return list, nil, nil
			}
		}
	}
	return nil, nil, nil
}

func (e *Executor) runMetrics(ctx context.Context, inputs []models.UnifiedArticle) (models.StepResult, error) {
	ptrs := toPointers(inputs)
	e.Enricher.Enrich(ctx, ptrs)
	out := toValues(ptrs)
	return models.StepResult{Articles: out, ExternalIDs: ids(out)}, nil
}

func (e *Executor) runMerge(step models.PipelineStep, inputs []models.UnifiedArticle) (models.StepResult, error) {
	profile, _ := step.Params["ranking"].(string)
	if profile == "" {
		profile = "balanced"
	}
	limit := intParam(step.Params, "limit", 0)

	fusion, _ := step.Params["fusion"].(string)
	if fusion == "rrf" {
		fused := aggregate.RRFFuse([][]*models.UnifiedArticle{toPointers(inputs)})
		if limit > 0 && len(fused) > limit {
			fused = fused[:limit]
		}
		out := toValues(fused)
		return models.StepResult{Articles: out, ExternalIDs: ids(out)}, nil
	}

	merged, _ := aggregate.AggregateRecords(toPointers(inputs), aggregate.Config{
		Strategy: aggregate.StrategyModerate,
		Profile:  profile,
		Limit:    limit,
		UseMMR:   false,
	})
	return models.StepResult{Articles: merged, ExternalIDs: ids(merged)}, nil
}

func (e *Executor) runFilter(step models.PipelineStep, inputs []models.UnifiedArticle) (models.StepResult, error) {
	yearMin, hasYearMin := step.Params["year_min"]
	yearMax, hasYearMax := step.Params["year_max"]
	minCitations, hasMinCitations := step.Params["min_citations"]
	language, _ := step.Params["language"].(string)
	typePattern, _ := step.Params["article_type"].(string)

	out := make([]models.UnifiedArticle, 0, len(inputs))
	for _, a := range inputs {
		if hasYearMin && (a.Year == nil || *a.Year < toInt(yearMin)) {
			continue
		}
		if hasYearMax && (a.Year == nil || *a.Year > toInt(yearMax)) {
			continue
		}
		if hasMinCitations {
			count := 0
			if a.Citations != nil {
				count = a.Citations.CitationCount
			}
			if count < toInt(minCitations) {
				continue
			}
		}
		if language != "" && !strings.EqualFold(a.Language, language) {
			continue
		}
		if typePattern != "" && !matchesAnyType(a.ArticleTypeList, typePattern) {
			continue
		}
		out = append(out, a)
	}
	return models.StepResult{Articles: out, ExternalIDs: ids(out)}, nil
}

func matchesAnyType(types []string, pattern string) bool {
	for _, t := range types {
		if wildcard.Match(strings.ToLower(pattern), strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// finalOutput picks the last step's (or, when no steps produced a usable
// terminal value, the last non-empty step's) articles, applying Output's
// limit.
func (e *Executor) finalOutput(results []models.StepResult, out models.OutputConfig) []models.UnifiedArticle {
	var final []models.UnifiedArticle
	for i := len(results) - 1; i >= 0; i-- {
		if len(results[i].Articles) > 0 {
			final = results[i].Articles
			break
		}
	}
	if out.Limit > 0 && len(final) > out.Limit {
		final = final[:out.Limit]
	}
	return final
}

func ids(articles []models.UnifiedArticle) []string {
	out := make([]string, 0, len(articles))
	for _, a := range articles {
		out = append(out, a.ID)
	}
	return out
}

func toPointers(articles []models.UnifiedArticle) []*models.UnifiedArticle {
	out := make([]*models.UnifiedArticle, len(articles))
	for i := range articles {
		a := articles[i]
		out[i] = &a
	}
	return out
}

func toValues(articles []*models.UnifiedArticle) []models.UnifiedArticle {
	out := make([]models.UnifiedArticle, len(articles))
	for i, a := range articles {
		out[i] = *a
	}
	return out
}

func intParam(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	return toInt(v)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}
