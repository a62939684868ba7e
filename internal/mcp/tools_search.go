package mcp

import (
	"context"
	"time"

	"github.com/biolit-mcp/litsearch-mcp/internal/aggregate"
	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/relax"
	"github.com/biolit-mcp/litsearch-mcp/internal/render"
)

func init() {
	registerSearchTools(builtinTools)
}

var builtinTools = NewToolRegistry()

// BuiltinTools returns the registry every cmd entry point wires into a
// Server: the full tool surface, registered once at package init time.
func BuiltinTools() *ToolRegistry { return builtinTools }

func registerSearchTools(r *ToolRegistry) {
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "unified_search",
			Description: "Run a federated biomedical literature search across every configured provider, returning a ranked, deduplicated article list.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"query":   {Type: "string", Description: "free-text or field-tagged query"},
					"limit":   {Type: "integer", Description: "max articles to return", Default: 20},
					"filters": {Type: "string", Description: "comma-separated filter tokens, e.g. year:2015-2024,age:child"},
					"options": {Type: "string", Description: "comma-separated option flags, e.g. preprints,no_relax"},
					"format":  {Type: "string", Description: "markdown or json", Enum: []string{"markdown", "json"}, Default: "markdown"},
				},
				Required: []string{"query"},
			},
		},
		Handler: handleUnifiedSearch,
	})

	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "analyze_search_query",
			Description: "Classify a query's complexity and intent and recommend a provider subset and ranking profile, without running a search.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]PropertySchema{"query": {Type: "string"}},
				Required:   []string{"query"},
			},
		},
		Handler: handleAnalyzeSearchQuery,
	})
}

func handleAnalyzeSearchQuery(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "query is required", Suggestion: "pass a non-empty query string", Example: `{"query": "metformin and longevity"}`}), nil
	}
	aq := svc.Analyzer.Analyze(ctx, query)
	return NewJSONResult(aq), nil
}

func handleUnifiedSearch(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	query := argString(args, "query")
	if query == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "query is required", Suggestion: "pass a non-empty query string", Example: `{"query": "remimazolam vs propofol"}`}), nil
	}
	limit := argInt(args, "limit", 20)
	filters := parseFilters(args["filters"])
	opts := parseOptions(args["options"])
	format := argString(args, "format")
	if format == "" {
		format = "markdown"
	}

	resp, err := runSearch(ctx, svc, query, limit, filters, opts)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Retryable: true, RetryAfter: 5}), nil
	}

	if format == "json" {
		return NewJSONResult(resp), nil
	}
	return NewTextResult(render.Markdown(resp)), nil
}

// runSearch implements the full unified_search pipeline: analyze ->
// enhance -> dispatch -> aggregate -> relax-on-empty -> enrich,
// assembling a single SearchResponse.
func runSearch(ctx context.Context, svc *Service, query string, limit int, filters models.Filters, opts SearchOptions) (models.SearchResponse, error) {
	aq := svc.Analyzer.Analyze(ctx, query)
	providerKeys := aq.Providers
	if opts.NoPeerReview {
		// "all_types" / "no_peer_review" widens the roster to include
		// preprint servers even for queries the analyzer judged clinical.
		providerKeys = append(providerKeys, "biorxiv")
	}
	if !opts.Preprints && !opts.NoPeerReview {
		providerKeys = withoutProvider(providerKeys, "biorxiv")
	}

	articles, stats, err := dispatchAndAggregate(ctx, svc, query, providerKeys, aq, limit, filters, opts)
	if err != nil {
		return models.SearchResponse{}, err
	}

	relaxed := false
	var trail []models.RelaxAttempt
	if !opts.NoRelax && len(articles) < svc.RelaxCfg.MinResults {
		runner := func(ctx context.Context, q string, f models.Filters) ([]models.UnifiedArticle, error) {
			arts, _, rerr := dispatchAndAggregate(ctx, svc, q, providerKeys, aq, limit, f, opts)
			return arts, rerr
		}
		result, rerr := relax.Relax(ctx, query, filters, aq.Entities, svc.RelaxCfg, runner)
		if rerr != nil {
			return models.SearchResponse{}, rerr
		}
		if result.Relaxed {
			relaxed = true
			articles = result.Articles
			for _, a := range result.Trail {
				trail = append(trail, models.RelaxAttempt{Step: a.Step, Query: a.Query, ResultCount: a.ResultCount})
			}
		}
	}

	if !opts.NoAnalysis {
		svc.Enricher.Enrich(ctx, toPointers(articles))
	}

	var degraded []models.DegradedProvider
	for _, o := range stats.ProviderOutcomes {
		if o.Err != "" {
			degraded = append(degraded, models.DegradedProvider{Provider: o.Provider, Err: o.Err, Retryable: o.Retryable, DurationMS: o.DurationMillis})
		}
	}

	return models.SearchResponse{
		Query:      query,
		Analyzed:   aq,
		Articles:   articles,
		Stats:      toStatsView(stats),
		Relaxed:    relaxed,
		RelaxTrail: trail,
		Degraded:   degraded,
		ShowScores: !opts.NoScores,
	}, nil
}

func dispatchAndAggregate(ctx context.Context, svc *Service, query string, providerKeys []string, aq models.AnalyzedQuery, limit int, filters models.Filters, opts SearchOptions) ([]models.UnifiedArticle, aggregate.AggregationStats, error) {
	queries := make([]dispatch.ProviderQuery, 0, len(providerKeys))
	if opts.NoAnalysis {
		for _, p := range providerKeys {
			queries = append(queries, dispatch.ProviderQuery{Provider: p, Query: query})
		}
	} else {
		enhanced := svc.Enhancer.Enhance(ctx, aq, providerKeys)
		for _, dq := range enhanced.Derived {
			queries = append(queries, dispatch.ProviderQuery{Provider: dq.Provider, Query: dq.QueryString})
		}
	}

	results, err := svc.Dispatcher.DispatchMixed(ctx, queries, limit, filters)
	if err != nil {
		return nil, aggregate.AggregationStats{}, err
	}
	publishDispatchResults(svc, results)

	cfg := aggregate.DefaultConfig()
	cfg.Limit = limit
	cfg.Query = query
	cfg.Entities = aq.Entities
	cfg.Now = time.Now()
	if opts.Shallow {
		cfg.UseMMR = false
	}

	articles, stats := aggregate.Aggregate(results, cfg)
	svc.Metrics.AddDuplicatesRemoved(stats.DuplicatesRemoved)
	rc := aggregate.Context{Query: query, Entities: aq.Entities, Now: cfg.Now, Profile: aq.RankingProfile}
	ptrs := toPointers(articles)
	aggregate.Score(ptrs, rc)
	aggregate.SortRanked(ptrs)
	return toValues(ptrs), stats, nil
}

// publishDispatchResults records per-provider dispatch metrics and emits
// an /events progress notification for each completed provider.
func publishDispatchResults(svc *Service, results []dispatch.Result) {
	for _, r := range results {
		d := time.Duration(r.Outcome.DurationMillis) * time.Millisecond
		errCategory := ""
		if r.Outcome.Err != "" {
			errCategory = "transient"
			if !r.Outcome.Retryable {
				errCategory = "permanent"
			}
		}
		svc.Metrics.RecordDispatch(r.Provider, d, errCategory)
		svc.Events.Publish(ProgressEvent{
			Kind:       "provider_finished",
			Provider:   r.Provider,
			Records:    len(r.Records),
			Err:        r.Outcome.Err,
			DurationMS: r.Outcome.DurationMillis,
			At:         time.Now(),
		})
	}
}

func toStatsView(stats aggregate.AggregationStats) models.AggregationStatsView {
	total := make(map[string]int, len(stats.ProviderOutcomes))
	for _, o := range stats.ProviderOutcomes {
		if o.TotalCount != nil {
			total[o.Provider] = *o.TotalCount
		}
	}
	return models.AggregationStatsView{
		TotalInput:              stats.TotalInput,
		UniqueArticles:          stats.UniqueArticles,
		DuplicatesRemoved:       stats.DuplicatesRemoved,
		PerProviderContribution: stats.PerProviderContribution,
		PerProviderTotal:        total,
	}
}

func withoutProvider(keys []string, drop string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}

func toPointers(articles []models.UnifiedArticle) []*models.UnifiedArticle {
	out := make([]*models.UnifiedArticle, len(articles))
	for i := range articles {
		out[i] = &articles[i]
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
