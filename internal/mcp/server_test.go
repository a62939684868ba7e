package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/biolit-mcp/litsearch-mcp/internal/config"
	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/enhance"
	"github.com/biolit-mcp/litsearch-mcp/internal/entity"
	"github.com/biolit-mcp/litsearch-mcp/internal/enrich"
	"github.com/biolit-mcp/litsearch-mcp/internal/metrics"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
	"github.com/biolit-mcp/litsearch-mcp/internal/query"
	"github.com/biolit-mcp/litsearch-mcp/internal/relax"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeProvider is a single-provider roster stand-in: a minimal struct
// satisfying exactly the interface a handler needs, nothing more.
type fakeProvider struct {
	key     string
	records []*models.UnifiedArticle
}

func (f *fakeProvider) Key() string { return f.key }

func (f *fakeProvider) Search(ctx context.Context, q string, limit int, filters providers.Filters) (providers.SearchResult, error) {
	total := len(f.records)
	return providers.SearchResult{Records: f.records, TotalCount: &total}, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	article := &models.UnifiedArticle{
		ID:            "37654670",
		Title:         "A Randomized Trial of Remimazolam versus Propofol",
		Year:          intPtr(2023),
		PrimarySource: "pubmed",
	}
	article.AddProvenance("pubmed")

	fake := &fakeProvider{key: "pubmed", records: []*models.UnifiedArticle{article}}
	registry := map[string]providers.Provider{"pubmed": fake}

	resolver := entity.New(nil, entity.Config{TTL: 0, MaxSize: 10})

	return &Service{
		Config:     &config.Config{},
		Providers:  registry,
		Dispatcher: dispatch.New(registry, dispatch.DefaultConfig()),
		Resolver:   resolver,
		Analyzer:   query.New(resolver),
		Enhancer:   enhance.New(resolver),
		Enricher:   enrich.New(nil, nil),
		RelaxCfg:   relax.DefaultConfig(),
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Events:     NewEventHub(),
	}
}

func intPtr(n int) *int { return &n }

func TestToolRegistryListToolsIncludesEveryNamedTool(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range BuiltinTools().ListTools() {
		names[tool.Name] = true
	}

	for _, want := range []string{
		"unified_search", "analyze_search_query", "find_related_articles",
		"find_citing_articles", "get_article_references", "get_citation_metrics",
		"build_citation_tree", "build_research_timeline", "run_pipeline",
		"save_pipeline", "list_pipelines", "load_pipeline", "delete_pipeline",
		"get_pipeline_history", "get_fulltext",
	} {
		if !names[want] {
			t.Errorf("tool registry missing %q", want)
		}
	}
}

func TestHandleUnifiedSearchSimpleLookup(t *testing.T) {
	svc := newTestService(t)
	args := map[string]interface{}{"query": "PMID:37654670", "format": "json"}

	result, err := builtinTools.Execute(context.Background(), svc, "unified_search", args)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error result: %+v", result.Content)
	}

	var resp models.SearchResponse
	if err := json.Unmarshal([]byte(result.Content[0].Text), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(resp.Articles))
	}
	if resp.Articles[0].PrimarySource != "pubmed" {
		t.Errorf("expected primary_source pubmed, got %q", resp.Articles[0].PrimarySource)
	}
}

func TestHandleUnifiedSearchRequiresQuery(t *testing.T) {
	svc := newTestService(t)
	result, err := builtinTools.Execute(context.Background(), svc, "unified_search", map[string]interface{}{})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected an error result for a missing query")
	}
}

func TestHandleAnalyzeSearchQuery(t *testing.T) {
	svc := newTestService(t)
	result, err := builtinTools.Execute(context.Background(), svc, "analyze_search_query", map[string]interface{}{"query": "remimazolam vs propofol for ICU sedation"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result.Content)
	}

	var aq models.AnalyzedQuery
	if err := json.Unmarshal([]byte(result.Content[0].Text), &aq); err != nil {
		t.Fatalf("decoding analyzed query: %v", err)
	}
	if aq.Complexity != models.ComplexityComplex {
		t.Errorf("expected complex complexity, got %q", aq.Complexity)
	}
	if aq.Intent != models.IntentComparison {
		t.Errorf("expected comparison intent, got %q", aq.Intent)
	}
}

func TestExecuteUnknownToolReturnsError(t *testing.T) {
	svc := newTestService(t)
	result, err := builtinTools.Execute(context.Background(), svc, "does_not_exist", nil)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected an error result for an unknown tool")
	}
}

func TestServerHandleMethodToolsList(t *testing.T) {
	svc := newTestService(t)
	server := NewServer(":0", BuiltinTools(), svc, svc.Events)

	result, mcpErr := server.handleMethod(context.Background(), Request{JSONRPC: "2.0", Method: "tools/list"})
	if mcpErr != nil {
		t.Fatalf("unexpected protocol error: %+v", mcpErr)
	}
	listResult, ok := result.(*ListToolsResult)
	if !ok {
		t.Fatalf("expected *ListToolsResult, got %T", result)
	}
	if len(listResult.Tools) == 0 {
		t.Fatalf("expected a non-empty tool list")
	}
}

func TestServerHandleMethodUnknownMethod(t *testing.T) {
	svc := newTestService(t)
	server := NewServer(":0", BuiltinTools(), svc, svc.Events)

	_, mcpErr := server.handleMethod(context.Background(), Request{JSONRPC: "2.0", Method: "bogus/method"})
	if mcpErr == nil {
		t.Fatalf("expected a method-not-found error")
	}
	if mcpErr.Code != ErrMethodNotFound {
		t.Errorf("expected ErrMethodNotFound, got %d", mcpErr.Code)
	}
}
