package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/dispatch"
	"github.com/biolit-mcp/litsearch-mcp/internal/enhance"
	"github.com/biolit-mcp/litsearch-mcp/internal/enrich"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
	"github.com/biolit-mcp/litsearch-mcp/internal/query"
)

type fakeProvider struct {
	key     string
	records []*models.UnifiedArticle
}

func (f *fakeProvider) Key() string { return f.key }
func (f *fakeProvider) Search(ctx context.Context, q string, limit int, filters providers.Filters) (providers.SearchResult, error) {
	return providers.SearchResult{Records: f.records}, nil
}

func newExecutor(registry map[string]providers.Provider) *Executor {
	return &Executor{
		Providers:  registry,
		Dispatcher: dispatch.New(registry, dispatch.DefaultConfig()),
		Analyzer:   query.New(nil),
		Enhancer:   enhance.New(nil),
		Enricher:   enrich.New(nil, nil),
		Templates:  NewTemplateRegistry(),
	}
}

func yr(y int) *int { return &y }

func TestExecutorRunsSearchStep(t *testing.T) {
	registry := map[string]providers.Provider{
		"pubmed": &fakeProvider{key: "pubmed", records: []*models.UnifiedArticle{
			{ID: "1", Title: "Sepsis outcomes", PrimarySource: "pubmed", Year: yr(2020), Provenance: map[string]struct{}{"pubmed": {}}},
		}},
	}
	exec := newExecutor(registry)

	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{"query": "sepsis", "providers": []interface{}{"pubmed"}}},
		},
		Output: models.OutputConfig{Limit: 10},
	}
	run, err := exec.Execute(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, run.Aborted)
	require.Len(t, run.StepResults, 1)
	assert.Equal(t, "s1", run.StepResults[0].StepID)
	require.Len(t, run.Final, 1)
	assert.Equal(t, "1", run.Final[0].ID)
}

func TestExecutorMergeStepDedupsAcrossInputs(t *testing.T) {
	registry := map[string]providers.Provider{
		"pubmed": &fakeProvider{key: "pubmed", records: []*models.UnifiedArticle{
			{ID: "1", AlternateIDs: map[string]string{"doi": "10.1/x"}, Title: "Study A", PrimarySource: "pubmed", Year: yr(2021), Provenance: map[string]struct{}{"pubmed": {}}},
		}},
		"crossref": &fakeProvider{key: "crossref", records: []*models.UnifiedArticle{
			{ID: "c1", AlternateIDs: map[string]string{"doi": "10.1/x"}, Title: "Study A", PrimarySource: "crossref", Year: yr(2021), Provenance: map[string]struct{}{"crossref": {}}},
		}},
	}
	exec := newExecutor(registry)

	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "a", Action: models.ActionSearch, Params: map[string]interface{}{"query": "x", "providers": []interface{}{"pubmed"}}},
			{ID: "b", Action: models.ActionSearch, Params: map[string]interface{}{"query": "x", "providers": []interface{}{"crossref"}}},
			{ID: "merge", Action: models.ActionMerge, Inputs: []string{"a", "b"}, Params: map[string]interface{}{"ranking": "balanced"}},
		},
	}
	run, err := exec.Execute(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, run.StepResults, 3)
	mergeResult := run.StepResults[2]
	assert.Len(t, mergeResult.Articles, 1, "same-DOI records from two providers should dedup into one")
}

func TestExecutorFilterStep(t *testing.T) {
	exec := newExecutor(map[string]providers.Provider{})
	inputs := []models.UnifiedArticle{
		{ID: "1", Year: yr(2010)},
		{ID: "2", Year: yr(2022)},
	}
	result, err := exec.runFilter(models.PipelineStep{Params: map[string]interface{}{"year_min": 2015}}, inputs)
	require.NoError(t, err)
	require.Len(t, result.Articles, 1)
	assert.Equal(t, "2", result.Articles[0].ID)
}

func TestExecutorAbortsOnErrorPolicy(t *testing.T) {
	exec := newExecutor(map[string]providers.Provider{})
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{}, OnError: models.OnErrorAbort},
		},
	}
	run, err := exec.Execute(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.True(t, run.Aborted)
	assert.NotEmpty(t, run.AbortReason)
}

func TestExecutorSkipsOnErrorPolicy(t *testing.T) {
	exec := newExecutor(map[string]providers.Provider{})
	cfg := models.PipelineConfig{
		Steps: []models.PipelineStep{
			{ID: "s1", Action: models.ActionSearch, Params: map[string]interface{}{}, OnError: models.OnErrorSkip},
			{ID: "s2", Action: models.ActionFilter, Inputs: []string{"s1"}, Params: map[string]interface{}{}},
		},
	}
	run, err := exec.Execute(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.False(t, run.Aborted)
	require.Len(t, run.StepResults, 2)
	assert.NotEmpty(t, run.StepResults[0].Err)
	assert.Empty(t, run.StepResults[1].Articles)
}

func TestTopoSortRespectsDependencies(t *testing.T) {
	steps := []models.PipelineStep{
		{ID: "c", Inputs: []string{"b"}},
		{ID: "a"},
		{ID: "b", Inputs: []string{"a"}},
	}
	order, err := topoSort(steps)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPICOTemplateExpandsToSearchAndMerge(t *testing.T) {
	reg := NewTemplateRegistry()
	cfg := models.PipelineConfig{
		Template: "pico",
		TemplateParams: map[string]interface{}{
			"P": "adults with sepsis",
			"I": "early antibiotics",
			"C": "delayed antibiotics",
			"O": "30-day mortality",
		},
	}
	expanded, err := reg.Expand(cfg)
	require.NoError(t, err)
	require.Len(t, expanded.Steps, 5)
	last := expanded.Steps[len(expanded.Steps)-1]
	assert.Equal(t, models.ActionMerge, last.Action)
	assert.Len(t, last.Inputs, 4)
}
