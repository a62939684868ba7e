package citetree

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

type fakeGraphProvider struct {
	articles map[string]*models.UnifiedArticle
	citing   map[string][]string
	refs     map[string][]string
}

func (f *fakeGraphProvider) Key() string { return "fake" }
func (f *fakeGraphProvider) Search(ctx context.Context, q string, limit int, filters providers.Filters) (providers.SearchResult, error) {
	return providers.SearchResult{}, nil
}
func (f *fakeGraphProvider) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, providers.NewNotFound("fake", fmt.Errorf("not found"))
	}
	return a, nil
}
func (f *fakeGraphProvider) Citing(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error) {
	return f.resolve(f.citing[id]), nil
}
func (f *fakeGraphProvider) References(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error) {
	return f.resolve(f.refs[id]), nil
}
func (f *fakeGraphProvider) resolve(ids []string) []*models.UnifiedArticle {
	var out []*models.UnifiedArticle
	for _, id := range ids {
		if a, ok := f.articles[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func newGraphFixture() *fakeGraphProvider {
	return &fakeGraphProvider{
		articles: map[string]*models.UnifiedArticle{
			"seed": {ID: "seed", Title: "Seed article"},
			"c1":   {ID: "c1", Title: "Citing one"},
			"c2":   {ID: "c2", Title: "Citing two"},
			"c1a":  {ID: "c1a", Title: "Citing c1"},
		},
		citing: map[string][]string{
			"seed": {"c1", "c2"},
			"c1":   {"c1a"},
		},
		refs: map[string][]string{},
	}
}

func TestBuildWalksCitingTwoLevels(t *testing.T) {
	p := newGraphFixture()
	b := New(map[string]providers.Provider{"fake": p})

	tree, err := b.Build(context.Background(), "seed", 2, models.DirectionCiting, 10)
	require.NoError(t, err)

	assert.Equal(t, "seed", tree.SeedID)
	assert.Len(t, tree.Nodes, 4) // seed, c1, c2, c1a
	assert.False(t, tree.Truncated)

	var depths = map[string]int{}
	for _, n := range tree.Nodes {
		depths[n.Article.ID] = n.Depth
	}
	assert.Equal(t, 0, depths["seed"])
	assert.Equal(t, 1, depths["c1"])
	assert.Equal(t, 2, depths["c1a"])
}

func TestBuildReturnsErrorForUnknownSeed(t *testing.T) {
	p := newGraphFixture()
	b := New(map[string]providers.Provider{"fake": p})
	_, err := b.Build(context.Background(), "missing", 1, models.DirectionCiting, 10)
	assert.Error(t, err)
}

func TestRenderAllFormatsProduceOutput(t *testing.T) {
	p := newGraphFixture()
	b := New(map[string]providers.Provider{"fake": p})
	tree, err := b.Build(context.Background(), "seed", 1, models.DirectionCiting, 10)
	require.NoError(t, err)

	formats := []models.CitationTreeFormat{
		models.FormatCytoscape, models.FormatG6, models.FormatD3,
		models.FormatVis, models.FormatGraphML, models.FormatMermaid,
	}
	for _, f := range formats {
		out, err := Render(tree, f)
		require.NoError(t, err, "format %s", f)
		assert.NotNil(t, out)
	}
}

func TestRenderMermaidContainsEdges(t *testing.T) {
	p := newGraphFixture()
	b := New(map[string]providers.Provider{"fake": p})
	tree, err := b.Build(context.Background(), "seed", 1, models.DirectionCiting, 10)
	require.NoError(t, err)

	out, err := Render(tree, models.FormatMermaid)
	require.NoError(t, err)
	mermaid := out.(string)
	assert.Contains(t, mermaid, "graph TD")
	assert.Contains(t, mermaid, "-->")
}
