package relax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func yr(y int) *int { return &y }

func articles(n int) []models.UnifiedArticle {
	out := make([]models.UnifiedArticle, n)
	for i := range out {
		out[i] = models.UnifiedArticle{ID: "id", PrimarySource: "pubmed"}
	}
	return out
}

func TestRelaxSkipsWhenInitialRunClearsMinimum(t *testing.T) {
	calls := 0
	run := func(ctx context.Context, q string, f models.Filters) ([]models.UnifiedArticle, error) {
		calls++
		return articles(3), nil
	}

	res, err := Relax(context.Background(), "sepsis", models.Filters{}, nil, DefaultConfig(), run)
	require.NoError(t, err)
	assert.False(t, res.Relaxed)
	assert.Empty(t, res.Trail)
	assert.Len(t, res.Articles, 3)
	assert.Equal(t, 1, calls)
}

func TestRelaxStopsAtFirstClearingStep(t *testing.T) {
	var queries []string
	var filterTrail []models.Filters
	run := func(ctx context.Context, q string, f models.Filters) ([]models.UnifiedArticle, error) {
		queries = append(queries, q)
		filterTrail = append(filterTrail, f)
		// Initial run and the first relaxation step come up empty; the
		// article-type drop is the one that finds results.
		if len(queries) < 3 {
			return nil, nil
		}
		return articles(2), nil
	}

	filters := models.Filters{YearMin: yr(2024), YearMax: yr(2024), ArticleTypes: []string{"review"}}
	res, err := Relax(context.Background(), "obscure-term", filters, nil, DefaultConfig(), run)
	require.NoError(t, err)
	assert.True(t, res.Relaxed)
	require.Len(t, res.Trail, 2)
	assert.Equal(t, "drop_date_filter", res.Trail[0].Step)
	assert.Equal(t, "drop_article_type_filter", res.Trail[1].Step)
	assert.Equal(t, 0, res.Trail[0].ResultCount)
	assert.Equal(t, 2, res.Trail[1].ResultCount)
	assert.Len(t, res.Articles, 2)

	// First relaxation keeps the type filter but clears the date bounds;
	// the second clears the type filter too.
	require.Len(t, filterTrail, 3)
	assert.Nil(t, filterTrail[1].YearMin)
	assert.Equal(t, []string{"review"}, filterTrail[1].ArticleTypes)
	assert.Empty(t, filterTrail[2].ArticleTypes)
}

func TestRelaxChainNeverExceedsFiveSteps(t *testing.T) {
	calls := 0
	run := func(ctx context.Context, q string, f models.Filters) ([]models.UnifiedArticle, error) {
		calls++
		return nil, nil
	}

	res, err := Relax(context.Background(), "nothing-matches AND this", models.Filters{YearMin: yr(2020)}, nil, DefaultConfig(), run)
	require.NoError(t, err)
	assert.True(t, res.Relaxed)
	assert.Len(t, res.Trail, 5)
	assert.Equal(t, 6, calls) // initial + 5 relaxation steps
	assert.Empty(t, res.Articles)
	assert.Equal(t, "fallback_single_keyword", res.Trail[4].Step)
}

func TestRelaxCollapsesBooleanToTopTwoEntities(t *testing.T) {
	entities := []models.ResolvedEntity{
		{Name: "propofol", Score: 0.7},
		{Name: "remimazolam", Score: 0.9},
		{Name: "midazolam", Score: 0.4},
	}

	steps := relaxationSteps("remimazolam AND propofol AND midazolam", models.Filters{}, entities)
	require.Len(t, steps, 5)
	assert.Equal(t, "remimazolam OR propofol", steps[3].query)
	assert.Equal(t, "remimazolam", steps[4].query)
}

func TestRelaxKeywordFallbackWithoutEntities(t *testing.T) {
	steps := relaxationSteps("tiny foobarbaz-nonexistent-term query", models.Filters{}, nil)
	// Without two entities the OR collapse leaves the query unchanged.
	assert.Equal(t, "tiny foobarbaz-nonexistent-term query", steps[3].query)
	assert.Equal(t, "foobarbaz-nonexistent-term", steps[4].query)
}

func TestRelaxPropagatesRunnerError(t *testing.T) {
	run := func(ctx context.Context, q string, f models.Filters) ([]models.UnifiedArticle, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := Relax(context.Background(), "anything", models.Filters{}, nil, DefaultConfig(), run)
	assert.Error(t, err)
}
