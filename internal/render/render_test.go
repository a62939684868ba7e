package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func yr(y int) *int { return &y }

// TestSimpleLookupSourcesLine: a single-PMID lookup produces a
// "pubmed (1/1)" Sources line.
func TestSimpleLookupSourcesLine(t *testing.T) {
	resp := models.SearchResponse{
		Query: "PMID:37654670",
		Articles: []models.UnifiedArticle{
			{ID: "PMID:37654670", Title: "A sepsis study", PrimarySource: "pubmed", Year: yr(2023)},
		},
		Stats: models.AggregationStatsView{
			PerProviderContribution: map[string]int{"pubmed": 1},
			PerProviderTotal:        map[string]int{"pubmed": 1},
		},
	}
	md := Markdown(resp)
	assert.Contains(t, md, "**Sources**: pubmed (1/1)")
	assert.Contains(t, md, "A sepsis study")
}

func TestSourcesLineOmitsTotalWhenUnknown(t *testing.T) {
	resp := models.SearchResponse{
		Stats: models.AggregationStatsView{
			PerProviderContribution: map[string]int{"biorxiv": 4},
		},
	}
	md := Markdown(resp)
	assert.Contains(t, md, "**Sources**: biorxiv (4)")
	assert.NotContains(t, md, "biorxiv (4/")
}

func TestAuthorsLineTruncatesAtThreeWithEtAl(t *testing.T) {
	authors := []models.Author{{Name: "A"}, {Name: "B"}, {Name: "C"}, {Name: "D"}}
	line := authorsLine(authors)
	assert.Equal(t, "A, B, C et al.", line)
}

func TestAuthorsLineNoEtAlUnderThree(t *testing.T) {
	authors := []models.Author{{Name: "A"}, {Name: "B"}}
	line := authorsLine(authors)
	assert.Equal(t, "A, B", line)
}

func TestBadgesIncludeOpenAccessAndPreprint(t *testing.T) {
	a := models.UnifiedArticle{
		ArticleTypeList: []string{"preprint"},
		OALinks:         []models.OpenAccessLink{{URL: "https://example.org/x.pdf", IsPDF: true}},
	}
	badges := badgesFor(a)
	assert.Contains(t, badges, "preprint")
	assert.Contains(t, badges, "open access")
}

func TestJSONRendersValidPayload(t *testing.T) {
	resp := models.SearchResponse{Query: "sepsis", Articles: []models.UnifiedArticle{{ID: "1", Title: "X"}}}
	raw, err := JSON(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"query":"sepsis"`)
}

func TestMultipleProvidersSortedAlphabetically(t *testing.T) {
	resp := models.SearchResponse{
		Stats: models.AggregationStatsView{
			PerProviderContribution: map[string]int{"pubmed": 3, "crossref": 2, "biorxiv": 1},
		},
	}
	md := Markdown(resp)
	pIdx := indexOf(md, "pubmed")
	cIdx := indexOf(md, "crossref")
	bIdx := indexOf(md, "biorxiv")
	assert.True(t, bIdx < cIdx && cIdx < pIdx, "providers should be alphabetically ordered in the Sources line")
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
