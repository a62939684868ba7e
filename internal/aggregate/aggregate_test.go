package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func yr(y int) *int { return &y }

func mkArticle(id, title, source string, year int) *models.UnifiedArticle {
	a := &models.UnifiedArticle{
		ID:            id,
		Title:         title,
		Abstract:      "an abstract about " + title,
		Year:          yr(year),
		PrimarySource: source,
		AlternateIDs:  map[string]string{},
		MeSHTerms:     map[string]struct{}{},
		ArticleTypes:  map[string]struct{}{},
	}
	a.AddProvenance(source)
	return a
}

func TestAggregateEmptyInputYieldsEmptyStats(t *testing.T) {
	out, stats := AggregateRecords(nil, DefaultConfig())
	assert.Empty(t, out)
	assert.Equal(t, 0, stats.TotalInput)
}

func TestDedupStrictMergesSharedID(t *testing.T) {
	a := mkArticle("100", "Early antibiotics in sepsis", "pubmed", 2020)
	b := mkArticle("100", "Early antibiotics in sepsis", "europepmc", 2020)

	out, stats := AggregateRecords([]*models.UnifiedArticle{a, b}, Config{Strategy: StrategyStrict, Profile: "balanced"})
	require.Len(t, out, 1)
	assert.Equal(t, 1, stats.DuplicatesRemoved)
	assert.Contains(t, out[0].ProvenanceList, "pubmed")
	assert.Contains(t, out[0].ProvenanceList, "europepmc")
}

func TestDedupModerateMergesSimilarTitlesSameYear(t *testing.T) {
	a := mkArticle("1", "Early goal directed therapy for severe sepsis and septic shock", "pubmed", 2001)
	b := mkArticle("2", "Early goal directed therapy for severe sepsis septic shock", "europepmc", 2001)

	out, _ := AggregateRecords([]*models.UnifiedArticle{a, b}, Config{Strategy: StrategyModerate, Profile: "balanced"})
	assert.Len(t, out, 1)
}

func TestPrimarySourceAlwaysInProvenance(t *testing.T) {
	a := mkArticle("1", "Alpha", "pubmed", 2020)
	b := mkArticle("2", "Beta", "europepmc", 2019)

	out, _ := AggregateRecords([]*models.UnifiedArticle{a, b}, DefaultConfig())
	for _, art := range out {
		assert.Contains(t, art.ProvenanceList, art.PrimarySource)
	}
}

func TestDedupIsIdempotent(t *testing.T) {
	a := mkArticle("1", "Machine learning for sepsis prediction", "pubmed", 2021)
	b := mkArticle("2", "Deep learning for ARDS outcomes", "europepmc", 2022)
	records := []*models.UnifiedArticle{a, b}

	cfg := Config{Strategy: StrategyModerate, Profile: "balanced", Query: "sepsis"}
	once, _ := AggregateRecords(records, cfg)

	doubled := append(append([]*models.UnifiedArticle{}, records...), records...)
	twice, _ := AggregateRecords(doubled, cfg)

	require.Len(t, once, len(twice))
	for i := range once {
		assert.Equal(t, once[i].ID, twice[i].ID)
	}
}

func TestRankingIsDeterministic(t *testing.T) {
	articles := []*models.UnifiedArticle{
		mkArticle("1", "Sepsis outcomes in the ICU", "pubmed", 2022),
		mkArticle("2", "Sepsis treatment guidelines", "europepmc", 2021),
		mkArticle("3", "Unrelated cardiology review", "crossref", 2020),
	}
	cfg := Context{Query: "sepsis treatment", Profile: "balanced"}

	clone := func() []*models.UnifiedArticle {
		out := make([]*models.UnifiedArticle, len(articles))
		for i, a := range articles {
			c := *a
			out[i] = &c
		}
		return out
	}

	first := clone()
	Score(first, cfg)
	SortRanked(first)

	second := clone()
	Score(second, cfg)
	SortRanked(second)

	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

func TestNoDuplicatePrimaryIDsInModerateOutput(t *testing.T) {
	articles := []*models.UnifiedArticle{
		mkArticle("1", "Alpha study of sepsis biomarkers", "pubmed", 2020),
		mkArticle("2", "Beta study of ARDS ventilation", "europepmc", 2019),
		mkArticle("3", "Gamma review of antibiotic stewardship", "crossref", 2018),
	}
	out, _ := AggregateRecords(articles, Config{Strategy: StrategyModerate, Profile: "balanced"})

	seen := map[string]bool{}
	for _, a := range out {
		assert.False(t, seen[a.ID], "duplicate primary ID in output: %s", a.ID)
		seen[a.ID] = true
	}
}

func TestRRFFuseCombinesProviderRankLists(t *testing.T) {
	listA := []*models.UnifiedArticle{mkArticle("1", "A", "pubmed", 2020), mkArticle("2", "B", "pubmed", 2019)}
	listB := []*models.UnifiedArticle{mkArticle("2", "B", "europepmc", 2019), mkArticle("3", "C", "europepmc", 2018)}

	fused := RRFFuse([][]*models.UnifiedArticle{listA, listB})
	require.Len(t, fused, 3)
	// "2" appears at rank 2 in list A and rank 1 in list B, giving it the
	// highest combined reciprocal-rank score.
	assert.Equal(t, "2", fused[0].ID)
	assert.Contains(t, fused[0].ProvenanceList, "pubmed")
	assert.Contains(t, fused[0].ProvenanceList, "europepmc")
}
