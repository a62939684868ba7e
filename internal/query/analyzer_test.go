package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func TestAnalyzeSimpleLookup(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "PMID:37654670")

	assert.Equal(t, models.ComplexitySimple, aq.Complexity)
	assert.Equal(t, models.IntentLookup, aq.Intent)
	assert.Equal(t, []string{"pubmed"}, aq.Providers)
}

func TestAnalyzeComparison(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "remimazolam vs propofol for ICU sedation")

	assert.Equal(t, models.ComplexityComplex, aq.Complexity)
	assert.Equal(t, models.IntentComparison, aq.Intent)
	assert.GreaterOrEqual(t, len(aq.Providers), 2)
	assert.Equal(t, "impact", aq.RankingProfile)
}

func TestAnalyzeBareKeywordTopic(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "sepsis")

	assert.Equal(t, models.ComplexitySimple, aq.Complexity)
	assert.Equal(t, models.IntentTopic, aq.Intent)
	assert.Equal(t, []string{"pubmed"}, aq.Providers)
}

func TestAnalyzeFieldTaggedModerate(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "sepsis[mesh] AND antibiotics[tiab] AND mortality")

	assert.Equal(t, models.ComplexityModerate, aq.Complexity)
	assert.Contains(t, aq.Providers, "pubmed")
	assert.Contains(t, aq.Providers, "europepmc")
}

func TestAnalyzeImageSearchFlag(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "histology slide of pancreatic islet cells")
	assert.True(t, aq.ImageSearchRecommended)
}

func TestAnalyzeClinicalIntent(t *testing.T) {
	a := New(nil)
	aq := a.Analyze(context.Background(), "randomized clinical trial of early antibiotics in sepsis")
	assert.Equal(t, models.IntentClinical, aq.Intent)
	assert.Equal(t, "clinical", aq.RankingProfile)
	assert.Contains(t, aq.Providers, "clinicaltrials")
}
