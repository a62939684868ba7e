package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func year(y int) *int { return &y }

func TestDetectMilestonePrefersLandmarkRCTOverGenericDiscovery(t *testing.T) {
	a := &models.UnifiedArticle{Title: "A landmark randomized controlled trial of discovery in heart failure"}
	m, label, conf := DetectMilestone(a)
	assert.Equal(t, models.MilestoneLandmarkRCT, m)
	assert.NotEmpty(t, label)
	assert.Greater(t, conf, 0.9)
}

func TestDetectMilestoneReturnsOtherWhenNoPatternMatches(t *testing.T) {
	a := &models.UnifiedArticle{Title: "An unremarkable observational note"}
	m, _, conf := DetectMilestone(a)
	assert.Equal(t, models.MilestoneOther, m)
	assert.Zero(t, conf)
}

func TestScoreTierThresholds(t *testing.T) {
	cfg := DefaultConfig()
	rcr := 5.0
	a := &models.UnifiedArticle{
		Title:           "A landmark randomized controlled trial establishing guideline practice",
		ArticleTypeList: []string{"meta_analysis"},
		ProvenanceList:  []string{"pubmed", "europepmc", "crossref"},
		Citations:       &models.CitationMetrics{RelativeCitationRat: rcr, Percentile: 99, CitationsPerYear: 40},
	}
	score := Score(a, cfg)
	assert.Equal(t, models.LandmarkTierLandmark, score.Tier)
	assert.GreaterOrEqual(t, score.Overall, cfg.LandmarkThreshold)
}

func TestScoreStandardTierForUnremarkableArticle(t *testing.T) {
	cfg := DefaultConfig()
	a := &models.UnifiedArticle{Title: "A minor case note"}
	score := Score(a, cfg)
	assert.Equal(t, models.LandmarkTierStandard, score.Tier)
}

func TestSourceAgreementSaturatesAtOne(t *testing.T) {
	cfg := DefaultConfig()
	a := &models.UnifiedArticle{ProvenanceList: []string{"a", "b", "c", "d", "e", "f"}}
	assert.Equal(t, 1.0, sourceAgreementOf(a, cfg))
}

func TestCitationVelocityClampsToUnitInterval(t *testing.T) {
	cfg := DefaultConfig()
	a := &models.UnifiedArticle{Citations: &models.CitationMetrics{CitationsPerYear: 1000}}
	assert.Equal(t, 1.0, citationVelocityOf(a, cfg))
}
