// Package timeline implements the landmark scorer and branch/timeline
// builders: given enriched UnifiedArticle records, it computes a
// weighted importance score per article (several independently
// normalized signals combined with fixed weights into one overall score
// plus a tier) and groups milestone articles into a chronological
// timeline and a branch tree.
package timeline

import (
	"math"
	"regexp"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Weights holds the five landmark-score component weights.
type Weights struct {
	CitationImpact     float64
	SourceAgreement    float64
	MilestoneConfidence float64
	EvidenceQuality    float64
	CitationVelocity   float64
}

// DefaultWeights is (0.35, 0.15, 0.20, 0.15, 0.15), biased toward
// citation impact.
func DefaultWeights() Weights {
	return Weights{
		CitationImpact:      0.35,
		SourceAgreement:     0.15,
		MilestoneConfidence: 0.20,
		EvidenceQuality:     0.15,
		CitationVelocity:    0.15,
	}
}

// Config bounds the landmark scorer. CitationVelocityCap is the cap
// used to normalize citations_per_year into [0,1].
type Config struct {
	Weights              Weights
	CitationVelocityCap  float64
	LandmarkThreshold    float64
	NotableThreshold     float64
	ModerateThreshold    float64
	MaxRCR               float64
	SourceAgreementStep  float64
}

// DefaultConfig tiers at landmark >=0.80, notable >=0.60, moderate
// >=0.40, with a citation-velocity cap of 20 citations per year.
func DefaultConfig() Config {
	return Config{
		Weights:             DefaultWeights(),
		CitationVelocityCap: 20,
		LandmarkThreshold:   0.80,
		NotableThreshold:    0.60,
		ModerateThreshold:   0.40,
		MaxRCR:              5.0,
		SourceAgreementStep: 0.25,
	}
}

// evidenceQuality is a lookup table over article types, ordered roughly by
// evidentiary strength (systematic reviews/meta-analyses and guidelines
// outrank single RCTs, which outrank observational/case studies).
var evidenceQuality = map[string]float64{
	"meta_analysis":        1.00,
	"systematic_review":    0.95,
	"cochrane_review":      0.95,
	"guideline":            0.90,
	"randomized_controlled_trial": 0.80,
	"clinical_trial":       0.70,
	"review":               0.55,
	"cohort_study":         0.50,
	"case_control_study":   0.45,
	"observational_study":  0.40,
	"case_report":          0.20,
	"case_series":          0.25,
	"letter":               0.10,
	"comment":              0.10,
	"editorial":            0.10,
	"preprint":             0.30,
}

type milestonePattern struct {
	milestone  models.MilestoneType
	label      string
	confidence float64
	pattern    *regexp.Regexp
}

// milestonePatterns is checked in order; the first (and therefore
// highest-priority) match wins. Ordering places the more specific/rarer
// categories (landmark RCT, guideline, approval) ahead of the generic
// "discovery" catch so a title matching both isn't miscategorized.
var milestonePatterns = []milestonePattern{
	{models.MilestoneLandmarkRCT, "Landmark randomized controlled trial", 0.95,
		regexp.MustCompile(`(?i)\b(landmark|pivotal|practice[- ]changing)\b.{0,40}\b(trial|rct)\b`)},
	{models.MilestoneApproval, "Regulatory approval", 0.9,
		regexp.MustCompile(`(?i)\b(fda|ema|regulatory)\b.{0,30}\bapprov`)},
	{models.MilestoneWithdrawal, "Regulatory withdrawal", 0.9,
		regexp.MustCompile(`(?i)\bwithdraw(n|al)\b.{0,30}\b(market|approval)\b`)},
	{models.MilestoneLabelExpansion, "Label expansion", 0.75,
		regexp.MustCompile(`(?i)\blabel(ed)?\s+expansion\b`)},
	{models.MilestoneBlackBoxWarning, "Black box warning", 0.9,
		regexp.MustCompile(`(?i)\bblack[- ]box\s+warning\b`)},
	{models.MilestoneRecall, "Safety recall", 0.9,
		regexp.MustCompile(`(?i)\brecall(ed)?\b`)},
	{models.MilestoneSafetySignal, "Safety signal", 0.7,
		regexp.MustCompile(`(?i)\b(adverse event|safety signal|pharmacovigilance)\b`)},
	{models.MilestoneCochraneReview, "Cochrane review", 0.9,
		regexp.MustCompile(`(?i)\bcochrane\b`)},
	{models.MilestoneMetaAnalysis, "Meta-analysis", 0.85,
		regexp.MustCompile(`(?i)\bmeta[- ]analysis\b`)},
	{models.MilestoneSystematicReview, "Systematic review", 0.8,
		regexp.MustCompile(`(?i)\bsystematic review\b`)},
	{models.MilestoneGuidelineUpdate, "Guideline update", 0.85,
		regexp.MustCompile(`(?i)\b(updated?|revised)\s+guideline`)},
	{models.MilestoneGuideline, "Clinical guideline", 0.85,
		regexp.MustCompile(`(?i)\b(guideline|clinical practice recommendation)s?\b`)},
	{models.MilestoneConsensusStatement, "Consensus statement", 0.75,
		regexp.MustCompile(`(?i)\bconsensus (statement|recommendation)\b`)},
	{models.MilestonePhaseIV, "Phase IV trial", 0.7,
		regexp.MustCompile(`(?i)\bphase\s*(iv|4)\b`)},
	{models.MilestonePhaseIII, "Phase III trial", 0.75,
		regexp.MustCompile(`(?i)\bphase\s*(iii|3)\b`)},
	{models.MilestonePhaseII, "Phase II trial", 0.65,
		regexp.MustCompile(`(?i)\bphase\s*(ii|2)\b`)},
	{models.MilestonePhaseI, "Phase I trial", 0.6,
		regexp.MustCompile(`(?i)\bphase\s*(i|1)\b`)},
	{models.MilestoneMechanism, "Mechanism elucidation", 0.6,
		regexp.MustCompile(`(?i)\bmechanism(s)? of action\b`)},
	{models.MilestonePreclinical, "Preclinical model", 0.55,
		regexp.MustCompile(`(?i)\b(preclinical|animal model|in vivo|in vitro)\b`)},
	{models.MilestoneFirstReport, "First report", 0.7,
		regexp.MustCompile(`(?i)\bfirst\s+(report|description|case)\b`)},
	{models.MilestoneDiscovery, "Discovery", 0.5,
		regexp.MustCompile(`(?i)\b(discover(y|ed)|identif(y|ication))\b`)},
}

// DetectMilestone runs the regex cascade over title+abstract and returns
// the best-matching milestone type, its label, and the pattern's fixed
// confidence score. Returns (MilestoneOther, "", 0) when nothing
// matches.
func DetectMilestone(a *models.UnifiedArticle) (models.MilestoneType, string, float64) {
	text := a.Title + " " + a.Abstract
	for _, p := range milestonePatterns {
		if p.pattern.MatchString(text) {
			return p.milestone, p.label, p.confidence
		}
	}
	return models.MilestoneOther, "", 0
}

// Score computes the five-component weighted landmark score for a. cfg
// is normally DefaultConfig(), with any weight overrides applied.
func Score(a *models.UnifiedArticle, cfg Config) models.LandmarkScore {
	_, _, milestoneConf := DetectMilestone(a)

	citationImpact := citationImpactOf(a, cfg)
	sourceAgreement := sourceAgreementOf(a, cfg)
	evidence := evidenceQualityOf(a)
	velocity := citationVelocityOf(a, cfg)

	overall := cfg.Weights.CitationImpact*citationImpact +
		cfg.Weights.SourceAgreement*sourceAgreement +
		cfg.Weights.MilestoneConfidence*milestoneConf +
		cfg.Weights.EvidenceQuality*evidence +
		cfg.Weights.CitationVelocity*velocity

	return models.LandmarkScore{
		CitationImpact:      citationImpact,
		SourceAgreement:     sourceAgreement,
		MilestoneConfidence: milestoneConf,
		EvidenceQuality:     evidence,
		CitationVelocity:    velocity,
		Overall:             overall,
		Tier:                tierOf(overall, cfg),
	}
}

func citationImpactOf(a *models.UnifiedArticle, cfg Config) float64 {
	if a.Citations == nil {
		return 0
	}
	rcr := a.Citations.RelativeCitationRat
	if rcr < 0 {
		rcr = 0
	}
	if rcr > cfg.MaxRCR {
		rcr = cfg.MaxRCR
	}
	normalizedRCR := rcr / cfg.MaxRCR
	percentile := a.Citations.Percentile / 100
	if percentile < 0 {
		percentile = 0
	}
	if percentile > 1 {
		percentile = 1
	}
	return (normalizedRCR + percentile) / 2
}

// sourceAgreementOf is 0 for a record only one provider contributed, then
// steps up per additional distinct provider in its provenance set,
// saturating at 1.0.
func sourceAgreementOf(a *models.UnifiedArticle, cfg Config) float64 {
	n := len(a.ProvenanceList)
	if n <= 1 {
		return 0
	}
	score := float64(n-1) * cfg.SourceAgreementStep
	return math.Min(score, 1.0)
}

func evidenceQualityOf(a *models.UnifiedArticle) float64 {
	best := 0.0
	for _, t := range a.ArticleTypeList {
		if w, ok := evidenceQuality[strings.ToLower(t)]; ok && w > best {
			best = w
		}
	}
	return best
}

func citationVelocityOf(a *models.UnifiedArticle, cfg Config) float64 {
	if a.Citations == nil || cfg.CitationVelocityCap <= 0 {
		return 0
	}
	v := a.Citations.CitationsPerYear / cfg.CitationVelocityCap
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tierOf(overall float64, cfg Config) models.LandmarkTier {
	switch {
	case overall >= cfg.LandmarkThreshold:
		return models.LandmarkTierLandmark
	case overall >= cfg.NotableThreshold:
		return models.LandmarkTierNotable
	case overall >= cfg.ModerateThreshold:
		return models.LandmarkTierModerate
	default:
		return models.LandmarkTierStandard
	}
}

// ScoreAll scores every article in place, setting its Landmark field.
func ScoreAll(articles []*models.UnifiedArticle, cfg Config) {
	for _, a := range articles {
		s := Score(a, cfg)
		a.Landmark = &s
	}
}
