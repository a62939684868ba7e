// Package query implements the rule-based query analyzer: it classifies
// free text along (complexity, intent), recommends a provider subset and
// ranking profile, and flags queries that would benefit from
// image/visual-artifact search. Ordered signal checks against
// precompiled regexps, first match wins.
package query

import (
	"context"
	"regexp"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/entity"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

var (
	pmidPattern     = regexp.MustCompile(`(?i)\bpmid:\s*\d+\b`)
	doiPattern      = regexp.MustCompile(`(?i)\b10\.\d{4,9}/\S+\b`)
	nctPattern      = regexp.MustCompile(`(?i)\bNCT\d{8}\b`)
	fieldTagPattern = regexp.MustCompile(`(?i)\[\s*(mesh|tiab|au|ti|la|pt|dp)\s*\]`)
	booleanPattern  = regexp.MustCompile(`(?i)\b(AND|OR|NOT)\b`)
	comparisonWords = regexp.MustCompile(`(?i)\b(vs\.?|versus|compared to|compared with)\b`)
	questionCue     = regexp.MustCompile(`(?i)\b(what|how|why|does|is|are|can)\b.*\?`)
	clinicalCue     = regexp.MustCompile(`(?i)\b(treatment|therapy|dosage|clinical trial|randomized|rct|efficacy|safety)\b`)
	visualCue       = regexp.MustCompile(`(?i)\b(figure|image|diagram|micrograph|histology slide|scan image)\b`)
	mechanismCue    = regexp.MustCompile(`(?i)\b(mechanism|pathway|signaling|molecular basis)\b`)
	explorationCue  = regexp.MustCompile(`(?i)\b(overview|review of|landscape|state of the art)\b`)
)

// These constants name the roster keys this analyzer recommends from.
const (
	providerPrimary        = "pubmed"
	providerEuropePMC      = "europepmc"
	providerCrossref       = "crossref"
	providerClinicalTrials = "clinicaltrials"
	providerBioRxiv        = "biorxiv"
)

// Analyzer is the query analyzer. It optionally resolves entities through
// an entity.Resolver; when no resolver is supplied, entity detection is
// skipped (analysis degrades gracefully, never errors).
type Analyzer struct {
	Resolver *entity.Resolver
}

// New builds an Analyzer. resolver may be nil.
func New(resolver *entity.Resolver) *Analyzer {
	return &Analyzer{Resolver: resolver}
}

// Analyze classifies rawQuery and recommends providers and a ranking
// profile.
func (a *Analyzer) Analyze(ctx context.Context, rawQuery string) models.AnalyzedQuery {
	normalized := strings.TrimSpace(rawQuery)

	aq := models.AnalyzedQuery{
		OriginalText:   rawQuery,
		NormalizedText: normalized,
	}

	entities := detectIDEntities(normalized)
	if a.Resolver != nil {
		resolved, _ := a.Resolver.ResolveMany(ctx, candidatePhrases(normalized))
		entities = append(entities, resolved...)
	}
	aq.Entities = dedupEntities(entities)

	aq.Complexity, aq.Intent = classify(normalized, aq.Entities)
	aq.Providers = recommendProviders(normalized, aq.Complexity, aq.Intent)
	aq.RankingProfile = recommendRankingProfile(aq.Intent)
	aq.ImageSearchRecommended = visualCue.MatchString(normalized)

	return aq
}

func classify(normalized string, entities []models.ResolvedEntity) (models.Complexity, models.Intent) {
	hasID := pmidPattern.MatchString(normalized) || doiPattern.MatchString(normalized) || nctPattern.MatchString(normalized)
	if hasID && len(strings.Fields(normalized)) <= 3 {
		return models.ComplexitySimple, models.IntentLookup
	}

	if comparisonWords.MatchString(normalized) {
		return models.ComplexityComplex, models.IntentComparison
	}

	hasBoolean := booleanPattern.MatchString(normalized)
	hasFieldTag := fieldTagPattern.MatchString(normalized)
	wordCount := len(strings.Fields(normalized))

	switch {
	case clinicalCue.MatchString(normalized):
		complexity := models.ComplexityModerate
		if hasBoolean && hasFieldTag {
			complexity = models.ComplexityComplex
		}
		return complexity, models.IntentClinical
	case mechanismCue.MatchString(normalized):
		return models.ComplexityModerate, models.IntentMechanism
	case explorationCue.MatchString(normalized):
		return models.ComplexityModerate, models.IntentExploration
	case hasBoolean && hasFieldTag:
		return models.ComplexityModerate, models.IntentTopic
	case hasBoolean || hasFieldTag || questionCue.MatchString(normalized) || wordCount > 8:
		return models.ComplexityModerate, models.IntentTopic
	default:
		return models.ComplexitySimple, models.IntentTopic
	}
}

func recommendProviders(normalized string, complexity models.Complexity, intent models.Intent) []string {
	switch {
	case intent == models.IntentLookup:
		return []string{providerPrimary}
	case intent == models.IntentComparison:
		return []string{providerPrimary, providerEuropePMC, providerCrossref}
	case intent == models.IntentClinical:
		return []string{providerPrimary, providerClinicalTrials, providerEuropePMC}
	case complexity == models.ComplexityModerate && fieldTagPattern.MatchString(normalized):
		return []string{providerPrimary, providerEuropePMC}
	case complexity == models.ComplexitySimple:
		return []string{providerPrimary}
	default:
		return []string{providerPrimary, providerEuropePMC}
	}
}

func recommendRankingProfile(intent models.Intent) string {
	switch intent {
	case models.IntentComparison:
		return "impact"
	case models.IntentClinical:
		return "clinical"
	case models.IntentExploration:
		return "recency"
	default:
		return "balanced"
	}
}

func detectIDEntities(normalized string) []models.ResolvedEntity {
	var out []models.ResolvedEntity
	for _, m := range pmidPattern.FindAllString(normalized, -1) {
		out = append(out, models.ResolvedEntity{Text: m, Name: m, Type: "identifier", Score: 1})
	}
	for _, m := range doiPattern.FindAllString(normalized, -1) {
		out = append(out, models.ResolvedEntity{Text: m, Name: m, Type: "identifier", Score: 1})
	}
	for _, m := range nctPattern.FindAllString(normalized, -1) {
		out = append(out, models.ResolvedEntity{Text: m, Name: m, Type: "identifier", Score: 1})
	}
	return out
}

// candidatePhrases extracts the free-text spans worth sending to the
// entity resolver: the whole query is too coarse and single words are
// often noise, so this takes words/bigrams with at least one letter and
// strips boolean/field-tag scaffolding first.
func candidatePhrases(normalized string) []string {
	stripped := fieldTagPattern.ReplaceAllString(normalized, "")
	stripped = booleanPattern.ReplaceAllString(stripped, " ")
	stripped = comparisonWords.ReplaceAllString(stripped, " ")

	fields := strings.Fields(stripped)
	var out []string
	for i, w := range fields {
		w = strings.Trim(w, ".,;:()[]\"'")
		if len(w) < 3 {
			continue
		}
		out = append(out, w)
		if i+1 < len(fields) {
			next := strings.Trim(fields[i+1], ".,;:()[]\"'")
			if len(next) >= 3 {
				out = append(out, w+" "+next)
			}
		}
	}
	return out
}

func dedupEntities(entities []models.ResolvedEntity) []models.ResolvedEntity {
	seen := make(map[string]struct{}, len(entities))
	out := make([]models.ResolvedEntity, 0, len(entities))
	for _, e := range entities {
		key := strings.ToLower(e.Name) + "|" + e.Type
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
