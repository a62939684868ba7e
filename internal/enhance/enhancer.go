// Package enhance implements the optional, opt-in semantic query
// enhancer: given an AnalyzedQuery with resolved entities, it expands
// each entity into synonym/MeSH-style terms and derives one or more
// provider-specific query strings. It is best-effort by contract — an
// empty expansion list is a valid result, never an error. A static
// synonym table is consulted before falling back to the bare entity name.
package enhance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/entity"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// synonymTable is a small static MeSH-adjacent synonym dictionary. It is
// intentionally not exhaustive: entities absent from the table still get
// an expansion consisting of their own resolved name, so Enhance never
// fails to produce at least one derived query per entity.
var synonymTable = map[string][]string{
	"sepsis":       {"septicemia", "systemic inflammatory response syndrome"},
	"propofol":     {"2,6-diisopropylphenol"},
	"mi":           {"myocardial infarction", "heart attack"},
	"copd":         {"chronic obstructive pulmonary disease"},
	"brca1":        {"breast cancer 1 gene"},
	"ards":         {"acute respiratory distress syndrome"},
	"hypertension": {"high blood pressure"},
}

// Enhancer produces an EnhancedQuery from an AnalyzedQuery.
type Enhancer struct {
	Resolver *entity.Resolver
}

// New builds an Enhancer. resolver may be nil; Enhance still works from
// whatever entities are already present on the AnalyzedQuery.
func New(resolver *entity.Resolver) *Enhancer {
	return &Enhancer{Resolver: resolver}
}

// Enhance expands aq's resolved entities into an EnhancedQuery. Providers
// names the provider-specific query strings to derive (typically the
// AnalyzedQuery's recommended provider subset).
func (e *Enhancer) Enhance(ctx context.Context, aq models.AnalyzedQuery, providers []string) models.EnhancedQuery {
	expansions := make([]models.EntityExpansion, 0, len(aq.Entities))
	for _, ent := range aq.Entities {
		if ent.Type == "identifier" {
			continue // identifiers don't benefit from synonym expansion
		}
		expansions = append(expansions, expandEntity(ent))
	}

	sort.Slice(expansions, func(i, j int) bool {
		return expansions[i].Confidence*expansions[i].Weight > expansions[j].Confidence*expansions[j].Weight
	})

	derived := make([]models.DerivedQuery, 0, len(providers))
	for _, p := range providers {
		derived = append(derived, models.DerivedQuery{
			Provider:    p,
			QueryString: buildDerivedQuery(aq.NormalizedText, expansions, p),
		})
	}

	return models.EnhancedQuery{
		Analyzed:   aq,
		Expansions: expansions,
		Derived:    derived,
	}
}

func expandEntity(ent models.ResolvedEntity) models.EntityExpansion {
	terms := []string{ent.Name}
	if syn, ok := synonymTable[strings.ToLower(ent.Name)]; ok {
		terms = append(terms, syn...)
	}

	var vocab []string
	if ent.ExternalID != "" {
		vocab = append(vocab, ent.ExternalID)
	}

	weight := entityTypeWeight(ent.Type)
	return models.EntityExpansion{
		Entity:        ent,
		Terms:         terms,
		VocabularyIDs: vocab,
		Confidence:    ent.Score,
		Weight:        weight,
	}
}

// entityTypeWeight reflects how much a given entity type tends to narrow a
// biomedical query usefully; genes and diseases are high-precision anchors,
// species terms are broad and weighted lower.
func entityTypeWeight(entityType string) float64 {
	switch entityType {
	case "gene", "variant":
		return 1.0
	case "disease", "chemical":
		return 0.9
	case "species":
		return 0.5
	default:
		return 0.7
	}
}

// buildDerivedQuery renders an OR-expansion of every expansion's terms
// appended to the original query text, in the field-tag syntax the target
// provider is known to use. Providers without a recognized field-tag
// syntax (europepmc/crossref/others) get the plain OR expansion.
func buildDerivedQuery(base string, expansions []models.EntityExpansion, provider string) string {
	if len(expansions) == 0 {
		return base
	}

	var clauses []string
	for _, exp := range expansions {
		if len(exp.Terms) == 0 {
			continue
		}
		quoted := make([]string, len(exp.Terms))
		for i, t := range exp.Terms {
			quoted[i] = fmt.Sprintf("%q", t)
		}
		clause := "(" + strings.Join(quoted, " OR ") + ")"
		if provider == "pubmed" {
			clause += "[tiab]"
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 0 {
		return base
	}
	return base + " AND (" + strings.Join(clauses, " OR ") + ")"
}
