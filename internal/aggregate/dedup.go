// Package aggregate implements the result-fusion stage: union-find
// deduplication across provider-tagged records, multi-signal ranking
// (BM25 + quality + recency + impact + source trust + entity match),
// optional MMR diversification, and the Reciprocal Rank Fusion
// alternative used by pipeline merge steps. The disjoint-set
// implementation uses path compression plus union by size.
package aggregate

import (
	"sort"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// DedupStrategy selects how aggressively records are judged equivalent.
type DedupStrategy string

const (
	StrategyStrict     DedupStrategy = "strict"
	StrategyModerate   DedupStrategy = "moderate"
	StrategyAggressive DedupStrategy = "aggressive"
)

// providerTrust ranks provider reliability for representative tie-breaks
// and the source_trust ranking dimension. Higher is more trusted.
var providerTrust = map[string]float64{
	"pubmed":         1.0,
	"europepmc":      0.85,
	"crossref":       0.8,
	"clinicaltrials": 0.75,
	"icite":          0.6,
	"unpaywall":      0.5,
	"pubtator":       0.5,
	"biorxiv":        0.4,
	"fulltext":       0.4,
}

func trustOf(provider string) float64 {
	if t, ok := providerTrust[provider]; ok {
		return t
	}
	return 0.3
}

// disjointSet is a standard union-find over record indices with path
// compression and union by size.
type disjointSet struct {
	parent []int
	size   []int
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), size: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

func (ds *disjointSet) find(x int) int {
	for ds.parent[x] != x {
		ds.parent[x] = ds.parent[ds.parent[x]]
		x = ds.parent[x]
	}
	return x
}

func (ds *disjointSet) union(a, b int) {
	ra, rb := ds.find(a), ds.find(b)
	if ra == rb {
		return
	}
	if ds.size[ra] < ds.size[rb] {
		ra, rb = rb, ra
	}
	ds.parent[rb] = ra
	ds.size[ra] += ds.size[rb]
}

// allIDs returns every external ID a record is addressable by: its
// primary ID plus every alternate ID value.
func allIDs(a *models.UnifiedArticle) []string {
	ids := make([]string, 0, 1+len(a.AlternateIDs))
	if a.ID != "" {
		ids = append(ids, a.ID)
	}
	for _, v := range a.AlternateIDs {
		if v != "" {
			ids = append(ids, v)
		}
	}
	return ids
}

// dedupe groups records into equivalence classes per strategy and returns
// one merged representative per class, plus the total number of records
// folded into another record across all classes (for DuplicatesRemoved
// accounting).
func dedupe(records []*models.UnifiedArticle, strategy DedupStrategy) ([]*models.UnifiedArticle, int) {
	n := len(records)
	if n == 0 {
		return nil, 0
	}

	ds := newDisjointSet(n)

	// Strict pass: union any two records that share an external ID.
	idIndex := make(map[string][]int)
	for i, r := range records {
		for _, id := range allIDs(r) {
			idIndex[id] = append(idIndex[id], i)
		}
	}
	for _, group := range idIndex {
		for i := 1; i < len(group); i++ {
			ds.union(group[0], group[i])
		}
	}

	if strategy != StrategyStrict {
		titleTokens := make([][]string, n)
		for i, r := range records {
			titleTokens[i] = tokenize(r.Title)
		}

		threshold := 0.9
		yearTolerance := 0
		if strategy == StrategyAggressive {
			threshold = 0.75
			yearTolerance = 1
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if ds.find(i) == ds.find(j) {
					continue
				}
				if !yearsCompatible(records[i].Year, records[j].Year, yearTolerance) {
					continue
				}
				if jaccard(titleTokens[i], titleTokens[j]) >= threshold {
					ds.union(i, j)
				}
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := ds.find(i)
		groups[root] = append(groups[root], i)
	}

	merged := make([]*models.UnifiedArticle, 0, len(groups))
	duplicatesRemoved := 0
	for _, members := range groups {
		rep := mergeClass(records, members)
		merged = append(merged, rep)
		duplicatesRemoved += len(members) - 1
	}

	// Stable, deterministic order before ranking: by primary ID. Ranking
	// re-sorts by score later; this just keeps dedupe's own output order
	// reproducible for the idempotence property test.
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	return merged, duplicatesRemoved
}

func yearsCompatible(a, b *int, tolerance int) bool {
	if a == nil || b == nil {
		return true // missing year never blocks a merge
	}
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// mergeClass picks the most-complete member as representative (ties
// broken by provider trust), then fills missing fields from the other
// members and unions provenance.
func mergeClass(records []*models.UnifiedArticle, members []int) *models.UnifiedArticle {
	if len(members) == 1 {
		rep := cloneArticle(records[members[0]])
		rep.FinalizeSets()
		return rep
	}

	best := members[0]
	for _, idx := range members[1:] {
		if better(records[idx], records[best]) {
			best = idx
		}
	}

	rep := cloneArticle(records[best])
	rep.SourceMeta = map[string]map[string]interface{}{}
	if records[best].SourceMeta != nil {
		for k, v := range records[best].SourceMeta {
			rep.SourceMeta[k] = v
		}
	}

	for _, idx := range members {
		if idx == best {
			continue
		}
		fillMissing(rep, records[idx])
		for src := range records[idx].Provenance {
			rep.AddProvenance(src)
		}
		if records[idx].SourceMeta != nil {
			for k, v := range records[idx].SourceMeta {
				rep.SourceMeta[k] = v
			}
		}
	}

	rep.FinalizeSets()
	return rep
}

func better(a, b *models.UnifiedArticle) bool {
	ca, cb := a.CompletedFieldCount(), b.CompletedFieldCount()
	if ca != cb {
		return ca > cb
	}
	return trustOf(a.PrimarySource) > trustOf(b.PrimarySource)
}

func cloneArticle(a *models.UnifiedArticle) *models.UnifiedArticle {
	c := *a
	c.AlternateIDs = copyStringMap(a.AlternateIDs)
	c.MeSHTerms = copySet(a.MeSHTerms)
	c.ArticleTypes = copySet(a.ArticleTypes)
	c.Provenance = copySet(a.Provenance)
	c.Authors = append([]models.Author(nil), a.Authors...)
	c.OALinks = append([]models.OpenAccessLink(nil), a.OALinks...)
	return &c
}

func fillMissing(rep, other *models.UnifiedArticle) {
	if rep.Title == "" {
		rep.Title = other.Title
	}
	if rep.Abstract == "" {
		rep.Abstract = other.Abstract
	}
	if rep.Journal == "" {
		rep.Journal = other.Journal
	}
	if rep.Year == nil {
		rep.Year = other.Year
	}
	if rep.Language == "" {
		rep.Language = other.Language
	}
	if len(rep.Authors) == 0 {
		rep.Authors = append([]models.Author(nil), other.Authors...)
	}
	for k, v := range other.AlternateIDs {
		if _, ok := rep.AlternateIDs[k]; !ok {
			rep.AlternateIDs[k] = v
		}
	}
	for k := range other.MeSHTerms {
		rep.MeSHTerms[k] = struct{}{}
	}
	for k := range other.ArticleTypes {
		rep.ArticleTypes[k] = struct{}{}
	}
	if rep.Citations == nil && other.Citations != nil {
		c := *other.Citations
		rep.Citations = &c
	}
	if rep.JournalStat == nil && other.JournalStat != nil {
		j := *other.JournalStat
		rep.JournalStat = &j
	}
	if len(other.OALinks) > 0 {
		rep.OALinks = append(rep.OALinks, other.OALinks...)
	}
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copySet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}
