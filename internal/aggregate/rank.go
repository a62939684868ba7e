package aggregate

import (
	"math"
	"sort"
	"time"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// MaxRCR is the relative-citation-ratio ceiling used to normalize the
// impact ranking dimension into [0,1].
const MaxRCR = 20.0

// bm25K1 / bm25B are the standard Okapi BM25 free parameters.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// articleTypeWeight is the quality dimension's lookup table: systematic
// review / meta-analysis score highest, editorial/letter lowest.
var articleTypeWeight = map[string]float64{
	"systematic review":       1.0,
	"systematic_review":       1.0,
	"meta-analysis":           1.0,
	"meta_analysis":           1.0,
	"randomized controlled trial": 0.9,
	"clinical trial":          0.8,
	"clinical_trial":          0.8,
	"practice guideline":      0.85,
	"guideline":               0.85,
	"review":                  0.6,
	"observational study":     0.5,
	"case reports":            0.3,
	"case_reports":            0.3,
	"editorial":               0.1,
	"letter":                  0.1,
	"comment":                 0.1,
	"preprint":                0.35,
}

func qualityOf(a *models.UnifiedArticle) float64 {
	best := 0.45 // default for an unrecognized/unspecified article type
	found := false
	for t := range a.ArticleTypes {
		if w, ok := articleTypeWeight[t]; ok {
			if !found || w > best {
				best = w
				found = true
			}
		}
	}
	return best
}

// Weights is a preset ranking-profile weight vector over the six
// ranking dimensions.
type Weights struct {
	Relevance    float64
	Quality      float64
	Recency      float64
	Impact       float64
	SourceTrust  float64
	EntityMatch  float64
}

// Profiles is the fixed table of named ranking profiles.
var Profiles = map[string]Weights{
	"balanced":   {Relevance: 0.30, Quality: 0.20, Recency: 0.15, Impact: 0.20, SourceTrust: 0.05, EntityMatch: 0.10},
	"impact":     {Relevance: 0.20, Quality: 0.15, Recency: 0.05, Impact: 0.45, SourceTrust: 0.05, EntityMatch: 0.10},
	"recency":    {Relevance: 0.25, Quality: 0.10, Recency: 0.45, Impact: 0.10, SourceTrust: 0.05, EntityMatch: 0.05},
	"quality":    {Relevance: 0.20, Quality: 0.45, Recency: 0.10, Impact: 0.15, SourceTrust: 0.05, EntityMatch: 0.05},
	"clinical":   {Relevance: 0.25, Quality: 0.25, Recency: 0.10, Impact: 0.15, SourceTrust: 0.10, EntityMatch: 0.15},
	"comparison": {Relevance: 0.35, Quality: 0.20, Recency: 0.10, Impact: 0.20, SourceTrust: 0.05, EntityMatch: 0.10},
}

func weightsFor(profile string) Weights {
	if w, ok := Profiles[profile]; ok {
		return w
	}
	return Profiles["balanced"]
}

// bm25Corpus precomputes the per-document term frequencies and document
// lengths needed for BM25, scored against (title 3x-weighted, abstract).
type bm25Corpus struct {
	docTokens  [][]string
	docLen     []int
	avgLen     float64
	df         map[string]int
	n          int
}

func buildBM25Corpus(articles []*models.UnifiedArticle) *bm25Corpus {
	c := &bm25Corpus{df: map[string]int{}, n: len(articles)}
	total := 0
	for _, a := range articles {
		titleTokens := tokenize(a.Title)
		abstractTokens := tokenize(a.Abstract)
		weighted := make([]string, 0, len(titleTokens)*3+len(abstractTokens))
		for i := 0; i < 3; i++ {
			weighted = append(weighted, titleTokens...)
		}
		weighted = append(weighted, abstractTokens...)

		c.docTokens = append(c.docTokens, weighted)
		c.docLen = append(c.docLen, len(weighted))
		total += len(weighted)

		seen := map[string]struct{}{}
		for _, w := range weighted {
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			c.df[w]++
		}
	}
	if c.n > 0 {
		c.avgLen = float64(total) / float64(c.n)
	}
	return c
}

// score computes the raw (unnormalized) BM25 score of document i against
// queryTokens.
func (c *bm25Corpus) score(i int, queryTokens []string) float64 {
	if c.avgLen == 0 {
		return 0
	}
	tf := map[string]int{}
	for _, t := range c.docTokens[i] {
		tf[t]++
	}
	docLen := float64(c.docLen[i])

	var score float64
	for _, qt := range queryTokens {
		f := float64(tf[qt])
		if f == 0 {
			continue
		}
		df := float64(c.df[qt])
		idf := math.Log(1 + (float64(c.n)-df+0.5)/(df+0.5))
		num := f * (bm25K1 + 1)
		denom := f + bm25K1*(1-bm25B+bm25B*docLen/c.avgLen)
		score += idf * num / denom
	}
	return score
}

// Context carries the per-request information ranking needs beyond the
// article batch itself.
type Context struct {
	Query       string
	Entities    []models.ResolvedEntity
	Now         time.Time
	Profile     string
}

// Score computes each article's weighted composite ranking score and sets
// it via UnifiedArticle.SetScore. It returns nothing; the score is read
// back from each article.
func Score(articles []*models.UnifiedArticle, rc Context) {
	if len(articles) == 0 {
		return
	}
	if rc.Now.IsZero() {
		rc.Now = time.Now()
	}

	weights := weightsFor(rc.Profile)
	queryTokens := tokenize(rc.Query)
	corpus := buildBM25Corpus(articles)

	raw := make([]float64, len(articles))
	maxRaw := 0.0
	for i := range articles {
		raw[i] = corpus.score(i, queryTokens)
		if raw[i] > maxRaw {
			maxRaw = raw[i]
		}
	}

	entityNames := make(map[string]struct{}, len(rc.Entities))
	for _, e := range rc.Entities {
		entityNames[normalizeEntityName(e.Name)] = struct{}{}
	}

	for i, a := range articles {
		relevance := 0.0
		if maxRaw > 0 {
			relevance = raw[i] / maxRaw
		}
		quality := qualityOf(a)
		recency := recencyOf(a.Year, rc.Now)
		impact := impactOf(a)
		trust := trustOf(a.PrimarySource)
		entityMatch := entityMatchOf(a, entityNames)

		composite := weights.Relevance*relevance +
			weights.Quality*quality +
			weights.Recency*recency +
			weights.Impact*impact +
			weights.SourceTrust*trust +
			weights.EntityMatch*entityMatch

		a.SetScore(composite)
	}
}

func recencyOf(year *int, now time.Time) float64 {
	if year == nil {
		return 0
	}
	v := (float64(*year) - float64(now.Year()-10)) / 10
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func impactOf(a *models.UnifiedArticle) float64 {
	if a.Citations == nil {
		return 0
	}
	rcr := a.Citations.RelativeCitationRat
	if rcr > MaxRCR {
		rcr = MaxRCR
	}
	if rcr < 0 {
		rcr = 0
	}
	return rcr / MaxRCR
}

func entityMatchOf(a *models.UnifiedArticle, entityNames map[string]struct{}) float64 {
	if len(entityNames) == 0 {
		return 0
	}
	hits := 0
	for mesh := range a.MeSHTerms {
		if _, ok := entityNames[normalizeEntityName(mesh)]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(entityNames))
}

func normalizeEntityName(s string) string {
	toks := tokenize(s)
	if len(toks) == 0 {
		return s
	}
	joined := toks[0]
	for _, t := range toks[1:] {
		joined += " " + t
	}
	return joined
}

// SortRanked orders articles by (score desc, year desc, citation count
// desc, primary ID asc), stably.
func SortRanked(articles []*models.UnifiedArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		ay, by := yearOrZero(a), yearOrZero(b)
		if ay != by {
			return ay > by
		}
		ac, bc := citationsOf(a), citationsOf(b)
		if ac != bc {
			return ac > bc
		}
		return a.ID < b.ID
	})
}

func yearOrZero(a *models.UnifiedArticle) int {
	if a.Year == nil {
		return 0
	}
	return *a.Year
}

func citationsOf(a *models.UnifiedArticle) int {
	if a.Citations == nil {
		return 0
	}
	return a.Citations.CitationCount
}

// MMR re-orders ranked (already score-sorted) articles by Maximal Marginal
// Relevance: starting from the top score, each subsequent pick maximizes
// lambda*score - (1-lambda)*max_prior_similarity, similarity being Jaccard
// over title tokens.
func MMR(articles []*models.UnifiedArticle, lambda float64, limit int) []*models.UnifiedArticle {
	if len(articles) == 0 {
		return articles
	}
	if lambda <= 0 {
		lambda = 0.7
	}
	if limit <= 0 || limit > len(articles) {
		limit = len(articles)
	}

	titleTokens := make([][]string, len(articles))
	for i, a := range articles {
		titleTokens[i] = tokenize(a.Title)
	}

	chosen := make([]int, 0, limit)
	remaining := make([]int, len(articles))
	for i := range articles {
		remaining[i] = i
	}

	// First pick is always the current top score.
	chosen = append(chosen, remaining[0])
	remaining = remaining[1:]

	for len(chosen) < limit && len(remaining) > 0 {
		bestIdx := -1
		bestMMR := math.Inf(-1)
		bestPos := -1
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, c := range chosen {
				sim := jaccard(titleTokens[idx], titleTokens[c])
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmrScore := lambda*articles[idx].Score() - (1-lambda)*maxSim
			if mmrScore > bestMMR {
				bestMMR = mmrScore
				bestIdx = idx
				bestPos = pos
			}
		}
		chosen = append(chosen, bestIdx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	out := make([]*models.UnifiedArticle, len(chosen))
	for i, idx := range chosen {
		out[i] = articles[idx]
	}
	return out
}

// RRFConstant is the k in RRF's score(r) = sum 1/(k+rank).
const RRFConstant = 60

// RRFFuse combines multiple per-provider ranked lists (each already
// ordered best-first) into a single fused ranking via Reciprocal Rank
// Fusion, used by pipeline `merge`/`pico` steps that want per-provider
// rank-based fusion instead of the weighted-signal ranker.
func RRFFuse(rankedLists [][]*models.UnifiedArticle) []*models.UnifiedArticle {
	scores := map[string]float64{}
	byID := map[string]*models.UnifiedArticle{}

	for _, list := range rankedLists {
		for rank, a := range list {
			scores[a.ID] += 1.0 / float64(RRFConstant+rank+1)
			if existing, ok := byID[a.ID]; ok {
				for src := range a.Provenance {
					existing.AddProvenance(src)
				}
			} else {
				byID[a.ID] = a
			}
		}
	}

	out := make([]*models.UnifiedArticle, 0, len(byID))
	for id, a := range byID {
		a.SetScore(scores[id])
		a.FinalizeSets()
		out = append(out, a)
	}
	SortRanked(out)
	return out
}
