// Package enrich implements the enrichment stage: adding citation
// metrics, open-access links, preprint flags, and similarity scores to
// already-aggregated UnifiedArticle records. It sits downstream of
// internal/aggregate and upstream of internal/timeline's landmark
// scorer, which consumes the citation metrics this stage fills in. A
// failed enrichment call degrades a record, it never fails the request.
package enrich

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/aggregate"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

// OALocator is the capability the enricher needs from the OA provider
// (Unpaywall): resolve a DOI to candidate OA links.
type OALocator interface {
	Locations(ctx context.Context, doi string) ([]models.OpenAccessLink, error)
}

// Enricher adds citation metrics and OA links to a batch of articles.
type Enricher struct {
	CitationMetrics providers.Metrics
	OA              OALocator
}

// New builds an Enricher. Either dependency may be nil, in which case
// that enrichment is skipped; enrichment is always additive and
// best-effort.
func New(citationMetrics providers.Metrics, oa OALocator) *Enricher {
	return &Enricher{CitationMetrics: citationMetrics, OA: oa}
}

// Enrich decorates articles in place with citation metrics (batched by
// PMID where available) and OA links (per-DOI), and marks the preprint
// flag implicitly via ArticleTypes (already set by the biorxiv adapter).
// Errors from either dependency are logged and skipped per record/batch;
// Enrich itself never returns an error.
func (e *Enricher) Enrich(ctx context.Context, articles []*models.UnifiedArticle) {
	if e.CitationMetrics != nil {
		e.enrichCitations(ctx, articles)
	}
	if e.OA != nil {
		e.enrichOA(ctx, articles)
	}
}

func (e *Enricher) enrichCitations(ctx context.Context, articles []*models.UnifiedArticle) {
	pmidToArticle := make(map[string]*models.UnifiedArticle, len(articles))
	var ids []string
	for _, a := range articles {
		pmid := a.ID
		if looksLikePMID(pmid) {
			pmidToArticle[pmid] = a
			ids = append(ids, pmid)
			continue
		}
		if alt, ok := a.AlternateIDs["pmid"]; ok && alt != "" {
			pmidToArticle[alt] = a
			ids = append(ids, alt)
		}
	}
	if len(ids) == 0 {
		return
	}

	const batchSize = 1000
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		metrics, err := e.CitationMetrics.CitationMetrics(ctx, batch)
		if err != nil {
			log.Warn().Err(err).Msg("enrich: citation metrics batch failed, leaving records unenriched")
			continue
		}
		for pmid, m := range metrics {
			if a, ok := pmidToArticle[pmid]; ok {
				mCopy := m
				a.Citations = &mCopy
			}
		}
	}
}

func (e *Enricher) enrichOA(ctx context.Context, articles []*models.UnifiedArticle) {
	for _, a := range articles {
		if len(a.OALinks) > 0 {
			continue // an upstream provider (e.g. biorxiv) already supplied a link
		}
		doi := a.AlternateIDs["doi"]
		if doi == "" {
			continue
		}
		links, err := e.OA.Locations(ctx, doi)
		if err != nil {
			log.Debug().Err(err).Str("doi", doi).Msg("enrich: OA lookup failed for record")
			continue
		}
		a.OALinks = links
	}
}

func looksLikePMID(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.Atoi(s)
	return err == nil
}

// ScoreSimilarity sets every article's Similarity field to its
// title-token Jaccard similarity against seedTitle, showing how close
// each hit is to the seed article.
func ScoreSimilarity(articles []*models.UnifiedArticle, seedTitle string) {
	seedTokens := aggregate.Tokenize(seedTitle)
	for _, a := range articles {
		sim := aggregate.Jaccard(seedTokens, aggregate.Tokenize(a.Title))
		a.Similarity = &sim
	}
}
