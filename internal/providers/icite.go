package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// ICite is the citation-metrics-only adapter (NIH's Relative Citation
// Ratio service). It never returns search results on its own; it exists
// purely to satisfy the Metrics capability used by the `metrics` pipeline
// step and get_citation_metrics tool, and to feed internal/timeline's
// landmark scorer's citation_impact component.
type ICite struct {
	Base
	BaseURL string
}

const iciteKey = "icite"

func NewICite(base Base, baseURL string) *ICite {
	base.ProviderKey = iciteKey
	return &ICite{Base: base, BaseURL: baseURL}
}

// Search always returns empty: iCite has no free-text search surface.
func (i *ICite) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	return SearchResult{}, nil
}

type iciteResponse struct {
	Data []iciteRecord `json:"data"`
}

type iciteRecord struct {
	PMID                int     `json:"pmid"`
	CitationCount        int     `json:"citation_count"`
	RelativeCitationRatio float64 `json:"relative_citation_ratio"`
	NIHPercentile         float64 `json:"nih_percentile"`
	CitationsPerYear      float64 `json:"citations_per_year"`
	IsClinical            bool    `json:"is_clinical"`
	CitedByClin           []int   `json:"cited_by_clin"`
}

// CitationMetrics batch-fetches RCR data for up to 1000 PMIDs per call
// (iCite's documented batch limit); callers larger than that should chunk.
func (i *ICite) CitationMetrics(ctx context.Context, ids []string) (map[string]models.CitationMetrics, error) {
	if len(ids) == 0 {
		return map[string]models.CitationMetrics{}, nil
	}

	var parsed iciteResponse
	err := i.Do(ctx, func(ctx context.Context) error {
		u := i.BaseURL + "/api/pubs?" + url.Values{"pmids": {strings.Join(ids, ",")}}.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return NewPermanent(iciteKey, err)
		}
		resp, err := i.HTTPClient.Do(req)
		if err != nil {
			return NewRetryable(iciteKey, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &Error{Provider: iciteKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return NewPermanent(iciteKey, fmt.Errorf("decode: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]models.CitationMetrics, len(parsed.Data))
	for _, r := range parsed.Data {
		metrics := models.CitationMetrics{
			CitationCount:       r.CitationCount,
			RelativeCitationRat: r.RelativeCitationRatio,
			Percentile:          r.NIHPercentile,
			CitationsPerYear:    r.CitationsPerYear,
			IsClinical:          r.IsClinical,
		}
		if len(r.CitedByClin) > 0 {
			ratio := float64(len(r.CitedByClin)) / float64(maxInt(r.CitationCount, 1))
			metrics.ClinicalTranslation = &ratio
		}
		out[strconv.Itoa(r.PMID)] = metrics
	}
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
