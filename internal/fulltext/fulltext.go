// Package fulltext implements the get_fulltext retrieval chain: given
// any article ID, try (a) PMC's Open Access service direct PDF link,
// (b) Unpaywall's best OA location, (c) a publisher landing-page scrape
// for a citation_pdf_url meta tag, stopping at the first hit.
package fulltext

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

// PDFLinker is the capability PMCOA offers: resolve a PMC ID to a direct
// PDF URL.
type PDFLinker interface {
	PDFLink(ctx context.Context, pmcID string) (string, error)
}

// OALocator is the capability Unpaywall offers: resolve a DOI to candidate
// OA links, best link first.
type OALocator interface {
	Locations(ctx context.Context, doi string) ([]models.OpenAccessLink, error)
}

// Result is what get_fulltext returns to the caller.
type Result struct {
	Source         string `json:"source"` // "pmc_oa" | "unpaywall" | "publisher_landing_page" | ""
	PDFURL         string `json:"pdf_url,omitempty"`
	LandingPageURL string `json:"landing_page_url,omitempty"`
	ExtractedText  string `json:"extracted_text,omitempty"`
	Pages          int    `json:"pages,omitempty"`
}

// Chain resolves fulltext for an article given its known ID forms.
type Chain struct {
	PMC        PDFLinker
	Unpaywall  OALocator
	HTTPClient *http.Client
}

var citationPDFMeta = regexp.MustCompile(`(?i)<meta[^>]+name=["']citation_pdf_url["'][^>]+content=["']([^"']+)["']`)

// Resolve runs the three-step fallback chain. pmcID/doi may be empty
// when unknown; a chain step with no usable ID is simply skipped. Text
// extraction from a fetched PDF is a typed stub: ExtractedText stays
// empty and Pages is a content-length-derived estimate rather than a
// fabricated dependency.
func (c *Chain) Resolve(ctx context.Context, pmcID, doi string) Result {
	if pmcID != "" && c.PMC != nil {
		if pdfURL, err := c.PMC.PDFLink(ctx, pmcID); err != nil {
			log.Debug().Err(err).Str("pmcid", pmcID).Msg("fulltext: PMC OA lookup failed")
		} else if pdfURL != "" {
			return c.finish(ctx, "pmc_oa", pdfURL, "")
		}
	}

	if doi != "" && c.Unpaywall != nil {
		links, err := c.Unpaywall.Locations(ctx, doi)
		if err != nil {
			log.Debug().Err(err).Str("doi", doi).Msg("fulltext: unpaywall lookup failed")
		} else if best := bestPDFLink(links); best != "" {
			return c.finish(ctx, "unpaywall", best, "")
		}
	}

	if doi != "" {
		if landing, pdfURL := c.scrapeLandingPage(ctx, "https://doi.org/"+doi); pdfURL != "" {
			return c.finish(ctx, "publisher_landing_page", pdfURL, landing)
		}
	}

	return Result{}
}

// bestPDFLink returns the first is_best_link PDF URL, falling back to the
// first PDF URL of any kind.
func bestPDFLink(links []models.OpenAccessLink) string {
	var firstPDF string
	for _, l := range links {
		if !l.IsPDF {
			continue
		}
		if firstPDF == "" {
			firstPDF = l.URL
		}
		if l.IsBestLink {
			return l.URL
		}
	}
	return firstPDF
}

func (c *Chain) finish(ctx context.Context, source, pdfURL, landingURL string) Result {
	pages := 0
	if c.HTTPClient != nil && pdfURL != "" {
		if n, ok := c.contentLength(ctx, pdfURL); ok {
			pages = estimatePages(n)
		}
	}
	return Result{Source: source, PDFURL: pdfURL, LandingPageURL: landingURL, Pages: pages}
}

func (c *Chain) contentLength(ctx context.Context, pdfURL string) (int64, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pdfURL, nil)
	if err != nil {
		return 0, false
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()
	return resp.ContentLength, resp.ContentLength > 0
}

// estimatePages is a rough heuristic (~50KB/page for a typical biomedical
// PDF) used only to populate Pages when the real page count isn't
// available without parsing the PDF itself.
func estimatePages(contentLength int64) int {
	const bytesPerPage = 50_000
	pages := int(contentLength / bytesPerPage)
	if pages < 1 {
		pages = 1
	}
	return pages
}

func (c *Chain) scrapeLandingPage(ctx context.Context, landingURL string) (string, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, landingURL, nil)
	if err != nil {
		return "", ""
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", ""
	}
	m := citationPDFMeta.FindSubmatch(body)
	if len(m) != 2 {
		return landingURL, ""
	}
	return landingURL, strings.TrimSpace(string(m[1]))
}

// compile-time assertions that the concrete providers satisfy the
// capability interfaces this chain depends on.
var (
	_ PDFLinker = (*providers.PMCOA)(nil)
	_ OALocator = (*providers.Unpaywall)(nil)
)
