package fulltext

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

type fakePMC struct {
	url string
	err error
}

func (f fakePMC) PDFLink(ctx context.Context, pmcID string) (string, error) {
	return f.url, f.err
}

type fakeUnpaywall struct {
	links []models.OpenAccessLink
	err   error
}

func (f fakeUnpaywall) Locations(ctx context.Context, doi string) ([]models.OpenAccessLink, error) {
	return f.links, f.err
}

func TestResolvePrefersPMCOAFirst(t *testing.T) {
	c := &Chain{
		PMC:        fakePMC{url: "https://pmc.example/pdf"},
		Unpaywall:  fakeUnpaywall{links: []models.OpenAccessLink{{URL: "https://unpaywall.example/pdf", IsPDF: true, IsBestLink: true}}},
		HTTPClient: http.DefaultClient,
	}
	res := c.Resolve(context.Background(), "PMC123", "10.1/doi")
	assert.Equal(t, "pmc_oa", res.Source)
	assert.Equal(t, "https://pmc.example/pdf", res.PDFURL)
}

func TestResolveFallsBackToUnpaywallWhenPMCEmpty(t *testing.T) {
	c := &Chain{
		PMC:       fakePMC{url: ""},
		Unpaywall: fakeUnpaywall{links: []models.OpenAccessLink{{URL: "https://unpaywall.example/pdf", IsPDF: true, IsBestLink: true}}},
	}
	res := c.Resolve(context.Background(), "PMC123", "10.1/doi")
	assert.Equal(t, "unpaywall", res.Source)
	assert.Equal(t, "https://unpaywall.example/pdf", res.PDFURL)
}

func TestScrapeLandingPageFindsCitationPDFURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta name="citation_pdf_url" content="https://publisher.example/article.pdf"></head></html>`))
	}))
	defer server.Close()

	c := &Chain{
		PMC:        fakePMC{url: ""},
		Unpaywall:  fakeUnpaywall{links: nil},
		HTTPClient: server.Client(),
	}
	landing, pdfURL := c.scrapeLandingPage(context.Background(), server.URL)
	assert.Equal(t, server.URL, landing)
	assert.Equal(t, "https://publisher.example/article.pdf", pdfURL)
}

func TestResolveReturnsEmptyWhenNoChainStepSucceeds(t *testing.T) {
	c := &Chain{PMC: fakePMC{url: ""}, Unpaywall: fakeUnpaywall{}}
	res := c.Resolve(context.Background(), "", "")
	assert.Equal(t, Result{}, res)
}

func TestBestPDFLinkPrefersIsBestLink(t *testing.T) {
	links := []models.OpenAccessLink{
		{URL: "https://a.example/pdf", IsPDF: true},
		{URL: "https://b.example/pdf", IsPDF: true, IsBestLink: true},
	}
	assert.Equal(t, "https://b.example/pdf", bestPDFLink(links))
}

func TestBestPDFLinkFallsBackToFirstPDF(t *testing.T) {
	links := []models.OpenAccessLink{
		{URL: "https://a.example/html", IsPDF: false},
		{URL: "https://b.example/pdf", IsPDF: true},
	}
	assert.Equal(t, "https://b.example/pdf", bestPDFLink(links))
}

func TestWrapAsPDFProducesNonEmptyBytes(t *testing.T) {
	out, err := WrapAsPDF("A Study of Something", "Extracted abstract text goes here.")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}
