package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
)

// PMCOA is the PMC Open Access Service adapter: given a PMC ID it returns
// the direct PDF/tarball download link for articles PMC hosts in its OA
// subset. It is the first link in the fulltext retrieval chain.
type PMCOA struct {
	Base
	BaseURL string
}

const pmcOAKey = "fulltext"

func NewPMCOA(base Base, baseURL string) *PMCOA {
	base.ProviderKey = pmcOAKey
	return &PMCOA{Base: base, BaseURL: baseURL}
}

// Search is not meaningful for the OA service; it always returns empty so
// this adapter can share the Provider interface without special-casing.
func (p *PMCOA) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	return SearchResult{}, nil
}

type pmcOAResponse struct {
	Records []struct {
		ID    string `xml:"id,attr"`
		Links []struct {
			Format string `xml:"format,attr"`
			Href   string `xml:"href,attr"`
		} `xml:"link"`
	} `xml:"records>record"`
	Errors []struct {
		Code string `xml:"code,attr"`
	} `xml:"error"`
}

// PDFLink returns the direct PDF URL for pmcID, or "" if PMC doesn't carry
// this article in its OA subset (a not-found result, not an error).
func (p *PMCOA) PDFLink(ctx context.Context, pmcID string) (string, error) {
	var parsed pmcOAResponse
	err := p.Do(ctx, func(ctx context.Context) error {
		u := p.BaseURL + "?" + url.Values{"id": {pmcID}}.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return NewPermanent(pmcOAKey, err)
		}
		resp, err := p.HTTPClient.Do(req)
		if err != nil {
			return NewRetryable(pmcOAKey, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &Error{Provider: pmcOAKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return NewPermanent(pmcOAKey, fmt.Errorf("decode: %w", err))
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	if len(parsed.Errors) > 0 || len(parsed.Records) == 0 {
		return "", nil
	}
	for _, link := range parsed.Records[0].Links {
		if link.Format == "pdf" {
			return link.Href, nil
		}
	}
	return "", nil
}
