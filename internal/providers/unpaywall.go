package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Unpaywall is the open-access-location adapter: given a DOI, returns
// candidate free-to-read copies. It has no search surface; it is invoked
// per-article by internal/enrich and by internal/fulltext's retrieval
// chain.
type Unpaywall struct {
	Base
	BaseURL string
	Email   string
}

const unpaywallKey = "unpaywall"

func NewUnpaywall(base Base, baseURL, email string) *Unpaywall {
	base.ProviderKey = unpaywallKey
	return &Unpaywall{Base: base, BaseURL: baseURL, Email: email}
}

func (u *Unpaywall) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	return SearchResult{}, nil
}

type unpaywallResponse struct {
	DOI            string `json:"doi"`
	IsOA           bool   `json:"is_oa"`
	BestOALocation *unpaywallLocation `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URL           string `json:"url"`
	URLForPDF     string `json:"url_for_pdf"`
	HostType      string `json:"host_type"`
	Version       string `json:"version"`
	License       string `json:"license"`
}

// Locations returns every open-access candidate for doi, best link first.
func (u *Unpaywall) Locations(ctx context.Context, doi string) ([]models.OpenAccessLink, error) {
	var parsed unpaywallResponse
	err := u.Do(ctx, func(ctx context.Context) error {
		q := url.Values{"email": {u.Email}}
		uri := fmt.Sprintf("%s/%s?%s", u.BaseURL, url.PathEscape(doi), q.Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return NewPermanent(unpaywallKey, err)
		}
		resp, err := u.HTTPClient.Do(req)
		if err != nil {
			return NewRetryable(unpaywallKey, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &Error{Provider: unpaywallKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return NewPermanent(unpaywallKey, fmt.Errorf("decode: %w", err))
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !parsed.IsOA {
		return nil, nil
	}

	out := make([]models.OpenAccessLink, 0, len(parsed.OALocations))
	for _, loc := range parsed.OALocations {
		best := parsed.BestOALocation != nil && loc.URL == parsed.BestOALocation.URL
		out = append(out, loc.toLink(best))
	}
	return out, nil
}

func (loc unpaywallLocation) toLink(isBest bool) models.OpenAccessLink {
	link := models.OpenAccessLink{
		URL:        loc.URL,
		License:    loc.License,
		IsPDF:      loc.URLForPDF != "",
		IsBestLink: isBest,
		Version:    toOAVersion(loc.Version),
		HostType:   toOAHostType(loc.HostType),
	}
	if link.IsPDF {
		link.URL = loc.URLForPDF
	}
	return link
}

func toOAVersion(v string) models.OAVersion {
	switch v {
	case "submittedVersion":
		return models.OAVersionSubmitted
	case "acceptedVersion":
		return models.OAVersionAccepted
	case "publishedVersion":
		return models.OAVersionPublished
	default:
		return models.OAVersionUnknown
	}
}

func toOAHostType(h string) models.OAHostType {
	switch h {
	case "repository":
		return models.OAHostRepository
	case "publisher":
		return models.OAHostPublisher
	default:
		return models.OAHostAggregator
	}
}
