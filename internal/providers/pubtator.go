package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// PubTator is the entity-annotation provider: given a document ID it
// returns tagged biomedical entities (gene/disease/chemical/species/
// variant), and it exposes a free-text autocomplete PubTator3's "find"
// endpoint offers. internal/entity wraps this provider with the TTL+LRU
// cache and singleflight coalescing; PubTator itself stays a plain
// Provider + annotation-only adapter.
type PubTator struct {
	Base
	BaseURL string
}

const pubtatorKey = "pubtator"

func NewPubTator(base Base, baseURL string) *PubTator {
	base.ProviderKey = pubtatorKey
	return &PubTator{Base: base, BaseURL: baseURL}
}

// Search is not meaningful for PubTator in this aggregator's sense (it
// annotates existing documents rather than indexing new ones); it always
// returns empty so the dispatcher can still include "pubtator" in a
// provider list without special-casing it.
func (p *PubTator) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	return SearchResult{}, nil
}

type pubtatorFindResponse []struct {
	Text       string  `json:"text"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	ID         string  `json:"_id"`
	Confidence float64 `json:"confidence"`
}

// Autocomplete resolves a free-text token/phrase to its best entity match,
// used by internal/entity's resolver.
func (p *PubTator) Autocomplete(ctx context.Context, text string) (*models.ResolvedEntity, error) {
	var parsed pubtatorFindResponse
	err := p.Do(ctx, func(ctx context.Context) error {
		u := p.BaseURL + "/entity/autocomplete/?" + url.Values{"query": {text}, "limit": {"1"}}.Encode()
		return p.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, nil
	}
	best := parsed[0]
	return &models.ResolvedEntity{
		Text:       text,
		Name:       best.Name,
		Type:       best.Type,
		ExternalID: best.ID,
		Score:      best.Confidence,
	}, nil
}

type pubtatorAnnotationsResponse struct {
	Passages []struct {
		Annotations []struct {
			Text    string `json:"text"`
			InferID string `json:"infons.identifier"`
			Type    string `json:"infons.type"`
		} `json:"annotations"`
	} `json:"passages"`
}

// Annotations returns the entities PubTator has tagged within documentID.
func (p *PubTator) Annotations(ctx context.Context, documentID string) ([]models.ResolvedEntity, error) {
	var parsed pubtatorAnnotationsResponse
	err := p.Do(ctx, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/publications/export/biocjson?pmids=%s", p.BaseURL, documentID)
		return p.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []models.ResolvedEntity
	for _, passage := range parsed.Passages {
		for _, ann := range passage.Annotations {
			out = append(out, models.ResolvedEntity{
				Text:       ann.Text,
				Name:       strings.ToLower(ann.Text),
				Type:       ann.Type,
				ExternalID: ann.InferID,
				Score:      1.0,
			})
		}
	}
	return out, nil
}

func (p *PubTator) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewPermanent(pubtatorKey, err)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return NewRetryable(pubtatorKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Provider: pubtatorKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewPermanent(pubtatorKey, fmt.Errorf("decode: %w", err))
	}
	return nil
}
