package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// BioRxiv is the preprint adapter. Its API indexes by date range rather
// than free-text query, so Search does a client-side substring filter
// over a recent window; it is only ever included in the dispatch when
// options.preprints or options.all_types / no_peer_review is set.
type BioRxiv struct {
	Base
	BaseURL string
	Server  string // "biorxiv" or "medrxiv"
}

const biorxivKey = "biorxiv"

func NewBioRxiv(base Base, baseURL, server string) *BioRxiv {
	base.ProviderKey = biorxivKey
	if server == "" {
		server = "biorxiv"
	}
	return &BioRxiv{Base: base, BaseURL: baseURL, Server: server}
}

type biorxivDetailsResponse struct {
	Collection []biorxivRecord `json:"collection"`
}

type biorxivRecord struct {
	DOI     string `json:"doi"`
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Date    string `json:"date"`
	Abstract string `json:"abstract"`
	Category string `json:"category"`
}

func (b *BioRxiv) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	from := time.Now().AddDate(0, -1, 0).Format("2006-01-02")
	to := time.Now().Format("2006-01-02")
	if filters.YearMin != nil {
		from = fmt.Sprintf("%04d-01-01", *filters.YearMin)
	}
	if filters.YearMax != nil {
		to = fmt.Sprintf("%04d-12-31", *filters.YearMax)
	}

	var parsed biorxivDetailsResponse
	err := b.Do(ctx, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/details/%s/%s/%s/0", b.BaseURL, b.Server, from, to)
		return b.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}

	needle := strings.ToLower(query)
	records := make([]*models.UnifiedArticle, 0, limit)
	for _, r := range parsed.Collection {
		if !strings.Contains(strings.ToLower(r.Title), needle) && !strings.Contains(strings.ToLower(r.Abstract), needle) {
			continue
		}
		records = append(records, r.toUnified(b.Server))
		if len(records) >= limit {
			break
		}
	}
	total := len(records)
	return SearchResult{Records: records, TotalCount: &total}, nil
}

func (b *BioRxiv) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewPermanent(biorxivKey, err)
	}
	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return NewRetryable(biorxivKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Provider: biorxivKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewPermanent(biorxivKey, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (r biorxivRecord) toUnified(server string) *models.UnifiedArticle {
	art := &models.UnifiedArticle{
		ID:            r.DOI,
		Title:         r.Title,
		Abstract:      r.Abstract,
		Journal:       strings.Title(server) + " preprint",
		PrimarySource: biorxivKey,
		AlternateIDs:  map[string]string{"doi": r.DOI},
		ArticleTypes:  map[string]struct{}{"preprint": {}},
		MeSHTerms:     map[string]struct{}{},
		OALinks: []models.OpenAccessLink{{
			URL:        fmt.Sprintf("https://www.%s.org/content/%s", server, r.DOI),
			HostType:   models.OAHostPreprint,
			Version:    models.OAVersionSubmitted,
			IsBestLink: true,
		}},
	}
	art.AddProvenance(biorxivKey)

	if len(r.Date) >= 4 {
		if y, err := strconv.Atoi(r.Date[:4]); err == nil {
			art.Year = &y
		}
	}
	for i, name := range strings.Split(r.Authors, "; ") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		art.Authors = append(art.Authors, models.Author{Position: i + 1, Name: name})
	}

	art.FinalizeSets()
	return art
}
