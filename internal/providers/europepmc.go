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

// EuropePMC is a secondary full-text-aware index adapter. It additionally
// implements Citing and References via EuropePMC's citation webservices,
// making it the only adapter that can answer find_citing_articles/
// get_article_references (PubMed implements neither capability).
type EuropePMC struct {
	Base
	BaseURL string
}

const europePMCKey = "europepmc"

func NewEuropePMC(base Base, baseURL string) *EuropePMC {
	base.ProviderKey = europePMCKey
	return &EuropePMC{Base: base, BaseURL: baseURL}
}

type epmcSearchResponse struct {
	HitCount    int `json:"hitCount"`
	ResultList struct {
		Result []epmcResult `json:"result"`
	} `json:"resultList"`
}

type epmcResult struct {
	ID              string `json:"id"`
	PMID            string `json:"pmid"`
	PMCID           string `json:"pmcid"`
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	AuthorString    string `json:"authorString"`
	JournalTitle    string `json:"journalTitle"`
	PubYear         string `json:"pubYear"`
	AbstractText    string `json:"abstractText"`
	Language        string `json:"language"`
	PubType         string `json:"pubType"`
	CitedByCount    int    `json:"citedByCount"`
	IsOpenAccess    string `json:"isOpenAccess"`
	InEPMC          string `json:"inEPMC"`
}

func (e *EuropePMC) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	q := buildEPMCQuery(query, filters)

	var parsed epmcSearchResponse
	err := e.Do(ctx, func(ctx context.Context) error {
		u := e.BaseURL + "/search?" + url.Values{
			"query":      {q},
			"format":     {"json"},
			"pageSize":   {strconv.Itoa(limit)},
			"resultType": {"core"},
		}.Encode()
		return e.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}

	records := make([]*models.UnifiedArticle, 0, len(parsed.ResultList.Result))
	for _, r := range parsed.ResultList.Result {
		records = append(records, r.toUnified())
	}
	total := parsed.HitCount
	return SearchResult{Records: records, TotalCount: &total}, nil
}

func (e *EuropePMC) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	var parsed epmcSearchResponse
	err := e.Do(ctx, func(ctx context.Context) error {
		u := e.BaseURL + "/search?" + url.Values{
			"query":      {"ext_id:" + id},
			"format":     {"json"},
			"pageSize":   {"1"},
			"resultType": {"core"},
		}.Encode()
		return e.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		return nil, err
	}
	if len(parsed.ResultList.Result) == 0 {
		return nil, NewNotFound(europePMCKey, fmt.Errorf("id %s not found", id))
	}
	return parsed.ResultList.Result[0].toUnified(), nil
}

func (e *EuropePMC) Citing(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error) {
	return e.citationList(ctx, id, "citations", limit)
}

func (e *EuropePMC) References(ctx context.Context, id string, limit int) ([]*models.UnifiedArticle, error) {
	return e.citationList(ctx, id, "references", limit)
}

type epmcCitationResponse struct {
	CitationList struct {
		Citation []epmcResult `json:"citation"`
	} `json:"citationList"`
	ReferenceList struct {
		Reference []epmcResult `json:"reference"`
	} `json:"referenceList"`
}

func (e *EuropePMC) citationList(ctx context.Context, id, kind string, limit int) ([]*models.UnifiedArticle, error) {
	var parsed epmcCitationResponse
	err := e.Do(ctx, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/MED/%s/%s?format=json&pageSize=%d", e.BaseURL, id, kind, limit)
		return e.getJSON(ctx, u, &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var raw []epmcResult
	if kind == "citations" {
		raw = parsed.CitationList.Citation
	} else {
		raw = parsed.ReferenceList.Reference
	}
	out := make([]*models.UnifiedArticle, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toUnified())
	}
	return out, nil
}

func (e *EuropePMC) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewPermanent(europePMCKey, err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return NewRetryable(europePMCKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Provider: europePMCKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewPermanent(europePMCKey, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func buildEPMCQuery(query string, filters Filters) string {
	var sb strings.Builder
	sb.WriteString(query)
	if filters.YearMin != nil {
		fmt.Fprintf(&sb, " AND PUB_YEAR:[%d TO %d]", *filters.YearMin, yearMaxOr(filters, 3000))
	}
	if filters.Language != "" {
		fmt.Fprintf(&sb, " AND LANG:%q", filters.Language)
	}
	return sb.String()
}

func yearMaxOr(filters Filters, fallback int) int {
	if filters.YearMax != nil {
		return *filters.YearMax
	}
	return fallback
}

func (r epmcResult) toUnified() *models.UnifiedArticle {
	id := r.PMID
	if id == "" {
		id = r.ID
	}
	art := &models.UnifiedArticle{
		ID:            id,
		Title:         r.Title,
		Abstract:      r.AbstractText,
		Journal:       r.JournalTitle,
		Language:      r.Language,
		PrimarySource: europePMCKey,
		AlternateIDs:  map[string]string{},
		ArticleTypes:  map[string]struct{}{},
		MeSHTerms:     map[string]struct{}{},
	}
	art.AddProvenance(europePMCKey)

	if r.PMID != "" {
		art.AlternateIDs["pmid"] = r.PMID
	}
	if r.PMCID != "" {
		art.AlternateIDs["pmcid"] = r.PMCID
	}
	if r.DOI != "" {
		art.AlternateIDs["doi"] = r.DOI
	}
	if r.PubType != "" {
		art.ArticleTypes[r.PubType] = struct{}{}
	}
	if y, err := strconv.Atoi(r.PubYear); err == nil && y > 0 {
		art.Year = &y
	}
	if r.CitedByCount > 0 {
		art.Citations = &models.CitationMetrics{CitationCount: r.CitedByCount}
	}
	if r.AuthorString != "" {
		for i, name := range strings.Split(r.AuthorString, ", ") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			art.Authors = append(art.Authors, models.Author{Position: i + 1, Name: name})
		}
	}
	if r.IsOpenAccess == "Y" {
		art.OALinks = append(art.OALinks, models.OpenAccessLink{
			URL:        fmt.Sprintf("https://europepmc.org/article/MED/%s", id),
			HostType:   models.OAHostAggregator,
			Version:    models.OAVersionPublished,
			IsBestLink: true,
		})
	}

	art.FinalizeSets()
	return art
}
