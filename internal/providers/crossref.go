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

// Crossref is a secondary metadata adapter, useful mainly for DOI lookups
// and as a cross-check on journal/article-type metadata PubMed lacks for
// very recent preprint-derived publications.
type Crossref struct {
	Base
	BaseURL string
	MailTo  string
}

const crossrefKey = "crossref"

func NewCrossref(base Base, baseURL, mailTo string) *Crossref {
	base.ProviderKey = crossrefKey
	return &Crossref{Base: base, BaseURL: baseURL, MailTo: mailTo}
}

type crossrefWorksResponse struct {
	Message struct {
		TotalResults int            `json:"total-results"`
		Items        []crossrefItem `json:"items"`
	} `json:"message"`
}

type crossrefItem struct {
	DOI     string `json:"DOI"`
	Title   []string `json:"title"`
	Abstract string  `json:"abstract"`
	Type    string   `json:"type"`
	Language string  `json:"language"`
	ContainerTitle []string `json:"container-title"`
	Published struct {
		DateParts [][]int `json:"date-parts"`
	} `json:"published"`
	Author []struct {
		Given  string `json:"given"`
		Family string `json:"family"`
		ORCID  string `json:"ORCID"`
	} `json:"author"`
	IsReferencedByCount int `json:"is-referenced-by-count"`
}

func (c *Crossref) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	var parsed crossrefWorksResponse
	err := c.Do(ctx, func(ctx context.Context) error {
		v := url.Values{
			"query": {query},
			"rows":  {strconv.Itoa(limit)},
		}
		if c.MailTo != "" {
			v.Set("mailto", c.MailTo)
		}
		if filters.YearMin != nil {
			v.Set("filter", fmt.Sprintf("from-pub-date:%04d-01-01", *filters.YearMin))
		}
		return c.getJSON(ctx, c.BaseURL+"/works?"+v.Encode(), &parsed)
	})
	if err != nil {
		if IsNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}

	records := make([]*models.UnifiedArticle, 0, len(parsed.Message.Items))
	for _, item := range parsed.Message.Items {
		records = append(records, item.toUnified())
	}
	total := parsed.Message.TotalResults
	return SearchResult{Records: records, TotalCount: &total}, nil
}

func (c *Crossref) Fetch(ctx context.Context, doi string) (*models.UnifiedArticle, error) {
	var item crossrefItem
	err := c.Do(ctx, func(ctx context.Context) error {
		var wrapper struct {
			Message crossrefItem `json:"message"`
		}
		if err := c.getJSON(ctx, c.BaseURL+"/works/"+url.PathEscape(doi), &wrapper); err != nil {
			return err
		}
		item = wrapper.Message
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item.toUnified(), nil
}

func (c *Crossref) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return NewPermanent(crossrefKey, err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewRetryable(crossrefKey, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &Error{Provider: crossrefKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewPermanent(crossrefKey, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (item crossrefItem) toUnified() *models.UnifiedArticle {
	title := ""
	if len(item.Title) > 0 {
		title = item.Title[0]
	}
	journal := ""
	if len(item.ContainerTitle) > 0 {
		journal = item.ContainerTitle[0]
	}

	art := &models.UnifiedArticle{
		ID:            item.DOI,
		Title:         title,
		Abstract:      stripJATS(item.Abstract),
		Journal:       journal,
		Language:      item.Language,
		PrimarySource: crossrefKey,
		AlternateIDs:  map[string]string{"doi": item.DOI},
		ArticleTypes:  map[string]struct{}{item.Type: {}},
		MeSHTerms:     map[string]struct{}{},
	}
	art.AddProvenance(crossrefKey)

	if len(item.Published.DateParts) > 0 && len(item.Published.DateParts[0]) > 0 {
		y := item.Published.DateParts[0][0]
		art.Year = &y
	}
	if item.IsReferencedByCount > 0 {
		art.Citations = &models.CitationMetrics{CitationCount: item.IsReferencedByCount}
	}
	for i, au := range item.Author {
		name := strings.TrimSpace(au.Given + " " + au.Family)
		if name == "" {
			continue
		}
		art.Authors = append(art.Authors, models.Author{Position: i + 1, Name: name, ORCID: au.ORCID})
	}

	art.FinalizeSets()
	return art
}

// stripJATS does a minimal strip of the JATS <jats:p> wrapper Crossref
// sometimes wraps abstracts in; full XML parsing would be overkill for a
// single optional wrapper tag.
func stripJATS(s string) string {
	s = strings.ReplaceAll(s, "<jats:p>", "")
	s = strings.ReplaceAll(s, "</jats:p>", "")
	return strings.TrimSpace(s)
}
