package providers

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// PubMed is the primary-index adapter, backed by NCBI's eutils. Search
// runs ESearch to get PMIDs then EFetch to pull full records; Fetch
// reuses the same EFetch endpoint. PubMed does not implement the Related
// capability (it makes no ELink call). The two-call
// search-then-fetch shape is how the Entrez API is structured.
type PubMed struct {
	Base
	BaseURL string
	APIKey  string
}

const pubmedKey = "pubmed"

func NewPubMed(base Base, baseURL, apiKey string) *PubMed {
	base.ProviderKey = pubmedKey
	return &PubMed{Base: base, BaseURL: baseURL, APIKey: apiKey}
}

type eSearchResult struct {
	ESearchResult struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

func (p *PubMed) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	q := buildPubMedQuery(query, filters)

	var ids []string
	var total int
	err := p.Do(ctx, func(ctx context.Context) error {
		u := p.BaseURL + "/esearch.fcgi?" + url.Values{
			"db":      {"pubmed"},
			"term":    {q},
			"retmax":  {strconv.Itoa(limit)},
			"retmode": {"json"},
			"api_key": {p.APIKey},
		}.Encode()

		resp, err := p.get(ctx, u)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var parsed eSearchResult
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return NewPermanent(pubmedKey, fmt.Errorf("decode esearch: %w", err))
		}
		ids = parsed.ESearchResult.IDList
		total, _ = strconv.Atoi(parsed.ESearchResult.Count)
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}
	if len(ids) == 0 {
		zero := 0
		return SearchResult{TotalCount: &zero}, nil
	}

	records, err := p.fetchArticles(ctx, ids)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Records: records, TotalCount: &total}, nil
}

func (p *PubMed) Fetch(ctx context.Context, id string) (*models.UnifiedArticle, error) {
	records, err := p.fetchArticles(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, NewNotFound(pubmedKey, fmt.Errorf("pmid %s not found", id))
	}
	return records[0], nil
}

func (p *PubMed) fetchArticles(ctx context.Context, ids []string) ([]*models.UnifiedArticle, error) {
	var set pubmedArticleSet
	err := p.Do(ctx, func(ctx context.Context) error {
		u := p.BaseURL + "/efetch.fcgi?" + url.Values{
			"db":      {"pubmed"},
			"id":      {strings.Join(ids, ",")},
			"retmode": {"xml"},
			"api_key": {p.APIKey},
		}.Encode()

		resp, err := p.get(ctx, u)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return NewRetryable(pubmedKey, err)
		}
		if err := xml.Unmarshal(body, &set); err != nil {
			return NewPermanent(pubmedKey, fmt.Errorf("decode efetch: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.UnifiedArticle, 0, len(set.Articles))
	for _, raw := range set.Articles {
		out = append(out, raw.toUnified())
	}
	return out, nil
}

func (p *PubMed) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, NewPermanent(pubmedKey, err)
	}
	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, NewRetryable(pubmedKey, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cat := StatusCategory(resp.StatusCode)
		return nil, &Error{Provider: pubmedKey, Category: cat, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	return resp, nil
}

// buildPubMedQuery translates filters into Entrez field-tag syntax.
func buildPubMedQuery(query string, filters Filters) string {
	var sb strings.Builder
	sb.WriteString(query)
	if from, to := filters.DateFrom(), filters.DateTo(); from != "" || to != "" {
		if from == "" {
			from = "1800/01/01"
		}
		if to == "" {
			to = "3000/01/01"
		}
		fmt.Fprintf(&sb, " AND (%s:%s[dp])", from, to)
	}
	for _, at := range filters.ArticleTypes {
		fmt.Fprintf(&sb, " AND %s[pt]", at)
	}
	if filters.Language != "" {
		fmt.Fprintf(&sb, " AND %s[la]", filters.Language)
	}
	return sb.String()
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			ArticleTitle string `xml:"ArticleTitle"`
			Abstract     struct {
				AbstractText []string `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title     string `xml:"Title"`
				PubDate   struct {
					Year string `xml:"Year"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			AuthorList struct {
				Author []struct {
					LastName string `xml:"LastName"`
					ForeName string `xml:"ForeName"`
				} `xml:"Author"`
			} `xml:"AuthorList"`
			PublicationTypeList struct {
				PublicationType []string `xml:"PublicationType"`
			} `xml:"PublicationTypeList"`
			Language string `xml:"Language"`
		} `xml:"Article"`
		MeshHeadingList struct {
			MeshHeading []struct {
				DescriptorName string `xml:"DescriptorName"`
			} `xml:"MeshHeading"`
		} `xml:"MeshHeadingList"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		ArticleIDList struct {
			ArticleID []struct {
				IDType string `xml:"IdType,attr"`
				Value  string `xml:",chardata"`
			} `xml:"ArticleId"`
		} `xml:"ArticleIdList"`
	} `xml:"PubmedData"`
}

func (a pubmedArticle) toUnified() *models.UnifiedArticle {
	art := &models.UnifiedArticle{
		ID:            a.MedlineCitation.PMID,
		Title:         a.MedlineCitation.Article.ArticleTitle,
		Abstract:      strings.Join(a.MedlineCitation.Article.Abstract.AbstractText, " "),
		Journal:       a.MedlineCitation.Article.Journal.Title,
		Language:      a.MedlineCitation.Article.Language,
		PrimarySource: pubmedKey,
		AlternateIDs:  map[string]string{"pmid": a.MedlineCitation.PMID},
		MeSHTerms:     map[string]struct{}{},
		ArticleTypes:  map[string]struct{}{},
	}
	art.AddProvenance(pubmedKey)

	if y, err := strconv.Atoi(a.MedlineCitation.Article.Journal.PubDate.Year); err == nil && y > 0 {
		art.Year = &y
	}

	for i, au := range a.MedlineCitation.Article.AuthorList.Author {
		name := strings.TrimSpace(au.ForeName + " " + au.LastName)
		if name == "" {
			continue
		}
		art.Authors = append(art.Authors, models.Author{Position: i + 1, Name: name})
	}

	for _, mh := range a.MedlineCitation.MeshHeadingList.MeshHeading {
		if mh.DescriptorName != "" {
			art.MeSHTerms[mh.DescriptorName] = struct{}{}
		}
	}
	for _, pt := range a.MedlineCitation.Article.PublicationTypeList.PublicationType {
		if pt != "" {
			art.ArticleTypes[pt] = struct{}{}
		}
	}

	for _, aid := range a.PubmedData.ArticleIDList.ArticleID {
		switch aid.IDType {
		case "doi":
			art.AlternateIDs["doi"] = aid.Value
		case "pmc":
			art.AlternateIDs["pmcid"] = aid.Value
		}
	}

	art.FinalizeSets()
	return art
}
