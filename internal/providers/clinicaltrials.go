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

// ClinicalTrials is the clinical-trials-registry adapter
// (ClinicalTrials.gov v2 API). It is included in the dispatch for
// clinical-intent queries and feeds the `clinical` ranking profile's
// relevance for intervention studies.
type ClinicalTrials struct {
	Base
	BaseURL string
}

const clinicalTrialsKey = "clinicaltrials"

func NewClinicalTrials(base Base, baseURL string) *ClinicalTrials {
	base.ProviderKey = clinicalTrialsKey
	return &ClinicalTrials{Base: base, BaseURL: baseURL}
}

type ctgStudiesResponse struct {
	Studies    []ctgStudy `json:"studies"`
	TotalCount int        `json:"totalCount"`
}

type ctgStudy struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		StatusModule struct {
			OverallStatus   string `json:"overallStatus"`
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
		} `json:"statusModule"`
		DescriptionModule struct {
			BriefSummary string `json:"briefSummary"`
		} `json:"descriptionModule"`
		DesignModule struct {
			PhaseList []string `json:"phases"`
		} `json:"designModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
	} `json:"protocolSection"`
}

// Search queries ClinicalTrials.gov's v2 study-search endpoint. Filters
// beyond the free-text query (age/sex/species) are not meaningfully
// translatable into the registry's query syntax and are left to the
// aggregator's downstream filter step.
func (c *ClinicalTrials) Search(ctx context.Context, query string, limit int, filters Filters) (SearchResult, error) {
	var parsed ctgStudiesResponse
	err := c.Do(ctx, func(ctx context.Context) error {
		v := url.Values{
			"query.term":  {query},
			"pageSize":    {strconv.Itoa(limit)},
			"countTotal":  {"true"},
			"format":      {"json"},
		}
		u := c.BaseURL + "/studies?" + v.Encode()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return NewPermanent(clinicalTrialsKey, err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return NewRetryable(clinicalTrialsKey, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &Error{Provider: clinicalTrialsKey, Category: StatusCategory(resp.StatusCode), Err: fmt.Errorf("status %d", resp.StatusCode)}
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return NewPermanent(clinicalTrialsKey, fmt.Errorf("decode: %w", err))
		}
		return nil
	})
	if err != nil {
		if IsNotFound(err) {
			return SearchResult{}, nil
		}
		return SearchResult{}, err
	}

	records := make([]*models.UnifiedArticle, 0, len(parsed.Studies))
	for _, s := range parsed.Studies {
		records = append(records, s.toUnified())
	}
	total := parsed.TotalCount
	return SearchResult{Records: records, TotalCount: &total}, nil
}

func (s ctgStudy) toUnified() *models.UnifiedArticle {
	id := s.ProtocolSection.IdentificationModule.NCTID
	art := &models.UnifiedArticle{
		ID:            id,
		Title:         s.ProtocolSection.IdentificationModule.BriefTitle,
		Abstract:      s.ProtocolSection.DescriptionModule.BriefSummary,
		Journal:       "ClinicalTrials.gov",
		PrimarySource: clinicalTrialsKey,
		AlternateIDs:  map[string]string{"nct": id},
		ArticleTypes:  map[string]struct{}{"clinical_trial": {}},
		MeSHTerms:     map[string]struct{}{},
	}
	art.AddProvenance(clinicalTrialsKey)

	for _, phase := range s.ProtocolSection.DesignModule.PhaseList {
		if phase != "" && phase != "NA" {
			art.ArticleTypes[strings.ToLower(strings.ReplaceAll(phase, " ", "_"))] = struct{}{}
		}
	}
	for _, cond := range s.ProtocolSection.ConditionsModule.Conditions {
		if cond != "" {
			art.MeSHTerms[cond] = struct{}{}
		}
	}
	if len(s.ProtocolSection.StatusModule.StartDateStruct.Date) >= 4 {
		if y, err := strconv.Atoi(s.ProtocolSection.StatusModule.StartDateStruct.Date[:4]); err == nil && y > 0 {
			art.Year = &y
		}
	}
	art.OALinks = []models.OpenAccessLink{{
		URL:        "https://clinicaltrials.gov/study/" + id,
		HostType:   models.OAHostAggregator,
		Version:    models.OAVersionPublished,
		IsBestLink: true,
	}}

	art.FinalizeSets()
	return art
}
