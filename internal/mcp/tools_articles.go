package mcp

import (
	"context"
	"fmt"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/providers"
)

func init() {
	registerArticleTools(builtinTools)
}

func registerArticleTools(r *ToolRegistry) {
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "find_related_articles",
			Description: "Find articles related to a given article ID via the first provider that supports related-article lookup.",
			InputSchema: idLimitSchema(),
		},
		Handler: handleRelated,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "find_citing_articles",
			Description: "Find articles that cite a given article ID.",
			InputSchema: idLimitSchema(),
		},
		Handler: handleCiting,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "get_article_references",
			Description: "List the articles a given article ID cites.",
			InputSchema: idLimitSchema(),
		},
		Handler: handleReferences,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "get_citation_metrics",
			Description: "Fetch citation-impact metrics for a list of article IDs, optionally filtering by a minimum citation count.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"ids":           {Type: "array", Description: "article IDs"},
					"min_citations": {Type: "integer", Description: "drop articles below this citation count"},
				},
				Required: []string{"ids"},
			},
		},
		Handler: handleCitationMetrics,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "get_fulltext",
			Description: "Resolve a PDF link and (when available) extracted text for an article, given any known ID form.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"id":  {Type: "string", Description: "PMC ID or DOI"},
					"doi": {Type: "string", Description: "DOI, if id is not one"},
				},
				Required: []string{"id"},
			},
		},
		Handler: handleFulltext,
	})
}

func idLimitSchema() InputSchema {
	return InputSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"id":    {Type: "string", Description: "primary article ID"},
			"limit": {Type: "integer", Default: 20},
		},
		Required: []string{"id"},
	}
}

func handleRelated(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	return lookupArticles(ctx, svc, args, func(ctx context.Context, p providers.Provider, id string, limit int) ([]*models.UnifiedArticle, error) {
		if r, ok := p.(providers.Related); ok {
			return r.Related(ctx, id, limit)
		}
		return nil, nil
	})
}

func handleCiting(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	return lookupArticles(ctx, svc, args, func(ctx context.Context, p providers.Provider, id string, limit int) ([]*models.UnifiedArticle, error) {
		if c, ok := p.(providers.Citing); ok {
			return c.Citing(ctx, id, limit)
		}
		return nil, nil
	})
}

func handleReferences(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	return lookupArticles(ctx, svc, args, func(ctx context.Context, p providers.Provider, id string, limit int) ([]*models.UnifiedArticle, error) {
		if r, ok := p.(providers.References); ok {
			return r.References(ctx, id, limit)
		}
		return nil, nil
	})
}

// lookupArticles runs fn against every provider until one returns a
// non-empty list; providers that lack the capability, return an error,
// or return an empty list are passed over.
func lookupArticles(ctx context.Context, svc *Service, args map[string]interface{}, fn func(context.Context, providers.Provider, string, int) ([]*models.UnifiedArticle, error)) (CallToolResult, error) {
	id := argString(args, "id")
	if id == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "id is required", Suggestion: "pass the primary article ID to look up"}), nil
	}
	limit := argInt(args, "limit", 20)

	for _, p := range svc.Providers {
		list, err := fn(ctx, p, id, limit)
		if err != nil {
			continue
		}
		if len(list) > 0 {
			return NewJSONResult(toValues(list)), nil
		}
	}
	return NewJSONResult([]models.UnifiedArticle{}), nil
}

func handleCitationMetrics(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	ids := argStringSlice(args, "ids")
	if len(ids) == 0 {
		return NewToolErrorResult(&ToolError{ErrMessage: "ids is required", Suggestion: "pass a non-empty list of article IDs"}), nil
	}
	minCitations := argInt(args, "min_citations", 0)

	var metricsSource providers.Metrics
	for _, p := range svc.Providers {
		if m, ok := p.(providers.Metrics); ok {
			metricsSource = m
			break
		}
	}
	if metricsSource == nil {
		return NewToolErrorResult(&ToolError{ErrMessage: "no configured provider supports citation metrics", Retryable: false}), nil
	}

	results, err := metricsSource.CitationMetrics(ctx, ids)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Retryable: providers.IsRetryable(err)}), nil
	}

	filtered := make(map[string]models.CitationMetrics, len(results))
	for id, m := range results {
		if m.CitationCount >= minCitations {
			filtered[id] = m
		}
	}
	return NewJSONResult(map[string]interface{}{"metrics": results, "filtered": filtered}), nil
}

func handleFulltext(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	id := argString(args, "id")
	if id == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "id is required"}), nil
	}
	doi := argString(args, "doi")
	if doi == "" && looksLikeDOI(id) {
		doi = id
		id = ""
	}

	result := svc.Fulltext.Resolve(ctx, id, doi)
	if result.Source == "" {
		return NewToolErrorResult(&ToolError{
			ErrMessage: fmt.Sprintf("no open-access fulltext found for %q", id+doi),
			Suggestion: "try get_fulltext with a DOI, or confirm the article has an open-access version",
		}), nil
	}
	return NewJSONResult(result), nil
}

func looksLikeDOI(s string) bool {
	return len(s) > 3 && s[0:3] == "10."
}
