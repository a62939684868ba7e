// Package render turns a models.SearchResponse into the two output
// shapes unified_search can hand back: a Markdown report or a raw JSON
// document. The Markdown Sources line format is a hard contract callers
// parse.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Markdown renders resp as a numbered article-block report.
func Markdown(resp models.SearchResponse) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Results for %q\n\n", resp.Query)

	if len(resp.Articles) == 0 {
		b.WriteString("No articles found.\n\n")
	}
	for i, a := range resp.Articles {
		writeArticleBlock(&b, i+1, a, resp.ShowScores)
	}

	b.WriteString(sourcesLine(resp.Stats))

	if resp.Relaxed {
		b.WriteString("\n_Query was progressively relaxed to find results._\n")
		for _, step := range resp.RelaxTrail {
			fmt.Fprintf(&b, "  - %s: %q → %d results\n", step.Step, step.Query, step.ResultCount)
		}
	}

	if len(resp.Degraded) > 0 {
		b.WriteString("\n**Degraded providers**\n")
		for _, d := range resp.Degraded {
			fmt.Fprintf(&b, "  - %s: %s", d.Provider, d.Err)
			if d.Retryable {
				b.WriteString(" (retryable)")
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeArticleBlock(b *strings.Builder, n int, a models.UnifiedArticle, showScore bool) {
	fmt.Fprintf(b, "%d. **%s**\n", n, a.Title)
	b.WriteString("   " + authorsLine(a.Authors) + "\n")

	year := ""
	if a.Year != nil {
		year = fmt.Sprintf("%d", *a.Year)
	}
	fmt.Fprintf(b, "   %s %s — [%s](%s)\n", a.Journal, year, a.ID, deepLink(a))

	if a.Abstract != "" {
		fmt.Fprintf(b, "   %s\n", excerpt(a.Abstract, 280))
	}

	badges := badgesFor(a)
	if showScore && a.Similarity != nil {
		badges = append(badges, fmt.Sprintf("similarity %.2f", *a.Similarity))
	}
	if len(badges) > 0 {
		fmt.Fprintf(b, "   _%s_\n", strings.Join(badges, " · "))
	}
	b.WriteString("\n")
}

func authorsLine(authors []models.Author) string {
	if len(authors) == 0 {
		return "(no listed authors)"
	}
	names := make([]string, 0, 3)
	for i, a := range authors {
		if i >= 3 {
			break
		}
		names = append(names, a.Name)
	}
	line := strings.Join(names, ", ")
	if len(authors) > 3 {
		line += " et al."
	}
	return line
}

func deepLink(a models.UnifiedArticle) string {
	switch a.PrimarySource {
	case "pubmed":
		return "https://pubmed.ncbi.nlm.nih.gov/" + strings.TrimPrefix(a.ID, "PMID:")
	case "crossref":
		if doi, ok := a.AlternateIDs["doi"]; ok {
			return "https://doi.org/" + doi
		}
	case "biorxiv", "medrxiv":
		return "https://www.biorxiv.org/content/" + a.ID
	case "clinicaltrials":
		return "https://clinicaltrials.gov/study/" + a.ID
	}
	if doi, ok := a.AlternateIDs["doi"]; ok {
		return "https://doi.org/" + doi
	}
	return "#" + a.ID
}

func badgesFor(a models.UnifiedArticle) []string {
	var badges []string
	for _, t := range a.ArticleTypeList {
		if strings.EqualFold(t, "preprint") {
			badges = append(badges, "preprint")
			break
		}
	}
	if len(a.OALinks) > 0 {
		badges = append(badges, "open access")
	}
	return badges
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

// sourcesLine is a hard contract: "provider (N_returned/N_total)" when
// the provider's total is known, else "provider (N_returned)".
func sourcesLine(stats models.AggregationStatsView) string {
	if len(stats.PerProviderContribution) == 0 {
		return ""
	}
	providers := make([]string, 0, len(stats.PerProviderContribution))
	for p := range stats.PerProviderContribution {
		providers = append(providers, p)
	}
	sortStrings(providers)

	parts := make([]string, 0, len(providers))
	for _, p := range providers {
		returned := stats.PerProviderContribution[p]
		if total, ok := stats.PerProviderTotal[p]; ok && total > 0 {
			parts = append(parts, fmt.Sprintf("%s (%d/%d)", p, returned, total))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%d)", p, returned))
		}
	}
	return "**Sources**: " + strings.Join(parts, ", ") + "\n"
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// JSON renders resp as a json.RawMessage, for callers that want the
// structured form instead of Markdown.
func JSON(resp models.SearchResponse) (json.RawMessage, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
