package citetree

import (
	"fmt"
	"strings"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// cyElement is one cytoscape.js graph element (a node or an edge), the
// library's native "elements" shape.
type cyElement struct {
	Data map[string]interface{} `json:"data"`
}

// vizGraph is the shared node/edge shape used by g6, d3, and vis.js —
// all three libraries accept (or trivially adapt from) a flat
// {nodes, edges} object, so one builder covers all three rather than
// three near-identical structs.
type vizGraph struct {
	Nodes []vizNode `json:"nodes"`
	Edges []vizEdge `json:"edges"`
}

type vizNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Depth int    `json:"depth"`
	Year  *int   `json:"year,omitempty"`
}

type vizEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Render serializes tree into the requested format. cytoscape, g6, d3, and
// vis return JSON-marshalable Go values; graphml and mermaid return a
// ready-to-embed text document (and are returned as a string so callers
// can pass them straight through without an extra marshal step).
func Render(tree models.CitationTree, format models.CitationTreeFormat) (interface{}, error) {
	switch format {
	case models.FormatCytoscape:
		return renderCytoscape(tree), nil
	case models.FormatG6, models.FormatD3, models.FormatVis:
		return renderViz(tree), nil
	case models.FormatGraphML:
		return renderGraphML(tree), nil
	case models.FormatMermaid:
		return renderMermaid(tree), nil
	default:
		return nil, fmt.Errorf("unsupported citation tree format %q", format)
	}
}

func renderCytoscape(tree models.CitationTree) []cyElement {
	elements := make([]cyElement, 0, len(tree.Nodes)+len(tree.Edges))
	for _, n := range tree.Nodes {
		elements = append(elements, cyElement{Data: map[string]interface{}{
			"id":    n.Article.ID,
			"label": n.Article.Title,
			"depth": n.Depth,
		}})
	}
	for i, e := range tree.Edges {
		elements = append(elements, cyElement{Data: map[string]interface{}{
			"id":     fmt.Sprintf("e%d", i),
			"source": e.From,
			"target": e.To,
		}})
	}
	return elements
}

func renderViz(tree models.CitationTree) vizGraph {
	g := vizGraph{
		Nodes: make([]vizNode, 0, len(tree.Nodes)),
		Edges: make([]vizEdge, 0, len(tree.Edges)),
	}
	for _, n := range tree.Nodes {
		g.Nodes = append(g.Nodes, vizNode{ID: n.Article.ID, Label: n.Article.Title, Depth: n.Depth, Year: n.Article.Year})
	}
	for _, e := range tree.Edges {
		g.Edges = append(g.Edges, vizEdge{Source: e.From, Target: e.To})
	}
	return g
}

func renderGraphML(tree models.CitationTree) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<graphml xmlns="http://graphml.graphdrawing.org/xmlns">` + "\n")
	b.WriteString(`  <key id="label" for="node" attr.name="label" attr.type="string"/>` + "\n")
	b.WriteString(`  <key id="depth" for="node" attr.name="depth" attr.type="int"/>` + "\n")
	b.WriteString(fmt.Sprintf(`  <graph id="%s" edgedefault="directed">`+"\n", xmlEscape(tree.SeedID)))
	for _, n := range tree.Nodes {
		b.WriteString(fmt.Sprintf(`    <node id="%s">`+"\n", xmlEscape(n.Article.ID)))
		b.WriteString(fmt.Sprintf(`      <data key="label">%s</data>`+"\n", xmlEscape(n.Article.Title)))
		b.WriteString(fmt.Sprintf(`      <data key="depth">%d</data>`+"\n", n.Depth))
		b.WriteString(`    </node>` + "\n")
	}
	for i, e := range tree.Edges {
		b.WriteString(fmt.Sprintf(`    <edge id="e%d" source="%s" target="%s"/>`+"\n", i, xmlEscape(e.From), xmlEscape(e.To)))
	}
	b.WriteString("  </graph>\n</graphml>\n")
	return b.String()
}

func renderMermaid(tree models.CitationTree) string {
	var b strings.Builder
	b.WriteString("graph TD\n")
	ids := make(map[string]string, len(tree.Nodes))
	for i, n := range tree.Nodes {
		alias := fmt.Sprintf("n%d", i)
		ids[n.Article.ID] = alias
		b.WriteString(fmt.Sprintf("    %s[%q]\n", alias, truncate(n.Article.Title, 60)))
	}
	for _, e := range tree.Edges {
		from, ok1 := ids[e.From]
		to, ok2 := ids[e.To]
		if !ok1 || !ok2 {
			continue
		}
		b.WriteString(fmt.Sprintf("    %s --> %s\n", from, to))
	}
	return b.String()
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
