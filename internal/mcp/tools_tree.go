package mcp

import (
	"context"

	"github.com/biolit-mcp/litsearch-mcp/internal/citetree"
	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

func init() {
	registerTreeTools(builtinTools)
}

func registerTreeTools(r *ToolRegistry) {
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "build_citation_tree",
			Description: "Walk an article's citation graph to a given depth and render it in one of several graph-visualization formats.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"seed_id":   {Type: "string", Description: "article ID to walk from"},
					"depth":     {Type: "integer", Description: "how many hops to walk", Default: 2},
					"direction": {Type: "string", Enum: []string{"citing", "references", "both"}, Default: "both"},
					"limit":     {Type: "integer", Description: "max articles per hop", Default: 20},
					"format":    {Type: "string", Enum: []string{"cytoscape", "g6", "d3", "vis", "graphml", "mermaid"}, Default: "cytoscape"},
				},
				Required: []string{"seed_id"},
			},
		},
		Handler: handleBuildCitationTree,
	})
}

func handleBuildCitationTree(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	seedID := argString(args, "seed_id")
	if seedID == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "seed_id is required"}), nil
	}
	depth := argInt(args, "depth", 2)
	limit := argInt(args, "limit", 20)

	direction := models.CitationDirection(argString(args, "direction"))
	if direction == "" {
		direction = models.DirectionBoth
	}
	format := models.CitationTreeFormat(argString(args, "format"))
	if format == "" {
		format = models.FormatCytoscape
	}

	tree, err := svc.CiteTree.Build(ctx, seedID, depth, direction, limit)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "confirm the seed ID exists in one of the configured providers"}), nil
	}

	rendered, err := citetree.Render(tree, format)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "use one of: cytoscape, g6, d3, vis, graphml, mermaid"}), nil
	}
	return NewJSONResult(map[string]interface{}{"format": format, "graph": rendered, "truncated": tree.Truncated}), nil
}
