package mcp

import (
	"context"

	"github.com/biolit-mcp/litsearch-mcp/internal/timeline"
)

func init() {
	registerTimelineTools(builtinTools)
}

func registerTimelineTools(r *ToolRegistry) {
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "build_research_timeline",
			Description: "Build a chronological research timeline for a topic, grouping milestone articles into labeled branches.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"topic":     {Type: "string"},
					"filters":   {Type: "string", Description: "comma-separated filter tokens"},
					"limit":     {Type: "integer", Default: 100},
					"with_tree": {Type: "boolean", Description: "also return the branch tree", Default: true},
				},
				Required: []string{"topic"},
			},
		},
		Handler: handleBuildResearchTimeline,
	})
}

func handleBuildResearchTimeline(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	topic := argString(args, "topic")
	if topic == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "topic is required"}), nil
	}
	limit := argInt(args, "limit", 100)
	filters := parseFilters(args["filters"])
	withTree := argBool(args, "with_tree", true)

	aq := svc.Analyzer.Analyze(ctx, topic)
	articles, _, err := dispatchAndAggregate(ctx, svc, topic, aq.Providers, aq, limit, filters, SearchOptions{})
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Retryable: true}), nil
	}

	ptrs := toPointers(articles)
	svc.Enricher.Enrich(ctx, ptrs)
	timeline.ScoreAll(ptrs, timeline.DefaultConfig())

	tl := timeline.BuildTimeline(topic, ptrs)

	out := map[string]interface{}{"timeline": tl}
	if withTree {
		out["tree"] = timeline.BuildTree(topic, tl.Events)
	}
	return NewJSONResult(out), nil
}
