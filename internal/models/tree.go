package models

// CitationDirection is which way a citation-tree edge was walked from its
// seed article.
type CitationDirection string

const (
	DirectionCiting     CitationDirection = "citing"     // who cites the seed
	DirectionReferences CitationDirection = "references" // what the seed cites
	DirectionBoth       CitationDirection = "both"
)

// CitationTreeFormat is one of the graph serializations
// build_citation_tree can render to.
type CitationTreeFormat string

const (
	FormatCytoscape CitationTreeFormat = "cytoscape"
	FormatG6        CitationTreeFormat = "g6"
	FormatD3        CitationTreeFormat = "d3"
	FormatVis       CitationTreeFormat = "vis"
	FormatGraphML   CitationTreeFormat = "graphml"
	FormatMermaid   CitationTreeFormat = "mermaid"
)

// CitationTreeNode is one article reached while walking a citation tree
// from its seed.
type CitationTreeNode struct {
	Article   UnifiedArticle    `json:"article"`
	Depth     int               `json:"depth"`
	Direction CitationDirection `json:"direction"`
}

// CitationTreeEdge is a directed citation relationship discovered while
// building the tree: From cites To.
type CitationTreeEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CitationTree is the raw graph build_citation_tree constructs before
// rendering to one of the requested output formats.
type CitationTree struct {
	SeedID string              `json:"seed_id"`
	Depth  int                 `json:"depth"`
	Nodes  []CitationTreeNode  `json:"nodes"`
	Edges  []CitationTreeEdge  `json:"edges"`
	Truncated bool             `json:"truncated"`
}

// DegradedProvider is one entry in a SearchResponse's degraded-providers
// section: a provider that failed during dispatch, with timing.
type DegradedProvider struct {
	Provider  string `json:"provider"`
	Err       string `json:"error"`
	Retryable bool   `json:"retryable"`
	DurationMS int64 `json:"duration_ms"`
}

// SearchResponse is the fully assembled result of a unified_search call:
// ranked articles plus every piece of bookkeeping the render layer and
// the degraded-response path need.
type SearchResponse struct {
	Query     string            `json:"query"`
	Analyzed  AnalyzedQuery     `json:"analyzed_query,omitempty"`
	Articles  []UnifiedArticle  `json:"articles"`
	Stats     AggregationStatsView `json:"stats"`
	Relaxed   bool              `json:"relaxed"`
	RelaxTrail []RelaxAttempt   `json:"relaxation_trail,omitempty"`
	Degraded  []DegradedProvider `json:"degraded,omitempty"`
	ShowScores bool              `json:"-"`
}

// AggregationStatsView mirrors internal/aggregate.AggregationStats
// without importing it here (models sits below aggregate in the
// dependency order), so the render layer can consume a single
// self-contained response type.
type AggregationStatsView struct {
	TotalInput              int            `json:"total_input"`
	UniqueArticles          int            `json:"unique_articles"`
	DuplicatesRemoved       int            `json:"duplicates_removed"`
	PerProviderContribution map[string]int `json:"per_provider_contribution"`
	PerProviderTotal        map[string]int `json:"per_provider_total,omitempty"`
}

// RelaxAttempt mirrors internal/relax.Attempt for the same reason.
type RelaxAttempt struct {
	Step        string `json:"step"`
	Query       string `json:"query"`
	ResultCount int    `json:"result_count"`
}

// TemplateDescriptor is what describe_template(name) returns: a
// template's parameters and their canonical defaults.
type TemplateDescriptor struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Params      []TemplateParam   `json:"params"`
	Steps       []PipelineStep    `json:"-"` // rendered, not serialized directly
}

// TemplateParam describes one parameter a pipeline template accepts.
type TemplateParam struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Default     string `json:"default,omitempty"`
}
