package models

// OnErrorPolicy governs what a pipeline step does when its action handler
// returns an error.
type OnErrorPolicy string

const (
	OnErrorSkip  OnErrorPolicy = "skip"
	OnErrorAbort OnErrorPolicy = "abort"
)

// StepAction is one of the ten verbs a PipelineStep can invoke.
type StepAction string

const (
	ActionSearch     StepAction = "search"
	ActionPICO       StepAction = "pico"
	ActionExpand     StepAction = "expand"
	ActionDetails    StepAction = "details"
	ActionRelated    StepAction = "related"
	ActionCiting     StepAction = "citing"
	ActionReferences StepAction = "references"
	ActionMetrics    StepAction = "metrics"
	ActionMerge      StepAction = "merge"
	ActionFilter     StepAction = "filter"
)

// PipelineStep is one node in a PipelineConfig's step DAG.
type PipelineStep struct {
	ID      string                 `yaml:"id" json:"id"`
	Action  StepAction             `yaml:"action" json:"action"`
	Params  map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Inputs  []string               `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	OnError OnErrorPolicy          `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// OutputFormat is the rendering format requested for a pipeline's final
// output.
type OutputFormat string

const (
	OutputMarkdown OutputFormat = "markdown"
	OutputJSON     OutputFormat = "json"
)

// OutputConfig describes how a PipelineConfig's final StepResult should be
// rendered and limited.
type OutputConfig struct {
	Format  OutputFormat `yaml:"format,omitempty" json:"format,omitempty"`
	Limit   int          `yaml:"limit,omitempty" json:"limit,omitempty"`
	Ranking string       `yaml:"ranking,omitempty" json:"ranking,omitempty"`
}

// PipelineScope is where a PipelineConfig is persisted.
type PipelineScope string

const (
	ScopeWorkspace PipelineScope = "workspace"
	ScopeGlobal    PipelineScope = "global"
)

// PipelineConfig is a full, user-authorable (or template-derived)
// definition of a composite search workflow.
type PipelineConfig struct {
	Name           string                 `yaml:"name" json:"name"`
	Steps          []PipelineStep         `yaml:"steps" json:"steps"`
	Template       string                 `yaml:"template,omitempty" json:"template,omitempty"`
	TemplateParams map[string]interface{} `yaml:"template_params,omitempty" json:"template_params,omitempty"`
	Output         OutputConfig           `yaml:"output,omitempty" json:"output,omitempty"`
	Scope          PipelineScope          `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// StepResult is what one executed PipelineStep produced.
type StepResult struct {
	StepID       string            `json:"step_id"`
	Action       StepAction        `json:"action"`
	Articles     []UnifiedArticle  `json:"articles,omitempty"`
	ExternalIDs  []string          `json:"external_ids,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Err          string            `json:"error,omitempty"`
	DurationMS   int64             `json:"duration_ms"`
}

// ValidationFix records one auto-fix the validator applied to a
// PipelineConfig before execution.
type ValidationFix struct {
	StepID   string `json:"step_id,omitempty"`
	Severity string `json:"severity"` // info | warning
	Message  string `json:"message"`
	Before   string `json:"before,omitempty"`
	After    string `json:"after,omitempty"`
}

// ValidationError is an unfixable problem that aborts validation.
type ValidationError struct {
	StepID  string `json:"step_id,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.StepID != "" {
		return e.StepID + ": " + e.Message
	}
	return e.Message
}

// PipelineRun is the record of one validated-and-executed PipelineConfig.
type PipelineRun struct {
	ID          string                    `json:"run_id"`
	ConfigHash  string                    `json:"config_hash"`
	StartedAt   int64                     `json:"started_at_unix"`
	DurationMS  int64                     `json:"duration_ms"`
	StepResults []StepResult              `json:"step_results"`
	Fixes       []ValidationFix           `json:"fixes,omitempty"`
	Final       []UnifiedArticle          `json:"final"`
	Aborted     bool                      `json:"aborted"`
	AbortReason string                    `json:"abort_reason,omitempty"`
}
