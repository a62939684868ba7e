package pipeline

import (
	"fmt"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
)

// Template expands a PipelineConfig's Template + TemplateParams into a
// concrete step list. Each template owns its own parameter defaults,
// surfaced via describe_template, so the registry holds each template's
// descriptor alongside its expand function rather than one shared default
// table.
type Template struct {
	Descriptor models.TemplateDescriptor
	Expand     func(params map[string]interface{}) []models.PipelineStep
}

// TemplateRegistry looks templates up by name, with fuzzy-name
// correction handled by the validator.
type TemplateRegistry struct {
	templates map[string]Template
}

// NewTemplateRegistry returns a registry preloaded with the built-in
// templates (currently just "pico"; more can be registered without
// touching the validator).
func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{templates: make(map[string]Template)}
	r.Register(picoTemplate())
	return r
}

// Register adds or replaces a named template.
func (r *TemplateRegistry) Register(t Template) {
	r.templates[t.Descriptor.Name] = t
}

// Names returns every registered template name, for fuzzy-matching
// candidates.
func (r *TemplateRegistry) Names() []string {
	out := make([]string, 0, len(r.templates))
	for name := range r.templates {
		out = append(out, name)
	}
	return out
}

// Describe implements describe_template(name).
func (r *TemplateRegistry) Describe(name string) (models.TemplateDescriptor, bool) {
	t, ok := r.templates[name]
	return t.Descriptor, ok
}

// Expand resolves a PipelineConfig that names a template into its step
// list, merging template_params over the template's own defaults.
func (r *TemplateRegistry) Expand(cfg models.PipelineConfig) (models.PipelineConfig, error) {
	if cfg.Template == "" {
		return cfg, nil
	}
	t, ok := r.templates[cfg.Template]
	if !ok {
		return cfg, fmt.Errorf("unknown pipeline template %q", cfg.Template)
	}
	cfg.Steps = t.Expand(cfg.TemplateParams)
	return cfg, nil
}

// picoTemplate expands into four P/I/C/O sub-searches fused by one RRF
// merge step.
func picoTemplate() Template {
	return Template{
		Descriptor: models.TemplateDescriptor{
			Name:        "pico",
			Description: "Clinical PICO question decomposed into four parallel sub-searches, fused by reciprocal rank fusion.",
			Params: []models.TemplateParam{
				{Name: "P", Description: "Population", Required: true},
				{Name: "I", Description: "Intervention", Required: true},
				{Name: "C", Description: "Comparison", Required: false, Default: ""},
				{Name: "O", Description: "Outcome", Required: false, Default: ""},
			},
		},
		Expand: func(params map[string]interface{}) []models.PipelineStep {
			p := stringParam(params, "P", "")
			i := stringParam(params, "I", "")
			c := stringParam(params, "C", "")
			o := stringParam(params, "O", "")

			steps := []models.PipelineStep{
				{ID: "pico-p", Action: models.ActionSearch, Params: map[string]interface{}{"query": p}, OnError: models.OnErrorSkip},
				{ID: "pico-i", Action: models.ActionSearch, Params: map[string]interface{}{"query": i}, OnError: models.OnErrorSkip},
			}
			inputs := []string{"pico-p", "pico-i"}
			if c != "" {
				steps = append(steps, models.PipelineStep{ID: "pico-c", Action: models.ActionSearch, Params: map[string]interface{}{"query": c}, OnError: models.OnErrorSkip})
				inputs = append(inputs, "pico-c")
			}
			if o != "" {
				steps = append(steps, models.PipelineStep{ID: "pico-o", Action: models.ActionSearch, Params: map[string]interface{}{"query": o}, OnError: models.OnErrorSkip})
				inputs = append(inputs, "pico-o")
			}
			steps = append(steps, models.PipelineStep{
				ID:      "pico-merge",
				Action:  models.ActionMerge,
				Params:  map[string]interface{}{"fusion": "rrf"},
				Inputs:  inputs,
				OnError: models.OnErrorAbort,
			})
			return steps
		},
	}
}

func stringParam(params map[string]interface{}, key, def string) string {
	if params == nil {
		return def
	}
	v, ok := params[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}
