package mcp

import (
	"context"
	"encoding/json"

	"github.com/biolit-mcp/litsearch-mcp/internal/models"
	"github.com/biolit-mcp/litsearch-mcp/internal/pipeline"
)

func init() {
	registerPipelineTools(builtinTools)
}

func registerPipelineTools(r *ToolRegistry) {
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "run_pipeline",
			Description: "Validate and execute a PipelineConfig (inline or by saved name), returning the full run plus final ranked output.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"config": {Type: "object", Description: "inline PipelineConfig"},
					"name":   {Type: "string", Description: "name of a previously saved pipeline"},
				},
			},
		},
		Handler: handleRunPipeline,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "save_pipeline",
			Description: "Persist a PipelineConfig under its name, in the workspace or global scope.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]PropertySchema{"config": {Type: "object"}},
				Required:   []string{"config"},
			},
		},
		Handler: handleSavePipeline,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "list_pipelines",
			Description: "List saved pipelines in one or both scopes.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]PropertySchema{"scope": {Type: "string", Enum: []string{"workspace", "global"}}},
			},
		},
		Handler: handleListPipelines,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "load_pipeline",
			Description: "Load a saved PipelineConfig by name, resolving workspace scope before global.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]PropertySchema{"name": {Type: "string"}},
				Required:   []string{"name"},
			},
		},
		Handler: handleLoadPipeline,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "delete_pipeline",
			Description: "Delete a saved pipeline from a given scope.",
			InputSchema: InputSchema{
				Type: "object",
				Properties: map[string]PropertySchema{
					"name":  {Type: "string"},
					"scope": {Type: "string", Enum: []string{"workspace", "global"}, Default: "workspace"},
				},
				Required: []string{"name"},
			},
		},
		Handler: handleDeletePipeline,
	})
	r.Register(RegisteredTool{
		Definition: Tool{
			Name:        "get_pipeline_history",
			Description: "Return every recorded run for a saved pipeline's current content hash.",
			InputSchema: InputSchema{
				Type:       "object",
				Properties: map[string]PropertySchema{"name": {Type: "string"}},
				Required:   []string{"name"},
			},
		},
		Handler: handleGetPipelineHistory,
	})
}

// decodePipelineConfig re-marshals the loosely-typed args["config"] value
// into a models.PipelineConfig, the simplest faithful way to decode an
// arbitrary JSON-RPC argument map into a concrete struct.
func decodePipelineConfig(args map[string]interface{}) (models.PipelineConfig, error) {
	raw, ok := args["config"]
	if !ok {
		return models.PipelineConfig{}, nil
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return models.PipelineConfig{}, err
	}
	var cfg models.PipelineConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return models.PipelineConfig{}, err
	}
	return cfg, nil
}

func handleRunPipeline(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	cfg, err := decodePipelineConfig(args)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: "malformed config: " + err.Error()}), nil
	}
	if name := argString(args, "name"); name != "" && len(cfg.Steps) == 0 {
		loaded, err := svc.Store.Load(name)
		if err != nil {
			return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "check list_pipelines for available names"}), nil
		}
		cfg = loaded
	}

	if cfg.Template != "" {
		expanded, err := svc.Templates.Expand(cfg)
		if err != nil {
			return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "check the template name and its required params"}), nil
		}
		cfg = expanded
	}

	validated, fixes, validationErrs := pipeline.Validate(cfg)
	if len(validationErrs) > 0 {
		return NewJSONResult(map[string]interface{}{"validation_errors": validationErrs, "fixes": fixes}), nil
	}

	run, err := svc.Executor.Execute(ctx, validated, fixes)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}

	if hash, herr := pipeline.ContentHash(validated); herr == nil {
		scope := validated.Scope
		if scope == "" {
			scope = models.ScopeWorkspace
		}
		run.ConfigHash = hash
		_ = svc.Store.RecordRun(scope, hash, run)
	}

	return NewJSONResult(run), nil
}

func handleSavePipeline(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	cfg, err := decodePipelineConfig(args)
	if err != nil || len(cfg.Steps) == 0 {
		return NewToolErrorResult(&ToolError{ErrMessage: "config with at least one step is required"}), nil
	}
	if err := svc.Store.Save(cfg); err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}
	return NewJSONResult(map[string]interface{}{"name": cfg.Name, "scope": cfg.Scope}), nil
}

func handleListPipelines(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	scope := models.PipelineScope(argString(args, "scope"))
	entries, err := svc.Store.List(scope)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}
	return NewJSONResult(entries), nil
}

func handleLoadPipeline(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	name := argString(args, "name")
	if name == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "name is required"}), nil
	}
	cfg, err := svc.Store.Load(name)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "check list_pipelines for available names"}), nil
	}
	return NewJSONResult(cfg), nil
}

func handleDeletePipeline(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	name := argString(args, "name")
	if name == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "name is required"}), nil
	}
	scope := models.PipelineScope(argString(args, "scope"))
	if scope == "" {
		scope = models.ScopeWorkspace
	}
	if err := svc.Store.Delete(name, scope); err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}
	return NewJSONResult(map[string]interface{}{"deleted": name, "scope": scope}), nil
}

func handleGetPipelineHistory(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error) {
	name := argString(args, "name")
	if name == "" {
		return NewToolErrorResult(&ToolError{ErrMessage: "name is required"}), nil
	}
	cfg, err := svc.Store.Load(name)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error(), Suggestion: "check list_pipelines for available names"}), nil
	}
	hash, err := pipeline.ContentHash(cfg)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}
	runs, err := svc.Store.History(hash)
	if err != nil {
		return NewToolErrorResult(&ToolError{ErrMessage: err.Error()}), nil
	}
	return NewJSONResult(runs), nil
}
