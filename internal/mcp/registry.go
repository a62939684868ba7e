package mcp

import (
	"context"
	"fmt"
	"sync"
)

// ToolHandler executes one named tool against parsed arguments.
type ToolHandler func(ctx context.Context, svc *Service, args map[string]interface{}) (CallToolResult, error)

// RegisteredTool pairs a tool's schema with its handler.
type RegisteredTool struct {
	Definition Tool
	Handler    ToolHandler
}

// ToolRegistry holds the full named-tool surface, in registration order
// (so tools/list is stable across calls).
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]RegisteredTool
	order []string
}

// NewToolRegistry returns an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]RegisteredTool)}
}

// Register adds or replaces a tool.
func (r *ToolRegistry) Register(tool RegisteredTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Definition.Name
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// ListTools returns every registered tool's definition, in registration
// order.
func (r *ToolRegistry) ListTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, name := range r.order {
		out = append(out, r.tools[name].Definition)
	}
	return out
}

// Execute runs name against args, using svc as the handler's dependency
// bundle.
func (r *ToolRegistry) Execute(ctx context.Context, svc *Service, name string, args map[string]interface{}) (CallToolResult, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return NewErrorResult(fmt.Errorf("unknown tool: %s", name)), nil
	}
	return tool.Handler(ctx, svc, args)
}
