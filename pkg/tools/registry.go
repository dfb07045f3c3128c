package tools

import (
	"context"
	"fmt"

	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// Registry maps tool names to implementations and dispatches calls.
// Tool-level failures become string results; only a sync hook error
// escapes Execute.
type Registry struct {
	tools map[string]Tool
	hooks *hooks.Manager
}

// NewRegistry creates a tool registry. hookManager may be nil.
func NewRegistry(hookManager *hooks.Manager) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		hooks: hookManager,
	}
}

// Register adds a tool. A duplicate name replaces the previous tool.
func (r *Registry) Register(tool Tool) {
	r.tools[tool.Name()] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// GetDefinitions returns the current schema list for the LLM call.
func (r *Registry) GetDefinitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, GenerateSchema(tool))
	}
	return defs
}

// Execute runs a tool by name. Unknown names, invalid parameters, and
// tool failures all come back as error strings so the LLM conversation
// always gets a tool-role response. The error return is reserved for a
// sync post-call hook failing: that propagates to the caller instead of
// being folded into the result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, key session.Key, sandboxMgr *sandbox.Manager) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return fmt.Sprintf("Error: Unknown tool: %s", name), nil
	}

	if err := validateParams(tool.Parameters(), params); err != nil {
		return fmt.Sprintf("Error: Invalid parameters for %s: %v", name, err), nil
	}

	toolCtx := &ToolContext{
		SessionKey: key,
		Sandbox:    sandboxMgr,
		SandboxKey: sandboxMgr.ToSandboxKey(key),
	}

	result, err := r.run(ctx, tool, toolCtx, params)

	payload := &hooks.ToolCallPayload{
		ToolName: name,
		Params:   params,
		Result:   result,
		Err:      err,
	}
	if r.hooks != nil {
		rewritten, hookErr := r.hooks.Run(ctx, hooks.EventToolPostCall, payload)
		if hookErr != nil {
			return "", fmt.Errorf("tool.post_call hooks for %s: %w", name, hookErr)
		}
		if p, ok := rewritten.(*hooks.ToolCallPayload); ok {
			payload = p
		}
	}

	if payload.Err != nil {
		return fmt.Sprintf("Error executing %s: %v", name, payload.Err), nil
	}
	return payload.Result, nil
}

// run invokes the tool, converting a panic into an error value.
func (r *Registry) run(ctx context.Context, tool Tool, tc *ToolContext, params map[string]any) (result string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return tool.Execute(ctx, tc, params)
}

// validateParams checks required fields and primitive JSON types
// against the tool's declared schema.
func validateParams(schema map[string]any, params map[string]any) error {
	required, _ := schema["required"].([]string)
	if required == nil {
		if raw, ok := schema["required"].([]any); ok {
			for _, r := range raw {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
	}
	for _, name := range required {
		if _, ok := params[name]; !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		spec, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		declared, _ := spec["type"].(string)
		if declared == "" || value == nil {
			continue
		}
		if !matchesType(declared, value) {
			return fmt.Errorf("parameter %q must be %s", name, declared)
		}
	}
	return nil
}

func matchesType(declared string, value any) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	}
	return true
}
