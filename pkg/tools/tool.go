package tools

import (
	"context"

	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// ToolContext is the per-invocation bundle handed to a tool: the
// session it serves, the sandbox manager, and the derived sandbox key.
// Constructed fresh for every call, never retained.
type ToolContext struct {
	SessionKey session.Key
	Sandbox    *sandbox.Manager
	SandboxKey string
}

// Backend resolves the sandbox backend for the current session.
func (tc *ToolContext) Backend() (sandbox.Backend, error) {
	return tc.Sandbox.GetSandbox(tc.SessionKey)
}

// Tool represents an agent capability the LLM can invoke.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error)
}

// GenerateSchema converts a tool to the OpenAI function schema format.
func GenerateSchema(tool Tool) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        tool.Name(),
			"description": tool.Description(),
			"parameters":  tool.Parameters(),
		},
	}
}
