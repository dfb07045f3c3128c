package providers

import (
	"context"
)

// ToolCallRequest represents a tool call requested by the LLM.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// LLMResponse represents a response from an LLM provider.
type LLMResponse struct {
	Content          string            `json:"content,omitempty"`
	ReasoningContent string            `json:"reasoning_content,omitempty"`
	ToolCalls        []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason     string            `json:"finish_reason"`
	Usage            map[string]int    `json:"usage"`
}

// HasToolCalls checks if the response contains tool calls.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// LLMProvider is the interface for LLM providers. Implementations must
// be safe for concurrent calls from the main loop and subagents.
type LLMProvider interface {
	Chat(ctx context.Context, messages []map[string]any, tools []map[string]any, model string) (*LLMResponse, error)
	GetDefaultModel() string
}
