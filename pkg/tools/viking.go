package tools

import (
	"context"
	"fmt"

	vikingclient "github.com/ZaynJarvis/vikingbot/pkg/viking"
)

// The viking_* tools expose the external knowledge base to the agent.
// Each one is a thin call into the client; unavailability comes back as
// an error string the model can act on.

func vikingResult(result string, err error) (string, error) {
	if err != nil {
		return fmt.Sprintf("Error: knowledge base unavailable: %v", err), nil
	}
	if result == "" {
		return "(no results)", nil
	}
	return result, nil
}

// VikingReadTool reads a knowledge-base document.
type VikingReadTool struct {
	Client vikingclient.Client
}

func (t *VikingReadTool) Name() string { return "viking_read" }

func (t *VikingReadTool) Description() string {
	return "Read a document from the knowledge base by its URI."
}

func (t *VikingReadTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"uri": map[string]any{
				"type":        "string",
				"description": "Knowledge-base URI to read, e.g. viking://resources/notes.md",
			},
		},
		"required": []string{"uri"},
	}
}

func (t *VikingReadTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	return vikingResult(t.Client.Read(ctx, args["uri"].(string)))
}

// VikingListTool lists knowledge-base entries under a URI.
type VikingListTool struct {
	Client vikingclient.Client
}

func (t *VikingListTool) Name() string { return "viking_list" }

func (t *VikingListTool) Description() string {
	return "List knowledge-base entries under a URI prefix."
}

func (t *VikingListTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"uri": map[string]any{
				"type":        "string",
				"description": "URI prefix to list, e.g. viking://resources/",
			},
		},
		"required": []string{"uri"},
	}
}

func (t *VikingListTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	return vikingResult(t.Client.List(ctx, args["uri"].(string)))
}

// VikingSearchTool does semantic search over the knowledge base.
type VikingSearchTool struct {
	Client vikingclient.Client
}

func (t *VikingSearchTool) Name() string { return "viking_search" }

func (t *VikingSearchTool) Description() string {
	return "Semantic search over the knowledge base."
}

func (t *VikingSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural-language search query",
			},
			"scope": map[string]any{
				"type":        "string",
				"description": "Optional URI prefix to search within",
			},
		},
		"required": []string{"query"},
	}
}

func (t *VikingSearchTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	scope, _ := args["scope"].(string)
	return vikingResult(t.Client.Search(ctx, args["query"].(string), scope))
}

// VikingGrepTool does exact pattern search over the knowledge base.
type VikingGrepTool struct {
	Client vikingclient.Client
}

func (t *VikingGrepTool) Name() string { return "viking_grep" }

func (t *VikingGrepTool) Description() string {
	return "Exact pattern (regex) search over knowledge-base content."
}

func (t *VikingGrepTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Regex pattern to search for",
			},
			"scope": map[string]any{
				"type":        "string",
				"description": "Optional URI prefix to search within",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *VikingGrepTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	scope, _ := args["scope"].(string)
	return vikingResult(t.Client.Grep(ctx, args["pattern"].(string), scope))
}

// VikingGlobTool finds knowledge-base entries by path pattern.
type VikingGlobTool struct {
	Client vikingclient.Client
}

func (t *VikingGlobTool) Name() string { return "viking_glob" }

func (t *VikingGlobTool) Description() string {
	return "Find knowledge-base entries whose path matches a glob pattern."
}

func (t *VikingGlobTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{
				"type":        "string",
				"description": "Glob pattern, e.g. **/*.md",
			},
			"scope": map[string]any{
				"type":        "string",
				"description": "Optional URI prefix to search within",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *VikingGlobTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	scope, _ := args["scope"].(string)
	return vikingResult(t.Client.Glob(ctx, args["pattern"].(string), scope))
}

// VikingSearchUserMemoryTool searches remembered facts about the user.
type VikingSearchUserMemoryTool struct {
	Client vikingclient.Client
}

func (t *VikingSearchUserMemoryTool) Name() string { return "viking_search_user_memory" }

func (t *VikingSearchUserMemoryTool) Description() string {
	return "Search long-term user memory in the knowledge base."
}

func (t *VikingSearchUserMemoryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for in user memory",
			},
		},
		"required": []string{"query"},
	}
}

func (t *VikingSearchUserMemoryTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	return vikingResult(t.Client.SearchUserMemory(ctx, args["query"].(string)))
}

// VikingMemoryCommitTool commits content into the knowledge base.
type VikingMemoryCommitTool struct {
	Client vikingclient.Client
}

func (t *VikingMemoryCommitTool) Name() string { return "viking_memory_commit" }

func (t *VikingMemoryCommitTool) Description() string {
	return "Commit important information to the knowledge base for long-term retention."
}

func (t *VikingMemoryCommitTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The content to remember",
			},
		},
		"required": []string{"content"},
	}
}

func (t *VikingMemoryCommitTool) Execute(ctx context.Context, _ *ToolContext, args map[string]any) (string, error) {
	if err := t.Client.CommitConversation(ctx, args["content"].(string)); err != nil {
		return fmt.Sprintf("Error: knowledge base unavailable: %v", err), nil
	}
	return "Committed to knowledge base", nil
}
