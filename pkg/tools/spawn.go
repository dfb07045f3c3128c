package tools

import (
	"context"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// SubagentSpawner is the slice of the subagent manager the spawn tool
// needs.
type SubagentSpawner interface {
	Spawn(task, label string, origin session.Key) string
}

// SpawnTool starts a background subagent for a task. The announce comes
// back into the originating session later.
type SpawnTool struct {
	Manager SubagentSpawner
}

// NewSpawnTool creates a new SpawnTool.
func NewSpawnTool(manager SubagentSpawner) *SpawnTool {
	return &SpawnTool{Manager: manager}
}

func (t *SpawnTool) Name() string {
	return "spawn"
}

func (t *SpawnTool) Description() string {
	return "Spawn a subagent to handle a task in the background. Use this for complex or time-consuming tasks that can run independently. The subagent will complete the task and report back when done."
}

func (t *SpawnTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The task for the subagent to complete",
			},
			"label": map[string]any{
				"type":        "string",
				"description": "Optional short label for the task (for display)",
			},
		},
		"required": []string{"task"},
	}
}

func (t *SpawnTool) Execute(_ context.Context, tc *ToolContext, args map[string]any) (string, error) {
	task := args["task"].(string)
	label, _ := args["label"].(string)
	return t.Manager.Spawn(task, label, tc.SessionKey), nil
}
