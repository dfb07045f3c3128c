package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// denyPatterns are command fragments that are never executed.
var denyPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	"mkfs",
	":(){ :|:& };:",
	"dd if=/dev/zero of=/dev/",
	"> /dev/sda",
	"chmod -R 777 /",
}

// ExecTool runs a shell command inside the session sandbox.
type ExecTool struct {
	Timeout time.Duration
}

// NewExecTool creates the exec tool with the given default timeout.
func NewExecTool(timeout time.Duration) *ExecTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExecTool{Timeout: timeout}
}

func (t *ExecTool) Name() string {
	return "exec"
}

func (t *ExecTool) Description() string {
	return "Execute a shell command in the sandbox workspace and return its output."
}

func (t *ExecTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (default 60)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	command := args["command"].(string)

	lowered := strings.ToLower(command)
	for _, pattern := range denyPatterns {
		if strings.Contains(lowered, pattern) {
			return fmt.Sprintf("Error: Command blocked for safety: contains %q", pattern), nil
		}
	}

	timeout := t.Timeout
	if raw, ok := args["timeout"]; ok {
		switch v := raw.(type) {
		case float64:
			timeout = time.Duration(v) * time.Second
		case int:
			timeout = time.Duration(v) * time.Second
		}
	}

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	output, err := backend.Execute(ctx, command, timeout)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	if output == "" {
		return "(no output)", nil
	}
	return output, nil
}
