package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
)

func fileOpError(op, path string, err error) (string, error) {
	switch {
	case errors.Is(err, sandbox.ErrPathEscapes):
		return fmt.Sprintf("Error: Permission denied: %s is outside the sandbox workspace", path), nil
	case os.IsNotExist(err):
		return fmt.Sprintf("Error: File not found: %s", path), nil
	case os.IsPermission(err):
		return fmt.Sprintf("Error: Permission denied: %s", path), nil
	}
	return "", fmt.Errorf("%s %s: %w", op, path, err)
}

// ReadFileTool reads file contents from the session sandbox.
type ReadFileTool struct{}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file at the given path inside the sandbox workspace."
}

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The file path to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	path := args["path"].(string)

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	content, err := backend.ReadFile(ctx, path)
	if err != nil {
		return fileOpError("read", path, err)
	}
	return content, nil
}

// WriteFileTool writes content to a file in the session sandbox.
type WriteFileTool struct{}

func (t *WriteFileTool) Name() string {
	return "write_file"
}

func (t *WriteFileTool) Description() string {
	return "Write content to a file at the given path. Creates parent directories if needed."
}

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The file path to write to",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to write",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	path := args["path"].(string)
	content := args["content"].(string)

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	if err := backend.WriteFile(ctx, path, content); err != nil {
		return fileOpError("write", path, err)
	}
	return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path), nil
}

// EditFileTool edits a file by replacing text.
type EditFileTool struct{}

func (t *EditFileTool) Name() string {
	return "edit_file"
}

func (t *EditFileTool) Description() string {
	return "Edit a file by replacing old_text with new_text. The old_text must exist exactly in the file."
}

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The file path to edit",
			},
			"old_text": map[string]any{
				"type":        "string",
				"description": "The exact text to find and replace",
			},
			"new_text": map[string]any{
				"type":        "string",
				"description": "The text to replace with",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *EditFileTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	path := args["path"].(string)
	oldText := args["old_text"].(string)
	newText := args["new_text"].(string)

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	content, err := backend.ReadFile(ctx, path)
	if err != nil {
		return fileOpError("read", path, err)
	}

	if !strings.Contains(content, oldText) {
		return "Error: old_text not found in file. Make sure it matches exactly.", nil
	}
	count := strings.Count(content, oldText)
	if count > 1 {
		return fmt.Sprintf("Warning: old_text appears %d times. Please provide more context to make it unique.", count), nil
	}

	newContent := strings.Replace(content, oldText, newText, 1)
	if err := backend.WriteFile(ctx, path, newContent); err != nil {
		return fileOpError("write", path, err)
	}
	return fmt.Sprintf("Successfully edited %s", path), nil
}

// AppendFileTool appends content to a file.
type AppendFileTool struct{}

func (t *AppendFileTool) Name() string {
	return "append_file"
}

func (t *AppendFileTool) Description() string {
	return "Append content to the end of a file. Creates the file if it doesn't exist."
}

func (t *AppendFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The file path to append to",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "The content to append",
			},
		},
		"required": []string{"path", "content"},
	}
}

func (t *AppendFileTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	path := args["path"].(string)
	content := args["content"].(string)
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	existing, err := backend.ReadFile(ctx, path)
	if err != nil && !os.IsNotExist(err) {
		if msg, opErr := fileOpError("read", path, err); opErr == nil {
			return msg, nil
		}
	}
	if err := backend.WriteFile(ctx, path, existing+content); err != nil {
		return fileOpError("write", path, err)
	}
	return fmt.Sprintf("Successfully appended to %s", path), nil
}

// ListDirTool lists directory contents.
type ListDirTool struct{}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Description() string {
	return "List the contents of a directory."
}

func (t *ListDirTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "The directory path to list",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, tc *ToolContext, args map[string]any) (string, error) {
	path := args["path"].(string)

	backend, err := tc.Backend()
	if err != nil {
		return "", err
	}
	entries, err := backend.ListDir(ctx, path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("Error: Directory not found: %s", path), nil
		}
		return fileOpError("list", path, err)
	}
	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", path), nil
	}
	return strings.Join(entries, "\n"), nil
}
