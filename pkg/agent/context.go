package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/memory"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/ZaynJarvis/vikingbot/pkg/skills"
	"github.com/ZaynJarvis/vikingbot/pkg/viking"
)

// bootstrapFiles are loaded into the system prompt in this order.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// ContextBuilder assembles the system prompt and message list for one
// LLM call. Built fresh per message, bound to that message's workspace,
// so concurrent sessions never share loaded skills or memory state.
type ContextBuilder struct {
	Workspace string
	Memory    *memory.Store
	Skills    *skills.Loader
	sandbox   *sandbox.Manager
}

// NewContextBuilder creates a context builder rooted at workspace.
// sandboxMgr and client may be nil.
func NewContextBuilder(workspace string, sandboxMgr *sandbox.Manager, client viking.Client) *ContextBuilder {
	return &ContextBuilder{
		Workspace: workspace,
		Memory:    memory.NewStore(workspace, client),
		Skills:    skills.NewLoader(workspace),
		sandbox:   sandboxMgr,
	}
}

// BuildSystemPrompt builds the full system prompt: identity, sandbox
// info, remote memory, bootstrap files, long-term memory, and skills.
func (c *ContextBuilder) BuildSystemPrompt(ctx context.Context, key session.Key, currentMessage string) string {
	var parts []string

	parts = append(parts, c.getIdentity(key))

	if c.sandbox != nil {
		if cwd, err := c.sandbox.GetSandboxCWD(key); err == nil {
			parts = append(parts, fmt.Sprintf("## Sandbox Environment\n\nYou are running in a sandboxed environment. All file operations and command execution are restricted to the sandbox directory.\nThe sandbox root directory is `%s` (use relative paths for all operations).", cwd))
		}
	}

	if currentMessage != "" {
		if vm := c.Memory.GetVikingMemory(ctx, currentMessage); vm != "" {
			parts = append(parts, "## Related Memory\n\n"+vm)
		}
	}

	if bootstrap := c.loadBootstrapFiles(); bootstrap != "" {
		parts = append(parts, bootstrap)
	}

	if mem := c.Memory.GetMemoryContext(); mem != "" {
		parts = append(parts, "# Memory\n\n"+mem)
	}

	if always := c.Skills.GetAlwaysSkills(); len(always) > 0 {
		if content := c.Skills.LoadSkillsForContext(always); content != "" {
			parts = append(parts, "# Active Skills\n\n"+content)
		}
	}

	if summary := c.Skills.BuildSkillsSummary(); summary != "" {
		parts = append(parts, fmt.Sprintf(`# Skills

The following skills extend your capabilities. To use a skill, read its SKILL.md file using the read_file tool.
Skills marked unavailable need dependencies installed first - you can try installing them with apt/brew.

%s`, summary))
	}

	return strings.Join(parts, "\n\n---\n\n")
}

func (c *ContextBuilder) getIdentity(key session.Key) string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	zone, _ := time.Now().Zone()
	if zone == "" {
		zone = "UTC"
	}
	sysInfo := fmt.Sprintf("%s %s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())

	workspaceDisplay := c.Workspace
	if c.sandbox != nil {
		if cwd, err := c.sandbox.GetSandboxCWD(key); err == nil {
			workspaceDisplay = cwd
		}
	} else if abs, err := filepath.Abs(c.Workspace); err == nil {
		workspaceDisplay = abs
	}

	return fmt.Sprintf(`# vikingbot 🐈

You are VikingBot, an AI assistant built on the OpenViking context database.
When acquiring information, data, and knowledge, you **prioritize using openviking tools to read and search OpenViking (a context database) above all other sources**.
You have access to tools that allow you to:
- Read, search, and grep OpenViking files
- Read, write, and edit local files
- Execute shell commands
- Search the web and fetch web pages
- Send messages to users on chat channels
- Spawn subagents for complex background tasks

## Current Time
%s (%s)

## Runtime
%s

## Workspace
You have two workspaces:
1. Local workspace: %s
2. OpenViking workspace: managed via OpenViking tools
- Long-term memory: use the user_memory_search tool to search memory
- History log: use the user_memory_search tool, or grep memory/HISTORY.md
- Custom skills: %s/skills/{skill-name}/SKILL.md

IMPORTANT: When responding to direct questions or conversations, reply directly with your text response.
Please keep your reply in the same language as the user's message.
Only use the 'message' tool when you need to send a message to a specific chat channel.
For normal conversation, just respond with text - do not call the message tool.
Always be helpful, accurate, and concise. When using tools, think step by step: what you know, what you need, and why you chose this tool.

## Memory
- Remember important facts: use the openviking_memory_commit tool to commit
- Recall past events: prioritize the user_memory_search tool, or grep %s/memory/HISTORY.md

## Conversation Handling
In group chats, user messages may be prefixed with '[Name]:' (e.g., '[Alice]: Hello').
- This indicates the sender's name.
- When replying, address the user by this name to be more personal.
- If you need to remember facts about this specific user, associate them with this name in your memory.`,
		now, zone, sysInfo, workspaceDisplay, workspaceDisplay, workspaceDisplay)
}

func (c *ContextBuilder) loadBootstrapFiles() string {
	var parts []string
	for _, name := range bootstrapFiles {
		data, err := os.ReadFile(filepath.Join(c.Workspace, name))
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, string(data)))
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages builds the complete message list for an LLM call:
// system prompt, prior history, then the current user turn.
func (c *ContextBuilder) BuildMessages(ctx context.Context, history []map[string]any, currentMessage string, media []string, key session.Key) []map[string]any {
	systemPrompt := c.BuildSystemPrompt(ctx, key, currentMessage)
	if key.ChannelID != "" && key.ChatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", key.Type, key.ChatID)
	}

	messages := make([]map[string]any, 0, len(history)+2)
	messages = append(messages, map[string]any{
		"role":    "system",
		"content": systemPrompt,
	})
	messages = append(messages, history...)
	messages = append(messages, map[string]any{
		"role":    "user",
		"content": buildUserContent(currentMessage, media),
	})
	return messages
}

// buildUserContent returns plain text, or the multimodal content-part
// array when local image attachments exist.
func buildUserContent(text string, media []string) any {
	if len(media) == 0 {
		return text
	}

	var content []map[string]any
	for _, path := range media {
		mimeType := mime.TypeByExtension(filepath.Ext(path))
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
			},
		})
	}
	if len(content) == 0 {
		return text
	}

	content = append(content, map[string]any{
		"type": "text",
		"text": text,
	})
	return content
}

// AddAssistantMessage appends an assistant turn, echoing back
// reasoning_content when present since some models reject histories
// missing it.
func AddAssistantMessage(messages []map[string]any, content, reasoningContent string, toolCalls []map[string]any) []map[string]any {
	msg := map[string]any{
		"role":    "assistant",
		"content": content,
	}
	if reasoningContent != "" {
		msg["reasoning_content"] = reasoningContent
	}
	if len(toolCalls) > 0 {
		msg["tool_calls"] = toolCalls
	}
	return append(messages, msg)
}

// AddToolResult appends a tool-role turn for one completed tool call.
func AddToolResult(messages []map[string]any, toolCallID, toolName, result string) []map[string]any {
	return append(messages, map[string]any{
		"role":         "tool",
		"tool_call_id": toolCallID,
		"name":         toolName,
		"content":      result,
	})
}
