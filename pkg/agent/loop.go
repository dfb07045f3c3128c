package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/cron"
	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/providers"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/ZaynJarvis/vikingbot/pkg/tools"
	"github.com/ZaynJarvis/vikingbot/pkg/utils"
	"github.com/ZaynJarvis/vikingbot/pkg/viking"
	"github.com/sirupsen/logrus"
)

// reflectionPrompt is appended as a user turn after each batch of tool
// results to keep the chain of thought going.
const reflectionPrompt = "Reflect on the results and decide next steps."

const (
	newSessionReply = "🐈 New session started. Memory consolidated."
	helpReply       = "🐈 vikingbot commands:\n/new — Start a new conversation\n/help — Show available commands"
)

// Loop is the core processing engine. It is the sole consumer of the
// inbound bus channel and processes one message at a time:
// build context, call the LLM, execute tool calls, repeat until the
// model answers with plain content.
type Loop struct {
	bus       *bus.MessageBus
	provider  providers.LLMProvider
	config    *config.Config
	workspace string
	model     string

	maxIterations int
	memoryWindow  int

	sessions  *session.Manager
	sandbox   *sandbox.Manager
	hooks     *hooks.Manager
	viking    viking.Client
	tools     *tools.Registry
	subagents *SubagentManager

	stopChan chan struct{}
}

// Options bundles the collaborators a Loop needs. Bus, Provider,
// Config, Sessions, Sandbox, and Hooks are required; the rest may be
// nil.
type Options struct {
	Bus      *bus.MessageBus
	Provider providers.LLMProvider
	Config   *config.Config
	Sessions *session.Manager
	Sandbox  *sandbox.Manager
	Hooks    *hooks.Manager
	Cron     *cron.Service
	Viking   viking.Client
}

// NewLoop wires an agent loop and its tool registry and subagent
// manager from opts.
func NewLoop(opts Options) *Loop {
	defaults := opts.Config.Agents.Defaults
	model := defaults.Model
	if model == "" {
		model = opts.Provider.GetDefaultModel()
	}

	l := &Loop{
		bus:           opts.Bus,
		provider:      opts.Provider,
		config:        opts.Config,
		workspace:     opts.Config.WorkspacePath(),
		model:         model,
		maxIterations: defaults.MaxToolIterations,
		memoryWindow:  defaults.MemoryWindow,
		sessions:      opts.Sessions,
		sandbox:       opts.Sandbox,
		hooks:         opts.Hooks,
		viking:        opts.Viking,
		tools:         tools.NewRegistry(opts.Hooks),
		stopChan:      make(chan struct{}),
	}
	if l.maxIterations <= 0 {
		l.maxIterations = 50
	}
	if l.memoryWindow <= 0 {
		l.memoryWindow = 50
	}

	l.subagents = NewSubagentManager(opts.Provider, opts.Config, opts.Bus, opts.Sandbox, opts.Hooks, opts.Viking, model)

	tools.RegisterDefaultTools(l.tools, tools.Deps{
		Config:    opts.Config,
		Bus:       opts.Bus,
		Cron:      opts.Cron,
		Subagents: l.subagents,
		Viking:    opts.Viking,
	})
	return l
}

// Tools exposes the loop's tool registry.
func (l *Loop) Tools() *tools.Registry {
	return l.tools
}

// Run consumes inbound messages until ctx is cancelled or Stop is
// called. Messages are processed serially in arrival order.
func (l *Loop) Run(ctx context.Context) {
	logrus.Info("Agent loop started")
	for {
		select {
		case msg := <-l.bus.ConsumeInbound():
			l.handle(ctx, msg)
		case <-l.stopChan:
			logrus.Info("Agent loop stopped")
			return
		case <-ctx.Done():
			logrus.Info("Agent loop stopped")
			return
		}
	}
}

// Stop shuts down the loop and waits for running subagents to finish
// being abandoned.
func (l *Loop) Stop() {
	close(l.stopChan)
}

// handle processes one message and publishes the response, converting
// any processing error into an apology outbound.
func (l *Loop) handle(ctx context.Context, msg bus.InboundMessage) {
	response, err := l.dispatch(ctx, msg)
	if err != nil {
		logrus.Errorf("Error processing message: %v", err)
		l.bus.PublishOutbound(bus.OutboundMessage{
			SessionKey: msg.SessionKey,
			Content:    fmt.Sprintf("Sorry, I encountered an error: %v", err),
		})
		return
	}
	if response != nil {
		l.bus.PublishOutbound(*response)
	}
}

func (l *Loop) dispatch(ctx context.Context, msg bus.InboundMessage) (resp *bus.OutboundMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if msg.Kind == bus.KindSystem {
		return l.processSystem(ctx, msg)
	}
	return l.process(ctx, msg)
}

// process handles one user message end to end.
func (l *Loop) process(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	preview := msg.Content
	if len(preview) > 80 {
		preview = preview[:80] + "..."
	}
	logrus.Infof("Processing message from %s:%s: %s", msg.SessionKey, msg.SenderID, preview)

	sess := l.sessions.GetOrCreate(msg.SessionKey)

	switch strings.ToLower(strings.TrimSpace(msg.Content)) {
	case "/new":
		l.consolidate(ctx, sess, true)
		sess.Clear()
		if err := l.sessions.Save(sess); err != nil {
			return nil, err
		}
		return &bus.OutboundMessage{SessionKey: msg.SessionKey, Content: newSessionReply}, nil
	case "/help":
		return &bus.OutboundMessage{SessionKey: msg.SessionKey, Content: helpReply}, nil
	}

	if len(sess.Messages) > l.memoryWindow {
		l.consolidate(ctx, sess, false)
	}

	builder := l.contextBuilder(msg.SessionKey)
	messages := builder.BuildMessages(ctx, sess.GetHistory(0), msg.Content, msg.Media, msg.SessionKey)

	finalContent, toolsUsed, err := l.runIterations(ctx, messages, msg.SessionKey, l.maxIterations)
	if err != nil {
		return nil, err
	}

	respPreview := finalContent
	if len(respPreview) > 120 {
		respPreview = respPreview[:120] + "..."
	}
	logrus.Infof("Response to %s: %s", msg.SessionKey, respPreview)

	sess.AddMessage(session.Message{Role: "user", Content: msg.Content, Sender: msg.SenderID})
	sess.AddMessage(session.Message{Role: "assistant", Content: finalContent, ToolsUsed: toolsUsed})
	if err := l.sessions.Save(sess); err != nil {
		return nil, err
	}

	return &bus.OutboundMessage{
		SessionKey: msg.SessionKey,
		Content:    finalContent,
		Metadata:   msg.Metadata,
	}, nil
}

// runIterations drives the LLM-tool cycle until the model answers with
// plain content or the iteration budget runs out. Provider and sync
// hook errors propagate; tool failures do not, they return to the
// model as result strings.
func (l *Loop) runIterations(ctx context.Context, messages []map[string]any, key session.Key, maxIterations int) (string, []session.ToolUsage, error) {
	var toolsUsed []session.ToolUsage

	for iteration := 1; iteration <= maxIterations; iteration++ {
		toolDefs := l.tools.GetDefinitions()
		response, err := l.provider.Chat(ctx, messages, toolDefs, l.model)
		if err != nil {
			return "", nil, fmt.Errorf("LLM call failed: %w", err)
		}

		if !response.HasToolCalls() {
			if response.Content == "" {
				return "I've completed processing but have no response to give.", toolsUsed, nil
			}
			return response.Content, toolsUsed, nil
		}

		descriptors := make([]map[string]any, 0, len(response.ToolCalls))
		for _, tc := range response.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			descriptors = append(descriptors, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(args),
				},
			})
		}
		messages = AddAssistantMessage(messages, response.Content, response.ReasoningContent, descriptors)

		for _, tc := range response.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			argsPreview := string(argsJSON)
			if len(argsPreview) > 200 {
				argsPreview = argsPreview[:200]
			}
			logrus.Infof("[TOOL_CALL]: %s(%s)", tc.Name, argsPreview)

			start := time.Now()
			result, err := l.tools.Execute(ctx, tc.Name, tc.Arguments, key, l.sandbox)
			if err != nil {
				return "", nil, err
			}
			duration := time.Since(start)

			resultPreview := result
			if len(resultPreview) > 600 {
				resultPreview = resultPreview[:600]
			}
			logrus.Infof("[RESULT]: %s", resultPreview)

			messages = AddToolResult(messages, tc.ID, tc.Name, result)
			toolsUsed = append(toolsUsed, session.ToolUsage{
				ToolName:     tc.Name,
				Args:         tc.Arguments,
				Result:       result,
				DurationMs:   duration.Milliseconds(),
				Success:      result != "" && !strings.HasPrefix(result, "Error"),
				InputTokens:  utils.EstimateTokens(string(argsJSON)),
				OutputTokens: utils.EstimateTokens(result),
			})
		}

		messages = append(messages, map[string]any{"role": "user", "content": reflectionPrompt})
	}

	return fmt.Sprintf("Reached %d iterations without completion.", maxIterations), toolsUsed, nil
}

// contextBuilder returns a fresh builder bound to the message's
// sandbox workspace.
func (l *Loop) contextBuilder(key session.Key) *ContextBuilder {
	workspace := l.workspace
	if l.sandbox != nil {
		workspace = l.sandbox.GetWorkspacePath(key)
	}
	return NewContextBuilder(workspace, l.sandbox, l.viking)
}

// ProcessDirect processes a message synchronously, bypassing the bus.
// Used by the CLI one-shot mode and the heartbeat service.
func (l *Loop) ProcessDirect(ctx context.Context, content string, key session.Key) (string, error) {
	msg := bus.InboundMessage{
		Kind:       bus.KindUser,
		SenderID:   "user",
		SessionKey: key,
		Content:    content,
		Timestamp:  time.Now(),
	}
	response, err := l.dispatch(ctx, msg)
	if err != nil {
		return "", err
	}
	if response == nil {
		return "", nil
	}
	return response.Content, nil
}
