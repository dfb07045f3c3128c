package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/providers"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/ZaynJarvis/vikingbot/pkg/tools"
	"github.com/ZaynJarvis/vikingbot/pkg/viking"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// SubagentManager runs background task agents. Subagents share the
// main provider but get a focused system prompt, isolated context, and
// a reduced tool set; results come back to the originating session as
// a system message on the bus.
type SubagentManager struct {
	provider providers.LLMProvider
	config   *config.Config
	bus      *bus.MessageBus
	sandbox  *sandbox.Manager
	viking   viking.Client
	model    string

	maxIterations int
	sem           *semaphore.Weighted
	registry      *tools.Registry

	mu      sync.Mutex
	running map[string]string
}

// NewSubagentManager creates a subagent manager wired to the shared
// collaborators.
func NewSubagentManager(provider providers.LLMProvider, cfg *config.Config, messageBus *bus.MessageBus, sandboxMgr *sandbox.Manager, hookMgr *hooks.Manager, client viking.Client, model string) *SubagentManager {
	maxConcurrent := cfg.Agents.Subagents.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	maxIterations := cfg.Agents.Subagents.MaxToolIterations
	if maxIterations <= 0 {
		maxIterations = 15
	}

	registry := tools.NewRegistry(hookMgr)
	tools.RegisterSubagentTools(registry, tools.Deps{
		Config: cfg,
		Viking: client,
	})

	return &SubagentManager{
		provider:      provider,
		config:        cfg,
		bus:           messageBus,
		sandbox:       sandboxMgr,
		viking:        client,
		model:         model,
		maxIterations: maxIterations,
		sem:           semaphore.NewWeighted(int64(maxConcurrent)),
		registry:      registry,
		running:       make(map[string]string),
	}
}

// Spawn starts a subagent for task in the background and returns an
// acknowledgement string immediately. The announce arrives later on
// the bus addressed to origin.
func (m *SubagentManager) Spawn(task, label string, origin session.Key) string {
	taskID := uuid.New().String()[:8]
	displayLabel := label
	if displayLabel == "" {
		displayLabel = task
		if len(displayLabel) > 30 {
			displayLabel = displayLabel[:30] + "..."
		}
	}

	m.mu.Lock()
	m.running[taskID] = displayLabel
	m.mu.Unlock()

	go m.run(taskID, task, displayLabel, origin)

	logrus.Infof("Spawned subagent [%s]: %s", taskID, displayLabel)
	return fmt.Sprintf("Subagent [%s] started (id: %s). I'll notify you when it completes.", displayLabel, taskID)
}

// RunningCount returns the number of currently running subagents.
func (m *SubagentManager) RunningCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.running)
}

func (m *SubagentManager) run(taskID, task, label string, origin session.Key) {
	defer func() {
		m.mu.Lock()
		delete(m.running, taskID)
		m.mu.Unlock()
	}()

	ctx := context.Background()
	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.announce(taskID, label, task, fmt.Sprintf("Error: %v", err), origin, false)
		return
	}
	defer m.sem.Release(1)

	logrus.Infof("Subagent [%s] starting task: %s", taskID, label)

	result, err := m.execute(ctx, taskID, task, origin)
	if err != nil {
		logrus.Errorf("Subagent [%s] failed: %v", taskID, err)
		m.announce(taskID, label, task, fmt.Sprintf("Error: %v", err), origin, false)
		return
	}

	logrus.Infof("Subagent [%s] completed successfully", taskID)
	m.announce(taskID, label, task, result, origin, true)
}

// execute drives the subagent's own LLM-tool cycle.
func (m *SubagentManager) execute(ctx context.Context, taskID, task string, origin session.Key) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	messages := []map[string]any{
		{"role": "system", "content": m.buildPrompt(origin)},
		{"role": "user", "content": task},
	}

	for iteration := 1; iteration <= m.maxIterations; iteration++ {
		response, err := m.provider.Chat(ctx, messages, m.registry.GetDefinitions(), m.model)
		if err != nil {
			return "", err
		}

		if !response.HasToolCalls() {
			if response.Content == "" {
				return "Task completed but no final response was generated.", nil
			}
			return response.Content, nil
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
			logrus.Debugf("Subagent [%s] executing: %s with arguments: %s", taskID, tc.Name, argsJSON)
			toolResult, err := m.registry.Execute(ctx, tc.Name, tc.Arguments, origin, m.sandbox)
			if err != nil {
				return "", err
			}
			messages = AddToolResult(messages, tc.ID, tc.Name, toolResult)
		}

		messages = append(messages, map[string]any{"role": "user", "content": reflectionPrompt})
	}

	return "Task completed but no final response was generated.", nil
}

// announce publishes the result back to the originating session as a
// system message; the main loop summarizes it for the user.
func (m *SubagentManager) announce(taskID, label, task, result string, origin session.Key, ok bool) {
	statusText := "completed successfully"
	if !ok {
		statusText = "failed"
	}

	content := fmt.Sprintf(`[Subagent '%s' %s]

Task: %s

Result:
%s

Summarize this naturally for the user. Keep it brief (1-2 sentences). Do not mention technical details like "subagent" or task IDs.`,
		label, statusText, task, result)

	m.bus.PublishInbound(bus.InboundMessage{
		Kind:       bus.KindSystem,
		SenderID:   "subagent",
		SessionKey: origin,
		Content:    content,
		Timestamp:  time.Now(),
	})
	logrus.Debugf("Subagent [%s] announced result to %s", taskID, origin)
}

func (m *SubagentManager) buildPrompt(origin session.Key) string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	zone, _ := time.Now().Zone()
	if zone == "" {
		zone = "UTC"
	}

	workspace := m.config.WorkspacePath()
	if m.sandbox != nil {
		workspace = m.sandbox.GetWorkspacePath(origin)
	}

	return fmt.Sprintf(`# Subagent

## Current Time
%s (%s)

You are a subagent spawned by the main agent to complete a specific task.

## Rules
1. Stay focused - complete only the assigned task, nothing else
2. Your final response will be reported back to the main agent
3. Do not initiate conversations or take on side tasks
4. Be concise but informative in your findings

## What You Can Do
- Read and write files in the workspace
- Execute shell commands
- Search the web and fetch web pages
- Complete the task thoroughly

## What You Cannot Do
- Send messages directly to users (no message tool available)
- Spawn other subagents
- Access the main agent's conversation history

## Workspace
Your workspace is at: %s
Skills are available at: %s/skills/ (read SKILL.md files as needed)

When you have completed the task, provide a clear summary of your findings or actions.`, now, zone, workspace, workspace)
}
