package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/providers"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatStep struct {
	resp *providers.LLMResponse
	err  error
}

// stubProvider replays scripted responses and records every request.
type stubProvider struct {
	mu    sync.Mutex
	steps []chatStep
	calls [][]map[string]any
}

func (s *stubProvider) Chat(_ context.Context, messages []map[string]any, _ []map[string]any, _ string) (*providers.LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]map[string]any, len(messages))
	copy(copied, messages)
	s.calls = append(s.calls, copied)

	if len(s.steps) == 0 {
		return nil, errors.New("stub provider: no scripted response left")
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.resp, step.err
}

func (s *stubProvider) GetDefaultModel() string { return "stub-model" }

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func textResponse(content string) chatStep {
	return chatStep{resp: &providers.LLMResponse{Content: content, FinishReason: "stop"}}
}

func toolCallResponse(name string, args map[string]any) chatStep {
	return chatStep{resp: &providers.LLMResponse{
		ToolCalls: []providers.ToolCallRequest{
			{ID: "call-1", Name: name, Arguments: args},
		},
		FinishReason: "tool_calls",
	}}
}

type loopFixture struct {
	loop      *Loop
	provider  *stubProvider
	bus       *bus.MessageBus
	sessions  *session.Manager
	workspace string
}

func newLoopFixture(t *testing.T, steps ...chatStep) *loopFixture {
	t.Helper()
	workspace := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = workspace
	cfg.Agents.Defaults.MaxToolIterations = 10
	cfg.Agents.Defaults.MemoryWindow = 50
	cfg.Sandbox = config.SandboxConfig{Enabled: true, Mode: "session", Backend: "direct"}

	provider := &stubProvider{steps: steps}
	sandboxMgr := sandbox.NewManager(cfg.Sandbox, workspace)
	sessions := session.NewManager(workspace, nil)
	messageBus := bus.NewMessageBus()

	loop := NewLoop(Options{
		Bus:      messageBus,
		Provider: provider,
		Config:   cfg,
		Sessions: sessions,
		Sandbox:  sandboxMgr,
		Hooks:    hooks.NewManager(),
	})
	return &loopFixture{
		loop:      loop,
		provider:  provider,
		bus:       messageBus,
		sessions:  sessions,
		workspace: workspace,
	}
}

func TestProcessHello(t *testing.T) {
	f := newLoopFixture(t, textResponse("Hello! How can I help?"))
	key := session.NewKey("telegram", "default", "1")

	response, err := f.loop.ProcessDirect(context.Background(), "hello", key)
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", response)

	sess := f.sessions.GetOrCreate(key)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "user", sess.Messages[0].Role)
	assert.Equal(t, "hello", sess.Messages[0].Content)
	assert.Equal(t, "assistant", sess.Messages[1].Role)
}

func TestToolErrorContinuesConversation(t *testing.T) {
	f := newLoopFixture(t,
		toolCallResponse("read_file", map[string]any{"path": "missing.txt"}),
		textResponse("That file does not exist."),
	)
	key := session.NewKey("telegram", "default", "2")

	response, err := f.loop.ProcessDirect(context.Background(), "read missing.txt", key)
	require.NoError(t, err)
	assert.Equal(t, "That file does not exist.", response)
	require.Equal(t, 2, f.provider.callCount())

	// The second request must carry the tool error as a tool turn and
	// the reflection nudge as the final user turn
	second := f.provider.calls[1]
	var toolTurn map[string]any
	for _, m := range second {
		if m["role"] == "tool" {
			toolTurn = m
		}
	}
	require.NotNil(t, toolTurn)
	assert.Equal(t, "Error: File not found: missing.txt", toolTurn["content"])
	last := second[len(second)-1]
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, reflectionPrompt, last["content"])

	sess := f.sessions.GetOrCreate(key)
	require.Len(t, sess.Messages, 2)
	usage := sess.Messages[1].ToolsUsed
	require.Len(t, usage, 1)
	assert.Equal(t, "read_file", usage[0].ToolName)
	assert.False(t, usage[0].Success)
}

func TestIterationBudget(t *testing.T) {
	var steps []chatStep
	for i := 0; i < 20; i++ {
		steps = append(steps, toolCallResponse("list_dir", map[string]any{"path": "."}))
	}
	f := newLoopFixture(t, steps...)

	response, err := f.loop.ProcessDirect(context.Background(), "loop forever", session.CLIKey())
	require.NoError(t, err)
	assert.Equal(t, "Reached 10 iterations without completion.", response)
	assert.Equal(t, 10, f.provider.callCount())
}

func TestEmptyResponseFallback(t *testing.T) {
	f := newLoopFixture(t, textResponse(""))

	response, err := f.loop.ProcessDirect(context.Background(), "say nothing", session.CLIKey())
	require.NoError(t, err)
	assert.Equal(t, "I've completed processing but have no response to give.", response)
}

func TestProviderErrorLeavesSessionUntouched(t *testing.T) {
	f := newLoopFixture(t, chatStep{err: errors.New("rate limited")})
	key := session.NewKey("telegram", "default", "3")

	_, err := f.loop.ProcessDirect(context.Background(), "hello", key)
	require.Error(t, err)

	sess := f.sessions.GetOrCreate(key)
	assert.Empty(t, sess.Messages)
}

func TestHelpCommand(t *testing.T) {
	f := newLoopFixture(t)

	response, err := f.loop.ProcessDirect(context.Background(), "  /HELP  ", session.CLIKey())
	require.NoError(t, err)
	assert.Contains(t, response, "/new")
	assert.Contains(t, response, "/help")
	assert.Equal(t, 0, f.provider.callCount())
}

func TestNewCommandConsolidatesAndClears(t *testing.T) {
	consolidation := `{"history_entry": "[2026-08-30 10:00] Talked about the weather.", "memory_update": "User lives in Oslo."}`
	f := newLoopFixture(t, textResponse("chat"), textResponse(consolidation))
	key := session.NewKey("telegram", "default", "4")

	_, err := f.loop.ProcessDirect(context.Background(), "remember I live in Oslo", key)
	require.NoError(t, err)

	response, err := f.loop.ProcessDirect(context.Background(), "/new", key)
	require.NoError(t, err)
	assert.Contains(t, response, "New session started")

	sess := f.sessions.GetOrCreate(key)
	assert.Empty(t, sess.Messages)

	memoryDir := filepath.Join(f.workspace, "sandboxes", key.SafeName(), "memory")
	history, err := os.ReadFile(filepath.Join(memoryDir, "HISTORY.md"))
	require.NoError(t, err)
	assert.Contains(t, string(history), "Talked about the weather")

	longTerm, err := os.ReadFile(filepath.Join(memoryDir, "MEMORY.md"))
	require.NoError(t, err)
	assert.Equal(t, "User lives in Oslo.", string(longTerm))
}

func TestNewCommandOnEmptySession(t *testing.T) {
	f := newLoopFixture(t)

	response, err := f.loop.ProcessDirect(context.Background(), "/new", session.CLIKey())
	require.NoError(t, err)
	assert.Contains(t, response, "New session started")
	assert.Equal(t, 0, f.provider.callCount())
}

func TestConsolidationFailureKeepsMessages(t *testing.T) {
	f := newLoopFixture(t,
		textResponse("this is not json"),
		textResponse("final answer"),
	)
	f.loop.memoryWindow = 3
	key := session.NewKey("telegram", "default", "5")

	sess := f.sessions.GetOrCreate(key)
	for i := 0; i < 5; i++ {
		sess.AddMessage(session.Message{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}
	require.NoError(t, f.sessions.Save(sess))

	response, err := f.loop.ProcessDirect(context.Background(), "one more", key)
	require.NoError(t, err)
	assert.Equal(t, "final answer", response)

	// Consolidation failed, so nothing was archived: the 5 old turns
	// plus the new user/assistant pair
	sess = f.sessions.GetOrCreate(key)
	assert.Len(t, sess.Messages, 7)
	assert.Equal(t, "msg 0", sess.Messages[0].Content)

	memoryDir := filepath.Join(f.workspace, "sandboxes", key.SafeName(), "memory")
	_, err = os.Stat(filepath.Join(memoryDir, "HISTORY.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestConsolidationTrimsToKeepWindow(t *testing.T) {
	consolidation := `{"history_entry": "[2026-08-30 10:00] Long chat archived.", "memory_update": ""}`
	f := newLoopFixture(t,
		textResponse(consolidation),
		textResponse("done"),
	)
	f.loop.memoryWindow = 4
	key := session.NewKey("telegram", "default", "6")

	sess := f.sessions.GetOrCreate(key)
	for i := 0; i < 6; i++ {
		sess.AddMessage(session.Message{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}
	require.NoError(t, f.sessions.Save(sess))

	_, err := f.loop.ProcessDirect(context.Background(), "continue", key)
	require.NoError(t, err)

	// keep window is memoryWindow/2 = 2, plus the new pair
	sess = f.sessions.GetOrCreate(key)
	require.Len(t, sess.Messages, 4)
	assert.Equal(t, "msg 4", sess.Messages[0].Content)

	memoryDir := filepath.Join(f.workspace, "sandboxes", key.SafeName(), "memory")
	history, err := os.ReadFile(filepath.Join(memoryDir, "HISTORY.md"))
	require.NoError(t, err)
	assert.Contains(t, string(history), "Long chat archived")
}

func TestSystemMessagePersistsWithSenderPrefix(t *testing.T) {
	f := newLoopFixture(t, textResponse("The background task finished."))
	key := session.NewKey("telegram", "default", "7")

	out, err := f.loop.processSystem(context.Background(), bus.InboundMessage{
		Kind:       bus.KindSystem,
		SenderID:   "subagent",
		SessionKey: key,
		Content:    "[Subagent 'fetch' completed successfully]\n\nTask: fetch\n\nResult:\nok",
	})
	require.NoError(t, err)
	assert.Equal(t, "The background task finished.", out.Content)

	sess := f.sessions.GetOrCreate(key)
	require.Len(t, sess.Messages, 2)
	assert.Contains(t, sess.Messages[0].Content, "[System: subagent]")
}

type failingSyncHook struct{}

func (failingSyncHook) Name() string { return "auditor" }
func (failingSyncHook) Sync() bool   { return true }
func (failingSyncHook) Execute(context.Context, hooks.Payload) (hooks.Payload, error) {
	return nil, errors.New("audit backend down")
}

func TestSyncHookFailureAbortsProcessing(t *testing.T) {
	workspace := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = workspace
	cfg.Sandbox = config.SandboxConfig{Enabled: true, Mode: "session", Backend: "direct"}

	hookMgr := hooks.NewManager()
	hookMgr.Register(hooks.EventToolPostCall, failingSyncHook{})

	sessions := session.NewManager(workspace, nil)
	loop := NewLoop(Options{
		Bus:      bus.NewMessageBus(),
		Provider: &stubProvider{steps: []chatStep{toolCallResponse("list_dir", map[string]any{"path": "."})}},
		Config:   cfg,
		Sessions: sessions,
		Sandbox:  sandbox.NewManager(cfg.Sandbox, workspace),
		Hooks:    hookMgr,
	})

	key := session.NewKey("telegram", "default", "8")
	_, err := loop.ProcessDirect(context.Background(), "list the files", key)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool.post_call hooks")
	assert.Contains(t, err.Error(), "audit backend down")

	sess := sessions.GetOrCreate(key)
	assert.Empty(t, sess.Messages)
}

func TestDispatchRecoversPanicIntoError(t *testing.T) {
	f := newLoopFixture(t)
	f.loop.sessions = nil // force a nil dereference inside process

	_, err := f.loop.dispatch(context.Background(), bus.InboundMessage{
		Kind:       bus.KindUser,
		SessionKey: session.CLIKey(),
		Content:    "boom",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")
}
