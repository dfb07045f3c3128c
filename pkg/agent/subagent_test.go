package agent

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/sandbox"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSubagentFixture(t *testing.T, steps ...chatStep) (*SubagentManager, *bus.MessageBus) {
	t.Helper()
	workspace := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Agents.Defaults.Workspace = workspace
	cfg.Sandbox = config.SandboxConfig{Enabled: true, Mode: "session", Backend: "direct"}

	messageBus := bus.NewMessageBus()
	sandboxMgr := sandbox.NewManager(cfg.Sandbox, workspace)
	mgr := NewSubagentManager(&stubProvider{steps: steps}, cfg, messageBus, sandboxMgr, hooks.NewManager(), nil, "stub-model")
	return mgr, messageBus
}

func waitAnnounce(t *testing.T, b *bus.MessageBus) bus.InboundMessage {
	t.Helper()
	select {
	case msg := <-b.ConsumeInbound():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("no announce received")
		return bus.InboundMessage{}
	}
}

func TestSpawnAcknowledgesThenAnnounces(t *testing.T) {
	mgr, messageBus := newSubagentFixture(t, textResponse("All three files were updated."))
	origin := session.NewKey("telegram", "default", "1")

	ack := mgr.Spawn("update the files", "file update", origin)
	assert.Contains(t, ack, "Subagent [file update] started")
	assert.Contains(t, ack, "I'll notify you when it completes.")

	announce := waitAnnounce(t, messageBus)
	assert.Equal(t, bus.KindSystem, announce.Kind)
	assert.Equal(t, "subagent", announce.SenderID)
	assert.Equal(t, origin, announce.SessionKey)
	assert.Contains(t, announce.Content, "[Subagent 'file update' completed successfully]")
	assert.Contains(t, announce.Content, "Task: update the files")
	assert.Contains(t, announce.Content, "All three files were updated.")
	assert.Contains(t, announce.Content, "Summarize this naturally")
}

func TestSpawnFailureAnnouncesError(t *testing.T) {
	mgr, messageBus := newSubagentFixture(t, chatStep{err: errors.New("model unavailable")})

	mgr.Spawn("do something", "", session.CLIKey())

	announce := waitAnnounce(t, messageBus)
	assert.Contains(t, announce.Content, "failed]")
	assert.Contains(t, announce.Content, "model unavailable")
}

func TestSpawnLabelFallsBackToTruncatedTask(t *testing.T) {
	longTask := strings.Repeat("investigate the deployment pipeline ", 3)
	mgr, messageBus := newSubagentFixture(t, textResponse("done"))

	ack := mgr.Spawn(longTask, "", session.CLIKey())
	assert.Contains(t, ack, longTask[:30]+"...")

	waitAnnounce(t, messageBus)
}

func TestSubagentToolSetExcludesPrivilegedTools(t *testing.T) {
	mgr, _ := newSubagentFixture(t)

	names := map[string]bool{}
	for _, def := range mgr.registry.GetDefinitions() {
		fn := def["function"].(map[string]any)
		names[fn["name"].(string)] = true
	}

	require.True(t, names["read_file"])
	require.True(t, names["exec"])
	assert.False(t, names["message"])
	assert.False(t, names["spawn"])
	assert.False(t, names["cron"])
	assert.False(t, names["generate_image"])
}

func TestRunningCountDrainsAfterCompletion(t *testing.T) {
	mgr, messageBus := newSubagentFixture(t, textResponse("ok"))

	mgr.Spawn("quick task", "quick", session.CLIKey())
	waitAnnounce(t, messageBus)

	deadline := time.Now().Add(2 * time.Second)
	for mgr.RunningCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Zero(t, mgr.RunningCount())
}

func TestSubagentIterationCap(t *testing.T) {
	var steps []chatStep
	for i := 0; i < 20; i++ {
		steps = append(steps, toolCallResponse("list_dir", map[string]any{"path": "."}))
	}
	mgr, messageBus := newSubagentFixture(t, steps...)
	mgr.maxIterations = 3

	mgr.Spawn("never finishes", "loop", session.CLIKey())

	announce := waitAnnounce(t, messageBus)
	assert.Contains(t, announce.Content, "completed successfully")
	assert.Contains(t, announce.Content, "Task completed but no final response was generated.")
}
