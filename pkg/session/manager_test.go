package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager(dir, nil)

	key := NewKey("telegram", "default", "42")
	s := mgr.GetOrCreate(key)
	s.Metadata["skip_heartbeat"] = true
	s.AddMessage(Message{Role: "user", Content: "hello", Sender: "alice"})
	s.AddMessage(Message{Role: "assistant", Content: "hi there", ToolsUsed: []ToolUsage{
		{ToolName: "read_file", DurationMs: 12, Success: true},
	}})
	require.NoError(t, mgr.Save(s))

	// Force a disk load through a fresh manager
	mgr2 := NewManager(dir, nil)
	loaded := mgr2.GetOrCreate(key)

	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "hello", loaded.Messages[0].Content)
	assert.Equal(t, "alice", loaded.Messages[0].Sender)
	assert.Equal(t, "read_file", loaded.Messages[1].ToolsUsed[0].ToolName)
	assert.Equal(t, true, loaded.Metadata["skip_heartbeat"])
	assert.WithinDuration(t, s.CreatedAt, loaded.CreatedAt, time.Second)
}

func TestGetOrCreateCaches(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	key := NewKey("cli", "default", "direct")

	a := mgr.GetOrCreate(key)
	b := mgr.GetOrCreate(key)
	assert.Same(t, a, b)
}

func TestInteractiveSessionSkipsHeartbeat(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)

	cli := mgr.GetOrCreate(CLIKey())
	assert.Equal(t, true, cli.Metadata["skip_heartbeat"])

	chat := mgr.GetOrCreate(NewKey("telegram", "default", "7"))
	_, flagged := chat.Metadata["skip_heartbeat"]
	assert.False(t, flagged)
}

func TestListSessions(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)

	first := mgr.GetOrCreate(NewKey("telegram", "default", "1"))
	first.AddMessage(Message{Role: "user", Content: "one"})
	first.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, mgr.Save(first))

	second := mgr.GetOrCreate(NewKey("telegram", "default", "2"))
	second.AddMessage(Message{Role: "user", Content: "two"})
	second.AddMessage(Message{Role: "assistant", Content: "reply"})
	require.NoError(t, mgr.Save(second))

	infos, err := mgr.ListSessions()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	// Most recently updated first
	assert.Equal(t, "2", infos[0].Key.ChatID)
	assert.Equal(t, 2, infos[0].MessageCount)
	assert.Equal(t, 1, infos[1].MessageCount)
}

func TestDeleteRemovesFile(t *testing.T) {
	mgr := NewManager(t.TempDir(), nil)
	key := NewKey("telegram", "default", "9")

	s := mgr.GetOrCreate(key)
	s.AddMessage(Message{Role: "user", Content: "bye"})
	require.NoError(t, mgr.Save(s))
	require.NoError(t, mgr.Delete(key))

	infos, err := mgr.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, infos)

	// Deleting again is not an error
	assert.NoError(t, mgr.Delete(key))
}

func TestGetHistoryShape(t *testing.T) {
	s := New(NewKey("cli", "default", "direct"))
	s.AddMessage(Message{Role: "user", Content: "a"})
	s.AddMessage(Message{Role: "assistant", Content: "b"})
	s.AddMessage(Message{Role: "user", Content: "c"})

	history := s.GetHistory(2)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[0]["role"])
	assert.Equal(t, "c", history[1]["content"])

	all := s.GetHistory(0)
	assert.Len(t, all, 3)
}
