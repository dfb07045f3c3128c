package heartbeat

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	infos []session.Info
	err   error
}

func (s *stubLister) ListSessions() ([]session.Info, error) {
	return s.infos, s.err
}

func TestHasActionableTasks(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace only", "   \n\t\n", false},
		{"headers only", "# Tasks\n## Daily\n", false},
		{"comments only", "<!-- edit me -->\n", false},
		{"bare checkboxes", "- [ ]\n* [ ]\n- [x]\n* [x]\n", false},
		{"checkbox with text", "- [ ] water the plants\n", true},
		{"plain task line", "# Tasks\n\ncheck the build status\n", true},
		{"mixed noise and task", "<!-- note -->\n# Tasks\n- [ ]\n- [ ] ship it\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasActionableTasks(tt.content))
		})
	}
}

func TestIsOKResponse(t *testing.T) {
	assert.True(t, isOKResponse("HEARTBEAT_OK"))
	assert.True(t, isOKResponse("heartbeat_ok"))
	assert.True(t, isOKResponse("  HEARTBEAT OK  "))
	assert.True(t, isOKResponse("HEARTBEATOK"))
	assert.True(t, isOKResponse("HEARTBEAT_OK - nothing to do"))
	assert.False(t, isOKResponse("I finished the task"))
	assert.False(t, isOKResponse(""))
}

func writeHeartbeatFile(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "HEARTBEAT.md"), []byte(content), 0644))
}

func TestTickProcessesActionableWorkspaces(t *testing.T) {
	workspace := t.TempDir()
	key := session.NewKey("telegram", "default", "42")
	writeHeartbeatFile(t, filepath.Join(workspace, "sandboxes", key.SafeName()),
		"- [ ] send the weekly report\n")

	lister := &stubLister{infos: []session.Info{{Key: key}}}
	var processed []session.Key
	svc := NewService(workspace, "session", time.Minute, true, lister,
		func(_ context.Context, content string, k session.Key) (string, error) {
			assert.Equal(t, Prompt, content)
			processed = append(processed, k)
			return "Report sent.", nil
		})

	svc.Tick(context.Background())
	require.Len(t, processed, 1)
	assert.Equal(t, key, processed[0])
}

func TestTickSkipsInteractiveSessions(t *testing.T) {
	workspace := t.TempDir()
	key := session.NewKey("cli", "direct", "user")
	writeHeartbeatFile(t, filepath.Join(workspace, "sandboxes", key.SafeName()),
		"- [ ] something\n")

	lister := &stubLister{infos: []session.Info{
		{Key: key, Metadata: map[string]any{"skip_heartbeat": true}},
	}}
	called := false
	svc := NewService(workspace, "session", 0, true, lister,
		func(context.Context, string, session.Key) (string, error) {
			called = true
			return OKToken, nil
		})

	svc.Tick(context.Background())
	assert.False(t, called)
}

func TestTickIgnoresMissingOrEmptyHeartbeatFile(t *testing.T) {
	workspace := t.TempDir()
	missing := session.NewKey("telegram", "default", "1")
	empty := session.NewKey("telegram", "default", "2")
	writeHeartbeatFile(t, filepath.Join(workspace, "sandboxes", empty.SafeName()),
		"# Tasks\n<!-- nothing yet -->\n- [ ]\n")

	lister := &stubLister{infos: []session.Info{{Key: missing}, {Key: empty}}}
	called := false
	svc := NewService(workspace, "session", 0, true, lister,
		func(context.Context, string, session.Key) (string, error) {
			called = true
			return OKToken, nil
		})

	svc.Tick(context.Background())
	assert.False(t, called)
}

func TestSharedModeUsesSingleWorkspace(t *testing.T) {
	workspace := t.TempDir()
	writeHeartbeatFile(t, filepath.Join(workspace, "sandboxes", "shared"),
		"- [ ] rotate the logs\n")

	lister := &stubLister{infos: []session.Info{
		{Key: session.NewKey("telegram", "default", "1")},
		{Key: session.NewKey("feishu", "app", "oc_2")},
	}}
	var processed []session.Key
	svc := NewService(workspace, "shared", 0, true, lister,
		func(_ context.Context, _ string, k session.Key) (string, error) {
			processed = append(processed, k)
			return "done", nil
		})

	svc.Tick(context.Background())
	assert.Len(t, processed, 2)
}

func TestTriggerNow(t *testing.T) {
	svc := NewService(t.TempDir(), "session", 0, true, &stubLister{},
		func(_ context.Context, content string, _ session.Key) (string, error) {
			return content, nil
		})

	out, err := svc.TriggerNow(context.Background(), session.CLIKey())
	require.NoError(t, err)
	assert.Equal(t, Prompt, out)
}
