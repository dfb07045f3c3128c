package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
)

func init() {
	RegisterBackend("direct", NewDirectBackend)
}

// DirectBackend runs commands on the host inside the workspace
// directory. It offers no OS-level isolation; the workspace path
// restriction on file operations is its only boundary.
type DirectBackend struct {
	hostFiles
	key     string
	running bool
}

// NewDirectBackend creates a direct (host) backend.
func NewDirectBackend(_ config.SandboxConfig, key, workspace string) (Backend, error) {
	return &DirectBackend{
		hostFiles: hostFiles{workspace: workspace},
		key:       key,
	}, nil
}

func (d *DirectBackend) Start(_ context.Context) error {
	if err := os.MkdirAll(d.workspace, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	d.running = true
	return nil
}

func (d *DirectBackend) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = d.workspace
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		if text != "" {
			return "", fmt.Errorf("%s: %w", text, err)
		}
		return "", err
	}
	return text, nil
}

func (d *DirectBackend) Stop(_ context.Context) error {
	d.running = false
	return nil
}

func (d *DirectBackend) IsRunning() bool { return d.running }

func (d *DirectBackend) Workspace() string { return d.workspace }

func (d *DirectBackend) SandboxCWD() string { return d.workspace }
