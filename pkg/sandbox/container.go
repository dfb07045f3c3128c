package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/sirupsen/logrus"
)

func init() {
	RegisterBackend("container", NewContainerBackend)
}

const containerWorkdir = "/workspace"

// ContainerBackend runs commands inside a per-key Docker container with
// the workspace bind-mounted at /workspace. File operations go through
// the host side of the bind mount; the container is the isolation
// boundary for command execution.
type ContainerBackend struct {
	hostFiles
	key       string
	image     string
	container string
	running   bool
}

// NewContainerBackend creates a Docker-backed sandbox.
func NewContainerBackend(cfg config.SandboxConfig, key, workspace string) (Backend, error) {
	image := cfg.Container.Image
	if image == "" {
		image = "ubuntu:24.04"
	}
	name := "vikingbot-sbx-" + sanitizeContainerName(key)
	return &ContainerBackend{
		hostFiles: hostFiles{workspace: workspace},
		key:       key,
		image:     image,
		container: name,
	}, nil
}

func sanitizeContainerName(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}

func (c *ContainerBackend) docker(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		if text != "" {
			return "", fmt.Errorf("docker %s: %s: %w", args[0], text, err)
		}
		return "", fmt.Errorf("docker %s: %w", args[0], err)
	}
	return text, nil
}

func (c *ContainerBackend) Start(ctx context.Context) error {
	if err := os.MkdirAll(c.workspace, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	// A previous run may have left the container behind.
	c.docker(ctx, "rm", "-f", c.container)

	_, err := c.docker(ctx, "run", "-d",
		"--name", c.container,
		"-v", c.workspace+":"+containerWorkdir,
		"-w", containerWorkdir,
		c.image,
		"sleep", "infinity")
	if err != nil {
		return fmt.Errorf("start container: %w", err)
	}
	c.running = true
	logrus.Infof("Sandbox container %s started (image %s)", c.container, c.image)
	return nil
}

func (c *ContainerBackend) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if !c.running {
		return "", fmt.Errorf("container %s is not running", c.container)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := c.docker(ctx, "exec", c.container, "bash", "-c", command)
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	return out, err
}

func (c *ContainerBackend) Stop(ctx context.Context) error {
	if !c.running {
		return nil
	}
	c.running = false
	_, err := c.docker(ctx, "rm", "-f", c.container)
	return err
}

func (c *ContainerBackend) IsRunning() bool { return c.running }

func (c *ContainerBackend) Workspace() string { return c.workspace }

func (c *ContainerBackend) SandboxCWD() string { return containerWorkdir }
