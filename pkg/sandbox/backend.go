package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
)

// ErrPathEscapes is returned when a file operation resolves outside the
// sandbox workspace.
var ErrPathEscapes = errors.New("path escapes sandbox workspace")

// Backend is one execution environment bound to a single sandbox key.
type Backend interface {
	Start(ctx context.Context) error
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
	Stop(ctx context.Context) error
	IsRunning() bool

	// Workspace is the host-visible workspace directory.
	Workspace() string
	// SandboxCWD is the working directory as seen from inside the sandbox.
	SandboxCWD() string

	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListDir(ctx context.Context, path string) ([]string, error)
}

// Constructor builds a backend for one sandbox key.
type Constructor func(cfg config.SandboxConfig, key, workspace string) (Backend, error)

var backends = map[string]Constructor{}

// RegisterBackend registers a backend constructor under a name.
func RegisterBackend(name string, ctor Constructor) {
	backends[name] = ctor
}

// NewBackend builds the named backend.
func NewBackend(name string, cfg config.SandboxConfig, key, workspace string) (Backend, error) {
	ctor, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown sandbox backend %q", name)
	}
	return ctor(cfg, key, workspace)
}

// hostFiles implements the file operations against the host filesystem,
// restricted to paths under the workspace root. Backends whose isolation
// boundary is elsewhere (container bind mounts) reuse it as-is.
type hostFiles struct {
	workspace string
}

// resolve turns a sandbox-relative or absolute path into a host path,
// rejecting anything that lands outside the workspace.
func (h *hostFiles) resolve(path string) (string, error) {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(h.workspace, p)
	}
	p = filepath.Clean(p)

	root := filepath.Clean(h.workspace)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, path)
	}
	return p, nil
}

func (h *hostFiles) ReadFile(_ context.Context, path string) (string, error) {
	p, err := h.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *hostFiles) WriteFile(_ context.Context, path, content string) error {
	p, err := h.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

func (h *hostFiles) ListDir(_ context.Context, path string) ([]string, error) {
	p, err := h.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
