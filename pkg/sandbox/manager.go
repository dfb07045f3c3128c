package sandbox

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/sirupsen/logrus"
)

// SharedKey is the pooling key used when sandbox.mode is "shared".
const SharedKey = "shared"

// bootstrapFiles are copied from the source workspace into every new
// sandbox workspace.
var bootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// Manager maps sandbox keys to live backend instances. It guarantees at
// most one instance per key, creating lazily and tearing down on
// session deletion or shutdown.
type Manager struct {
	cfg       config.SandboxConfig
	workspace string
	instances map[string]Backend
	mu        sync.Mutex
}

// NewManager creates a sandbox manager. workspace is the source
// workspace whose template files seed each sandbox.
func NewManager(cfg config.SandboxConfig, workspace string) *Manager {
	return &Manager{
		cfg:       cfg,
		workspace: workspace,
		instances: make(map[string]Backend),
	}
}

// ToSandboxKey derives the pooling key for a session.
func (m *Manager) ToSandboxKey(key session.Key) string {
	if m.cfg.Mode == "shared" {
		return SharedKey
	}
	return key.SafeName()
}

// sandboxWorkspace is the host directory for one sandbox key.
func (m *Manager) sandboxWorkspace(sandboxKey string) string {
	return filepath.Join(m.workspace, "sandboxes", sandboxKey)
}

// GetSandbox returns the backend for key, creating and starting it on
// first use. A failed start is logged, not fatal: the instance is
// cached anyway and surfaces errors on its first real operation.
func (m *Manager) GetSandbox(key session.Key) (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(key)
}

func (m *Manager) getLocked(key session.Key) (Backend, error) {
	sandboxKey := m.ToSandboxKey(key)
	if backend, ok := m.instances[sandboxKey]; ok {
		return backend, nil
	}

	workspace := m.sandboxWorkspace(sandboxKey)
	backend, err := NewBackend(m.cfg.Backend, m.cfg, sandboxKey, workspace)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := backend.Start(ctx); err != nil {
		logrus.Warnf("Sandbox %s failed to start: %v", sandboxKey, err)
	}

	m.bootstrap(workspace)
	m.instances[sandboxKey] = backend
	logrus.Infof("Sandbox %s created (backend %s)", sandboxKey, m.cfg.Backend)
	return backend, nil
}

// bootstrap copies the template files, the init/ tree, and allow-listed
// skill directories into a fresh sandbox workspace. Existing skill
// directories are left alone.
func (m *Manager) bootstrap(dst string) {
	if err := os.MkdirAll(dst, 0755); err != nil {
		logrus.Warnf("Sandbox bootstrap: %v", err)
		return
	}

	for _, name := range bootstrapFiles {
		src := filepath.Join(m.workspace, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(dst, name)); err != nil {
			logrus.Warnf("Sandbox bootstrap copy %s: %v", name, err)
		}
	}

	initDir := filepath.Join(m.workspace, "init")
	if info, err := os.Stat(initDir); err == nil && info.IsDir() {
		if err := copyTree(initDir, dst, false); err != nil {
			logrus.Warnf("Sandbox bootstrap init/: %v", err)
		}
	}

	for _, skill := range m.cfg.Skills {
		src := filepath.Join(m.workspace, "skills", skill)
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			continue
		}
		target := filepath.Join(dst, "skills", skill)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := copyTree(src, target, true); err != nil {
			logrus.Warnf("Sandbox bootstrap skill %s: %v", skill, err)
		}
	}
}

// Prewarm ensures the sandbox for key exists. Errors are logged only.
func (m *Manager) Prewarm(key session.Key) {
	if _, err := m.GetSandbox(key); err != nil {
		logrus.Warnf("Sandbox prewarm for %s: %v", key, err)
	}
}

// GetSandboxCWD returns the in-sandbox working directory for key,
// resolving the sandbox if needed.
func (m *Manager) GetSandboxCWD(key session.Key) (string, error) {
	backend, err := m.GetSandbox(key)
	if err != nil {
		return "", err
	}
	return backend.SandboxCWD(), nil
}

// GetWorkspacePath returns the host workspace directory for key without
// starting a backend.
func (m *Manager) GetWorkspacePath(key session.Key) string {
	return m.sandboxWorkspace(m.ToSandboxKey(key))
}

// CleanupSession stops and evicts the sandbox for one session.
func (m *Manager) CleanupSession(key session.Key) {
	sandboxKey := m.ToSandboxKey(key)

	m.mu.Lock()
	backend, ok := m.instances[sandboxKey]
	delete(m.instances, sandboxKey)
	m.mu.Unlock()

	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := backend.Stop(ctx); err != nil {
		logrus.Warnf("Sandbox %s stop: %v", sandboxKey, err)
	}
}

// CleanupAll stops and evicts every sandbox. Used at shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	instances := m.instances
	m.instances = make(map[string]Backend)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for key, backend := range instances {
		if err := backend.Stop(ctx); err != nil {
			logrus.Warnf("Sandbox %s stop: %v", key, err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// copyTree copies src into dst. When overwrite is false, existing
// destination files are kept.
func copyTree(src, dst string, overwrite bool) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !overwrite {
			if _, err := os.Stat(target); err == nil {
				return nil
			}
		}
		return copyFile(path, target)
	})
}
