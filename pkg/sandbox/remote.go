package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/config"
)

func init() {
	RegisterBackend("remote", NewRemoteBackend)
}

// RemoteBackend delegates execution and file access to a sandbox
// service over HTTP. Each call carries the sandbox key so the service
// can route to (or lazily create) the right environment, which makes
// the backend tolerant of service restarts.
type RemoteBackend struct {
	key       string
	workspace string
	baseURL   string
	token     string
	http      *http.Client
	running   bool
}

// NewRemoteBackend creates a backend for the service at sandbox.remote.baseUrl.
func NewRemoteBackend(cfg config.SandboxConfig, key, workspace string) (Backend, error) {
	if cfg.Remote.BaseURL == "" {
		return nil, fmt.Errorf("remote sandbox backend requires sandbox.remote.baseUrl")
	}
	return &RemoteBackend{
		key:       key,
		workspace: workspace,
		baseURL:   cfg.Remote.BaseURL,
		token:     cfg.Remote.Token,
		http:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (r *RemoteBackend) call(ctx context.Context, method, path string, payload map[string]any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sandbox service %s: status %d: %s", path, resp.StatusCode, data)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (r *RemoteBackend) Start(ctx context.Context) error {
	if err := r.call(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return fmt.Errorf("sandbox service health check: %w", err)
	}
	r.running = true
	return nil
}

func (r *RemoteBackend) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var result struct {
		Output   string `json:"output"`
		ExitCode int    `json:"exit_code"`
		Error    string `json:"error"`
	}
	err := r.call(ctx, http.MethodPost, "/exec", map[string]any{
		"sandbox":         r.key,
		"command":         command,
		"timeout_seconds": int(timeout.Seconds()),
	}, &result)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		msg := result.Error
		if msg == "" {
			msg = result.Output
		}
		return "", fmt.Errorf("command exited %d: %s", result.ExitCode, msg)
	}
	return result.Output, nil
}

func (r *RemoteBackend) Stop(ctx context.Context) error {
	if !r.running {
		return nil
	}
	r.running = false
	return r.call(ctx, http.MethodPost, "/stop", map[string]any{"sandbox": r.key}, nil)
}

func (r *RemoteBackend) IsRunning() bool { return r.running }

func (r *RemoteBackend) Workspace() string { return r.workspace }

func (r *RemoteBackend) SandboxCWD() string { return "/" }

func (r *RemoteBackend) ReadFile(ctx context.Context, path string) (string, error) {
	var result struct {
		Content string `json:"content"`
	}
	err := r.call(ctx, http.MethodPost, "/files/read", map[string]any{
		"sandbox": r.key,
		"path":    path,
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

func (r *RemoteBackend) WriteFile(ctx context.Context, path, content string) error {
	return r.call(ctx, http.MethodPost, "/files/write", map[string]any{
		"sandbox": r.key,
		"path":    path,
		"content": content,
	}, nil)
}

func (r *RemoteBackend) ListDir(ctx context.Context, path string) ([]string, error) {
	var result struct {
		Entries []string `json:"entries"`
	}
	err := r.call(ctx, http.MethodPost, "/files/list", map[string]any{
		"sandbox": r.key,
		"path":    path,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}
