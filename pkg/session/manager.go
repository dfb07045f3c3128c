package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SandboxProvisioner is the slice of the sandbox manager the session
// layer needs: best-effort pre-warming on session creation and teardown
// on deletion.
type SandboxProvisioner interface {
	Prewarm(key Key)
	CleanupSession(key Key)
}

// Info summarizes one persisted session for listings.
type Info struct {
	Key          Key            `json:"key"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	MessageCount int            `json:"message_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Manager owns every session: cache, persistence, and lifecycle.
type Manager struct {
	Workspace   string
	SessionsDir string
	sandbox     SandboxProvisioner
	cache       map[string]*Session
	mu          sync.RWMutex
}

// NewManager creates a session manager rooted at workspace. sandbox may
// be nil when sandboxing is disabled.
func NewManager(workspace string, sandbox SandboxProvisioner) *Manager {
	sessionsDir := filepath.Join(workspace, "sessions")
	os.MkdirAll(sessionsDir, 0755)

	return &Manager{
		Workspace:   workspace,
		SessionsDir: sessionsDir,
		sandbox:     sandbox,
		cache:       make(map[string]*Session),
	}
}

func (m *Manager) sessionPath(key Key) string {
	return filepath.Join(m.SessionsDir, key.SafeName()+".jsonl")
}

// GetOrCreate returns the cached session for key, loading it from disk
// or creating it fresh. New interactive sessions are flagged to skip
// heartbeat processing; new sessions also get their sandbox pre-warmed
// in the background.
func (m *Manager) GetOrCreate(key Key) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := key.SafeName()
	if s, ok := m.cache[name]; ok {
		return s
	}

	s := m.load(key)
	created := s == nil
	if created {
		s = New(key)
		if key.IsInteractive() {
			s.Metadata["skip_heartbeat"] = true
		}
	}
	m.cache[name] = s

	if created && m.sandbox != nil {
		go m.sandbox.Prewarm(key)
	}
	return s
}

func (m *Manager) load(key Key) *Session {
	file, err := os.Open(m.sessionPath(key))
	if err != nil {
		return nil
	}
	defer file.Close()

	s := New(key)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var probe struct {
			Type string `json:"_type"`
		}
		if err := json.Unmarshal([]byte(line), &probe); err != nil {
			continue
		}

		if probe.Type == "metadata" {
			var meta struct {
				CreatedAt time.Time      `json:"created_at"`
				UpdatedAt time.Time      `json:"updated_at"`
				Metadata  map[string]any `json:"metadata"`
			}
			if err := json.Unmarshal([]byte(line), &meta); err == nil {
				s.CreatedAt = meta.CreatedAt
				s.UpdatedAt = meta.UpdatedAt
				if meta.Metadata != nil {
					s.Metadata = meta.Metadata
				}
			}
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			logrus.Warnf("Skipping bad session line for %s: %v", key, err)
			continue
		}
		s.Messages = append(s.Messages, msg)
	}

	return s
}

// Save rewrites the session file: one metadata line, then one line per
// message.
func (m *Manager) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cache[s.Key.SafeName()] = s

	file, err := os.Create(m.sessionPath(s.Key))
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	meta := map[string]any{
		"_type":       "metadata",
		"session_key": s.Key.String(),
		"created_at":  s.CreatedAt.Format(time.RFC3339),
		"updated_at":  s.UpdatedAt.Format(time.RFC3339),
		"metadata":    s.Metadata,
	}
	line, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session metadata: %w", err)
	}
	w.Write(line)
	w.WriteByte('\n')

	for _, msg := range s.Messages {
		line, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal session message: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

// Delete evicts key from the cache, tears down its sandbox, and removes
// the persisted file.
func (m *Manager) Delete(key Key) error {
	m.mu.Lock()
	delete(m.cache, key.SafeName())
	m.mu.Unlock()

	if m.sandbox != nil {
		m.sandbox.CleanupSession(key)
	}

	err := os.Remove(m.sessionPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ListSessions returns metadata for every persisted session, most
// recently updated first.
func (m *Manager) ListSessions() ([]Info, error) {
	entries, err := os.ReadDir(m.SessionsDir)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		key, err := ParseSafeName(strings.TrimSuffix(e.Name(), ".jsonl"))
		if err != nil {
			continue
		}
		s := m.load(key)
		if s == nil {
			continue
		}
		infos = append(infos, Info{
			Key:          key,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
			MessageCount: len(s.Messages),
			Metadata:     s.Metadata,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	return infos, nil
}
