package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/viking"
	"github.com/sirupsen/logrus"
)

// Store manages the two-tier persisted memory: long-term facts in
// MEMORY.md (full overwrite) and an append-only HISTORY.md log meant to
// be grep-searched by the agent itself. When a Viking client is
// configured it also fronts remote knowledge-base lookups.
type Store struct {
	Workspace string
	MemoryDir string
	viking    viking.Client
}

// NewStore creates a memory store rooted at workspace. client may be nil.
func NewStore(workspace string, client viking.Client) *Store {
	memoryDir := filepath.Join(workspace, "memory")
	os.MkdirAll(memoryDir, 0755)
	return &Store{
		Workspace: workspace,
		MemoryDir: memoryDir,
		viking:    client,
	}
}

// ReadLongTerm reads MEMORY.md. A missing file is empty memory.
func (s *Store) ReadLongTerm() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.MemoryDir, "MEMORY.md"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// WriteLongTerm overwrites MEMORY.md with the full new content.
func (s *Store) WriteLongTerm(content string) error {
	return os.WriteFile(filepath.Join(s.MemoryDir, "MEMORY.md"), []byte(content), 0644)
}

// AppendHistory appends one blank-line-separated block to HISTORY.md.
func (s *Store) AppendHistory(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}

	path := filepath.Join(s.MemoryDir, "HISTORY.md")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(entry + "\n\n")
	return err
}

// GetMemoryContext returns the long-term memory formatted for the
// system prompt.
func (s *Store) GetMemoryContext() string {
	longTerm, err := s.ReadLongTerm()
	if err != nil {
		logrus.Warnf("Read long-term memory: %v", err)
		return ""
	}
	if strings.TrimSpace(longTerm) == "" {
		return ""
	}
	return "## Long-term Memory\n" + longTerm
}

// GetVikingMemory searches the remote knowledge base for user memory.
// Returns "" when the client is absent or unreachable.
func (s *Store) GetVikingMemory(ctx context.Context, query string) string {
	if s.viking == nil {
		return ""
	}
	result, err := s.viking.SearchUserMemory(ctx, query)
	if err != nil {
		logrus.Debugf("Viking memory search: %v", err)
		return ""
	}
	return result
}

// GetVikingContext reads a knowledge-base URI. Returns "" when the
// client is absent or unreachable.
func (s *Store) GetVikingContext(ctx context.Context, uri string) string {
	if s.viking == nil {
		return ""
	}
	result, err := s.viking.Read(ctx, uri)
	if err != nil {
		logrus.Debugf("Viking read: %v", err)
		return ""
	}
	return result
}
