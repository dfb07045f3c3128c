// Package heartbeat periodically wakes the agent to work through
// HEARTBEAT.md task lists left in session workspaces.
package heartbeat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/sirupsen/logrus"
)

// DefaultInterval is how often the agent is woken when the config does
// not say otherwise.
const DefaultInterval = 30 * time.Minute

// Prompt is what the agent receives on each heartbeat tick.
const Prompt = `Read HEARTBEAT.md in your workspace (if it exists).
Follow any instructions or tasks listed there.
IMPORTANT: Use the 'message' tool to send any results or updates to the user.
If nothing needs attention, reply with just: HEARTBEAT_OK`

// OKToken is the reply meaning nothing needed attention.
const OKToken = "HEARTBEAT_OK"

// SessionLister is the slice of the session manager the service needs.
type SessionLister interface {
	ListSessions() ([]session.Info, error)
}

// ProcessFunc runs one heartbeat prompt through the agent for a session.
type ProcessFunc func(ctx context.Context, content string, key session.Key) (string, error)

// Service wakes the agent on an interval. For each known session
// workspace with an actionable HEARTBEAT.md, the agent is asked to work
// through it; sessions marked skip_heartbeat are left alone.
type Service struct {
	workspace   string
	sandboxMode string
	interval    time.Duration
	enabled     bool
	sessions    SessionLister
	process     ProcessFunc

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewService creates a heartbeat service. interval <= 0 means
// DefaultInterval.
func NewService(workspace, sandboxMode string, interval time.Duration, enabled bool, sessions SessionLister, process ProcessFunc) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		workspace:   workspace,
		sandboxMode: sandboxMode,
		interval:    interval,
		enabled:     enabled,
		sessions:    sessions,
		process:     process,
		stopChan:    make(chan struct{}),
	}
}

// Start runs the heartbeat loop until Stop or ctx cancellation. Run it
// in a goroutine.
func (s *Service) Start(ctx context.Context) {
	if !s.enabled {
		logrus.Info("Heartbeat disabled")
		return
	}
	logrus.Infof("Heartbeat started (every %s)", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the heartbeat loop.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// workspaces maps each sandbox workspace directory to the sessions
// using it, skipping sessions flagged skip_heartbeat.
func (s *Service) workspaces() map[string][]session.Key {
	infos, err := s.sessions.ListSessions()
	if err != nil {
		logrus.Warnf("Heartbeat: list sessions: %v", err)
		return nil
	}

	result := make(map[string][]session.Key)
	for _, info := range infos {
		if skip, _ := info.Metadata["skip_heartbeat"].(bool); skip {
			logrus.Debugf("Heartbeat: skipping session %s (marked as skip_heartbeat)", info.Key)
			continue
		}
		var dir string
		if s.sandboxMode == "shared" {
			dir = filepath.Join(s.workspace, "sandboxes", "shared")
		} else {
			dir = filepath.Join(s.workspace, "sandboxes", info.Key.SafeName())
		}
		result[dir] = append(result[dir], info.Key)
	}
	return result
}

// Tick runs a single heartbeat pass over all workspaces.
func (s *Service) Tick(ctx context.Context) {
	workspaces := s.workspaces()
	if len(workspaces) == 0 {
		logrus.Debug("Heartbeat: no workspaces found")
		return
	}

	active := 0
	for dir, keys := range workspaces {
		logrus.Debugf("Heartbeat: checking workspace %s...", dir)

		if !hasActionableTasks(readHeartbeatFile(dir)) {
			continue
		}
		active++
		logrus.Infof("Heartbeat: checking tasks for %s...", dir)

		for _, key := range keys {
			response, err := s.process(ctx, Prompt, key)
			if err != nil {
				logrus.Errorf("Heartbeat execution failed for %s: %v", dir, err)
				continue
			}
			if isOKResponse(response) {
				logrus.Infof("Heartbeat: %s OK (no action needed)", dir)
			} else {
				logrus.Infof("Heartbeat: %s completed task", dir)
			}
		}
	}

	if active == 0 {
		logrus.Debug("Heartbeat: no tasks in any workspace")
	}
}

// TriggerNow runs the heartbeat prompt immediately for one session.
func (s *Service) TriggerNow(ctx context.Context, key session.Key) (string, error) {
	return s.process(ctx, Prompt, key)
}

func readHeartbeatFile(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "HEARTBEAT.md"))
	if err != nil {
		return ""
	}
	return string(data)
}

// hasActionableTasks reports whether HEARTBEAT.md content holds
// anything beyond headers, comments, and bare checkboxes.
func hasActionableTasks(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "<!--"):
		case line == "- [ ]" || line == "* [ ]" || line == "- [x]" || line == "* [x]":
		default:
			return true
		}
	}
	return false
}

// isOKResponse matches replies that are just the OK token, tolerating
// case, spacing, and underscore variations.
func isOKResponse(response string) bool {
	cleaned := strings.ToUpper(strings.TrimSpace(response))
	cleaned = strings.ReplaceAll(cleaned, "_", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	token := strings.ReplaceAll(OKToken, "_", "")
	return cleaned == token || strings.HasPrefix(cleaned, token)
}
