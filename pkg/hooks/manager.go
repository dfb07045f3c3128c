// Package hooks runs registered callbacks around agent lifecycle
// events. Async hooks fan out concurrently and their failures are
// swallowed; sync hooks run sequentially afterwards and may rewrite the
// event payload, and a sync hook error propagates to the caller.
package hooks

import (
	"context"
	"sync"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/sirupsen/logrus"
)

// Event names a hook point.
type Event string

const (
	// EventToolPostCall fires after every tool execution.
	EventToolPostCall Event = "tool.post_call"
	// EventMessageCompact fires before consolidation truncates a session.
	EventMessageCompact Event = "message.compact"
)

// Payload is the typed event payload. Each event has one variant.
type Payload interface {
	isPayload()
}

// ToolCallPayload is the payload for EventToolPostCall. Result and Err
// carry the tool outcome as a value; a sync hook may rewrite either.
type ToolCallPayload struct {
	ToolName string
	Params   map[string]any
	Result   string
	Err      error
}

func (*ToolCallPayload) isPayload() {}

// CompactPayload is the payload for EventMessageCompact: the messages
// about to be archived out of a session.
type CompactPayload struct {
	SessionKey session.Key
	Messages   []session.Message
}

func (*CompactPayload) isPayload() {}

// Hook is one registered callback.
type Hook interface {
	Name() string
	// Sync hooks run sequentially after async hooks and may replace the
	// payload by returning a non-nil one.
	Sync() bool
	Execute(ctx context.Context, payload Payload) (Payload, error)
}

// Manager holds hooks grouped by event.
type Manager struct {
	hooks map[Event][]Hook
	mu    sync.RWMutex
}

// NewManager creates an empty hook manager.
func NewManager() *Manager {
	return &Manager{hooks: make(map[Event][]Hook)}
}

// Register adds a hook for an event.
func (m *Manager) Register(event Event, h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[event] = append(m.hooks[event], h)
}

// Run executes all hooks for event. The returned payload reflects any
// sync-hook rewrites; with no hooks registered it is the input payload.
func (m *Manager) Run(ctx context.Context, event Event, payload Payload) (Payload, error) {
	m.mu.RLock()
	registered := m.hooks[event]
	m.mu.RUnlock()

	var async, syncs []Hook
	for _, h := range registered {
		if h.Sync() {
			syncs = append(syncs, h)
		} else {
			async = append(async, h)
		}
	}

	if len(async) > 0 {
		var wg sync.WaitGroup
		for _, h := range async {
			wg.Add(1)
			go func(h Hook) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						logrus.Errorf("Hook %s panicked: %v", h.Name(), r)
					}
				}()
				if _, err := h.Execute(ctx, payload); err != nil {
					logrus.Warnf("Hook %s failed: %v", h.Name(), err)
				}
			}(h)
		}
		wg.Wait()
	}

	for _, h := range syncs {
		rewritten, err := h.Execute(ctx, payload)
		if err != nil {
			return payload, err
		}
		if rewritten != nil {
			payload = rewritten
		}
	}
	return payload, nil
}
