package bus

import (
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// MessageKind tags an inbound message so the consumer can dispatch on
// it instead of sniffing the session key.
type MessageKind string

const (
	// KindUser is an ordinary message typed by a person.
	KindUser MessageKind = "user"
	// KindSystem is an internally generated message, such as a subagent
	// announce or a cron system event.
	KindSystem MessageKind = "system"
)

// InboundMessage is a message entering the agent core.
type InboundMessage struct {
	Kind       MessageKind    `json:"kind"`
	SenderID   string         `json:"sender_id"`
	SessionKey session.Key    `json:"session_key"`
	Content    string         `json:"content"`
	Timestamp  time.Time      `json:"timestamp"`
	Media      []string       `json:"media,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OutboundMessage is a response leaving the agent core for a channel.
type OutboundMessage struct {
	SessionKey session.Key    `json:"session_key"`
	Content    string         `json:"content"`
	ReplyTo    string         `json:"reply_to,omitempty"`
	Media      []string       `json:"media,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Channel returns the channel type an outbound message routes to.
func (m *OutboundMessage) Channel() string {
	return m.SessionKey.Type
}
