package channels

import (
	"context"
	"strings"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// Channel is the interface for chat channels.
type Channel interface {
	Start(ctx context.Context) error
	Stop() error
	Send(msg bus.OutboundMessage) error
	Name() string
}

// BaseChannel provides the allow-list check and inbound publishing
// shared by every channel adapter.
type BaseChannel struct {
	Bus       *bus.MessageBus
	AllowFrom []string
}

// IsAllowed checks if a sender is allowed to use this bot. An empty
// allow list admits everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.AllowFrom) == 0 {
		return true
	}

	for _, allowed := range c.AllowFrom {
		if allowed == senderID {
			return true
		}
		// Composite IDs like "id|username" match on any part
		if strings.Contains(senderID, "|") {
			for _, part := range strings.Split(senderID, "|") {
				if part == allowed {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage publishes an incoming platform message to the bus,
// dropping it when the sender is not allow-listed.
func (c *BaseChannel) HandleMessage(channelName, channelID, chatID, senderID, content string, media []string, metadata map[string]any) {
	if !c.IsAllowed(senderID) {
		return
	}

	c.Bus.PublishInbound(bus.InboundMessage{
		Kind:       bus.KindUser,
		SenderID:   senderID,
		SessionKey: session.NewKey(channelName, channelID, chatID),
		Content:    content,
		Timestamp:  time.Now(),
		Media:      media,
		Metadata:   metadata,
	})
}
