package tools

import (
	"context"
	"fmt"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
)

// MessageTool lets the agent send a message to the user mid-task,
// optionally with media attachments.
type MessageTool struct {
	Bus *bus.MessageBus
}

// NewMessageTool creates a new MessageTool.
func NewMessageTool(messageBus *bus.MessageBus) *MessageTool {
	return &MessageTool{Bus: messageBus}
}

func (t *MessageTool) Name() string {
	return "message"
}

func (t *MessageTool) Description() string {
	return "Send a message to the user. Supports text and media attachments. Use this to deliver files or intermediate updates."
}

func (t *MessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{
				"type":        "string",
				"description": "The message content (text body or caption)",
			},
			"media": map[string]any{
				"type":        "string",
				"description": "Optional path or URL to a media file to attach",
			},
			"channel": map[string]any{
				"type":        "string",
				"description": "Optional: target channel type (telegram, feishu, dingtalk)",
			},
			"chat_id": map[string]any{
				"type":        "string",
				"description": "Optional: target chat/user ID",
			},
		},
		"required": []string{"content"},
	}
}

func (t *MessageTool) Execute(_ context.Context, tc *ToolContext, args map[string]any) (string, error) {
	content := args["content"].(string)
	media, _ := args["media"].(string)

	key := tc.SessionKey
	if c, ok := args["channel"].(string); ok && c != "" {
		key.Type = c
	}
	if c, ok := args["chat_id"].(string); ok && c != "" {
		key.ChatID = c
	}
	if key.Type == "" || key.ChatID == "" {
		return "Error: No target channel/chat specified", nil
	}

	msg := bus.OutboundMessage{
		SessionKey: session.Key{Type: key.Type, ChannelID: key.ChannelID, ChatID: key.ChatID},
		Content:    content,
	}
	if media != "" {
		msg.Media = []string{media}
	}
	t.Bus.PublishOutbound(msg)

	return fmt.Sprintf("Message sent to %s:%s", key.Type, key.ChatID), nil
}
