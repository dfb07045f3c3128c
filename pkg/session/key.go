package session

import (
	"fmt"
	"strings"
)

// Key identifies one conversation: the channel type, the channel account,
// and the chat within it. Equal keys address the same session, the same
// persisted file and the same sandbox.
type Key struct {
	Type      string `json:"type"`
	ChannelID string `json:"channel_id"`
	ChatID    string `json:"chat_id"`
}

// NewKey creates a session key.
func NewKey(keyType, channelID, chatID string) Key {
	return Key{Type: keyType, ChannelID: channelID, ChatID: chatID}
}

// CLIKey is the key used for direct command-line conversations.
func CLIKey() Key {
	return Key{Type: "cli", ChannelID: "default", ChatID: "direct"}
}

// String returns the human-readable form used in logs.
func (k Key) String() string {
	return k.Type + ":" + k.ChannelID + ":" + k.ChatID
}

// IsInteractive reports whether the key belongs to a local console
// conversation, which skips heartbeat processing.
func (k Key) IsInteractive() bool {
	return k.Type == "cli" || k.Type == "tui"
}

func escapeComponent(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '.' || c == '-' {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func unescapeComponent(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", fmt.Errorf("truncated escape in %q", s)
		}
		var c byte
		if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &c); err != nil {
			return "", fmt.Errorf("bad escape in %q: %w", s, err)
		}
		b.WriteByte(c)
		i += 2
	}
	return b.String(), nil
}

// SafeName serializes the key into a filesystem-safe string. Each component
// is percent-escaped so the underscore separators are unambiguous; distinct
// keys always produce distinct names.
func (k Key) SafeName() string {
	return escapeComponent(k.Type) + "_" + escapeComponent(k.ChannelID) + "_" + escapeComponent(k.ChatID)
}

// ParseSafeName reverses SafeName.
func ParseSafeName(name string) (Key, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("invalid session name %q", name)
	}
	keyType, err := unescapeComponent(parts[0])
	if err != nil {
		return Key{}, err
	}
	channelID, err := unescapeComponent(parts[1])
	if err != nil {
		return Key{}, err
	}
	chatID, err := unescapeComponent(parts[2])
	if err != nil {
		return Key{}, err
	}
	return Key{Type: keyType, ChannelID: channelID, ChatID: chatID}, nil
}
