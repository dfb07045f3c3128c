package session

import "time"

// ToolUsage records one tool call made while producing an assistant message.
type ToolUsage struct {
	ToolName     string         `json:"tool_name"`
	Args         map[string]any `json:"args,omitempty"`
	Result       string         `json:"result,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	Success      bool           `json:"success"`
	InputTokens  int            `json:"input_tokens,omitempty"`
	OutputTokens int            `json:"output_tokens,omitempty"`
}

// Message is one turn in a session's history.
type Message struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Sender    string      `json:"sender,omitempty"`
	ToolsUsed []ToolUsage `json:"tools_used,omitempty"`
}

// Session holds one conversation's state.
type Session struct {
	Key       Key            `json:"key"`
	Messages  []Message      `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// New creates an empty session for a key.
func New(key Key) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

// AddMessage appends a turn and bumps the update time.
func (s *Session) AddMessage(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// GetHistory returns the last maxMessages turns reduced to role/content,
// the shape the LLM context wants.
func (s *Session) GetHistory(maxMessages int) []map[string]any {
	msgs := s.Messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	history := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, map[string]any{
			"role":    m.Role,
			"content": m.Content,
		})
	}
	return history
}

// Clear drops all messages, keeping metadata.
func (s *Session) Clear() {
	s.Messages = s.Messages[:0]
	s.UpdatedAt = time.Now()
}
