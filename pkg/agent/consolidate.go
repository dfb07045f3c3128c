package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/hooks"
	"github.com/ZaynJarvis/vikingbot/pkg/memory"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/sirupsen/logrus"
)

const consolidationSystemPrompt = "You are a memory consolidation agent. Respond only with valid JSON."

const consolidationPromptTemplate = `You are a memory consolidation agent. Process this conversation and return a JSON object with exactly two keys:

1. "history_entry": A paragraph (2-5 sentences) summarizing the key events/decisions/topics. Start with a timestamp like [YYYY-MM-DD HH:MM]. Include enough detail to be useful when found by grep search later.

2. "memory_update": The updated long-term memory content. Add any new facts: user location, preferences, personal info, habits, project context, technical decisions, tools/services used. If nothing new, return the existing content unchanged.

## Current Long-term Memory
%s

## Conversation to Process
%s

Respond with ONLY valid JSON, no markdown fences.`

// consolidate archives old session messages into HISTORY.md and folds
// new facts into MEMORY.md, then trims the session. archiveAll archives
// everything with no keep window (the /new path). Any failure leaves
// the session untouched; the next overflow retries.
func (l *Loop) consolidate(ctx context.Context, sess *session.Session, archiveAll bool) {
	if len(sess.Messages) == 0 {
		return
	}

	if l.hooks != nil {
		payload := &hooks.CompactPayload{SessionKey: sess.Key, Messages: sess.Messages}
		if _, err := l.hooks.Run(ctx, hooks.EventMessageCompact, payload); err != nil {
			logrus.Warnf("message.compact hooks: %v", err)
		}
	}

	workspace := l.workspace
	if l.sandbox != nil {
		workspace = l.sandbox.GetWorkspacePath(sess.Key)
	}
	store := memory.NewStore(workspace, l.viking)

	var old []session.Message
	keepCount := 0
	if archiveAll {
		old = sess.Messages
	} else {
		keepCount = l.memoryWindow / 2
		if keepCount < 2 {
			keepCount = 2
		}
		if keepCount > 10 {
			keepCount = 10
		}
		if keepCount >= len(sess.Messages) {
			return
		}
		old = sess.Messages[:len(sess.Messages)-keepCount]
	}
	if len(old) == 0 {
		return
	}
	logrus.Infof("Memory consolidation started: %d messages, archiving %d, keeping %d",
		len(sess.Messages), len(old), keepCount)

	conversation := formatForConsolidation(old)
	currentMemory, err := store.ReadLongTerm()
	if err != nil {
		logrus.Errorf("Memory consolidation failed: %v", err)
		return
	}
	memoryForPrompt := currentMemory
	if memoryForPrompt == "" {
		memoryForPrompt = "(empty)"
	}

	prompt := fmt.Sprintf(consolidationPromptTemplate, memoryForPrompt, conversation)
	response, err := l.provider.Chat(ctx, []map[string]any{
		{"role": "system", "content": consolidationSystemPrompt},
		{"role": "user", "content": prompt},
	}, nil, l.model)
	if err != nil {
		logrus.Errorf("Memory consolidation failed: %v", err)
		return
	}

	var result struct {
		HistoryEntry string `json:"history_entry"`
		MemoryUpdate string `json:"memory_update"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(response.Content)), &result); err != nil {
		logrus.Errorf("Memory consolidation failed: %v", err)
		return
	}

	if result.HistoryEntry != "" {
		if err := store.AppendHistory(result.HistoryEntry); err != nil {
			logrus.Errorf("Memory consolidation failed: %v", err)
			return
		}
	}
	if result.MemoryUpdate != "" && result.MemoryUpdate != currentMemory {
		if err := store.WriteLongTerm(result.MemoryUpdate); err != nil {
			logrus.Errorf("Memory consolidation failed: %v", err)
			return
		}
	}

	if keepCount > 0 {
		sess.Messages = sess.Messages[len(sess.Messages)-keepCount:]
	} else {
		sess.Messages = nil
	}
	if err := l.sessions.Save(sess); err != nil {
		logrus.Errorf("Memory consolidation save: %v", err)
		return
	}
	logrus.Infof("Memory consolidation done, session trimmed to %d messages", len(sess.Messages))
}

// formatForConsolidation renders messages as timestamped lines with the
// tool names used, the shape the consolidation prompt expects.
func formatForConsolidation(messages []session.Message) string {
	var lines []string
	for _, m := range messages {
		if m.Content == "" {
			continue
		}
		toolsStr := ""
		if len(m.ToolsUsed) > 0 {
			names := make([]string, 0, len(m.ToolsUsed))
			for _, tu := range m.ToolsUsed {
				names = append(names, tu.ToolName)
			}
			toolsStr = " [tools: " + strings.Join(names, ", ") + "]"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s%s: %s",
			m.Timestamp.Format("2006-01-02 15:04"), strings.ToUpper(m.Role), toolsStr, m.Content))
	}
	return strings.Join(lines, "\n")
}

// stripCodeFences unwraps a ```json fenced block if the model added one
// despite instructions.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
