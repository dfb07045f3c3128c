package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/viking"
)

// SkillMemoryHook enriches read_file results for skill manifests with
// related memory from the knowledge base. Registered for
// EventToolPostCall as a sync hook so it can rewrite the result.
type SkillMemoryHook struct {
	client viking.Client
}

// NewSkillMemoryHook creates the skill-memory enrichment hook.
func NewSkillMemoryHook(client viking.Client) *SkillMemoryHook {
	return &SkillMemoryHook{client: client}
}

func (h *SkillMemoryHook) Name() string { return "viking.skill_memory" }

func (h *SkillMemoryHook) Sync() bool { return true }

func (h *SkillMemoryHook) Execute(ctx context.Context, payload Payload) (Payload, error) {
	p, ok := payload.(*ToolCallPayload)
	if !ok || p.ToolName != "read_file" || p.Err != nil {
		return nil, nil
	}
	path, _ := p.Params["path"].(string)
	if !strings.HasSuffix(path, "SKILL.md") {
		return nil, nil
	}

	skill := strings.TrimSuffix(path, "/SKILL.md")
	if i := strings.LastIndex(skill, "/"); i >= 0 {
		skill = skill[i+1:]
	}
	memory, err := h.client.SearchUserMemory(ctx, skill)
	if err != nil || strings.TrimSpace(memory) == "" {
		return nil, nil
	}

	rewritten := *p
	rewritten.Result = p.Result + "\n\n## Related memory\n" + memory
	return &rewritten, nil
}

// ConversationCommitHook ships messages being archived by consolidation
// to the knowledge base. Async: a failed commit never delays or blocks
// consolidation.
type ConversationCommitHook struct {
	client viking.Client
}

// NewConversationCommitHook creates the conversation-commit hook.
func NewConversationCommitHook(client viking.Client) *ConversationCommitHook {
	return &ConversationCommitHook{client: client}
}

func (h *ConversationCommitHook) Name() string { return "viking.conversation_commit" }

func (h *ConversationCommitHook) Sync() bool { return false }

func (h *ConversationCommitHook) Execute(ctx context.Context, payload Payload) (Payload, error) {
	p, ok := payload.(*CompactPayload)
	if !ok || len(p.Messages) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation %s\n\n", p.SessionKey)
	for _, m := range p.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s\n", m.Timestamp.Format("2006-01-02 15:04"), strings.ToUpper(m.Role), m.Content)
	}
	return nil, h.client.CommitConversation(ctx, b.String())
}
