package agent

import (
	"context"
	"fmt"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/session"
	"github.com/sirupsen/logrus"
)

// processSystem handles internally generated messages, such as subagent
// announces. The agent gets the content as a regular turn and may use
// tools (most often 'message') before answering; the session records
// the turn with a sender prefix so consolidation sees where it came
// from.
func (l *Loop) processSystem(ctx context.Context, msg bus.InboundMessage) (*bus.OutboundMessage, error) {
	logrus.Infof("Processing system message from %s", msg.SenderID)

	sess := l.sessions.GetOrCreate(msg.SessionKey)

	builder := l.contextBuilder(msg.SessionKey)
	messages := builder.BuildMessages(ctx, sess.GetHistory(0), msg.Content, nil, msg.SessionKey)

	finalContent, toolsUsed, err := l.runIterations(ctx, messages, msg.SessionKey, l.maxIterations)
	if err != nil {
		return nil, err
	}
	if finalContent == "" {
		finalContent = "Background task completed."
	}

	sess.AddMessage(session.Message{
		Role:    "user",
		Content: fmt.Sprintf("[System: %s] %s", msg.SenderID, msg.Content),
		Sender:  msg.SenderID,
	})
	sess.AddMessage(session.Message{Role: "assistant", Content: finalContent, ToolsUsed: toolsUsed})
	if err := l.sessions.Save(sess); err != nil {
		return nil, err
	}

	return &bus.OutboundMessage{SessionKey: msg.SessionKey, Content: finalContent}, nil
}
