package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/sirupsen/logrus"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkdispatcher "github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
)

// FeishuChannel bridges the Feishu (Lark) websocket event stream and
// the message bus. Replies go out as interactive cards.
type FeishuChannel struct {
	BaseChannel
	cfg       config.FeishuConfig
	workspace string
	client    *lark.Client
	wsClient  *larkws.Client
	cancel    context.CancelFunc
}

// NewFeishuChannel creates a Feishu channel. workspace is used to read
// the agent's display name from SOUL.md.
func NewFeishuChannel(cfg config.FeishuConfig, messageBus *bus.MessageBus, workspace string) *FeishuChannel {
	return &FeishuChannel{
		BaseChannel: BaseChannel{
			Bus:       messageBus,
			AllowFrom: cfg.AllowFrom,
		},
		cfg:       cfg,
		workspace: workspace,
	}
}

func (c *FeishuChannel) Name() string {
	return "feishu"
}

var (
	feishuNameZh = regexp.MustCompile(`名字[叫是]([^，,。.\n]+)`)
	feishuNameEn = regexp.MustCompile(`(?i)Named[:\s]+([^,\n]+)`)
)

// agentName extracts the agent's display name from SOUL.md, falling
// back to a fixed default.
func (c *FeishuChannel) agentName() string {
	const fallback = "VikingBot"
	if c.workspace == "" {
		return fallback
	}
	content, err := os.ReadFile(filepath.Join(c.workspace, "SOUL.md"))
	if err != nil {
		return fallback
	}
	text := string(content)

	if m := feishuNameZh.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := feishuNameEn.FindStringSubmatch(text); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return fallback
}

func (c *FeishuChannel) Start(ctx context.Context) error {
	if !c.cfg.Enabled || c.cfg.AppID == "" || c.cfg.AppSecret == "" {
		return nil
	}

	c.client = lark.NewClient(c.cfg.AppID, c.cfg.AppSecret)

	handler := larkdispatcher.NewEventDispatcher(c.cfg.VerificationToken, c.cfg.EncryptKey).
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			c.handleEvent(event)
			return nil
		})

	c.wsClient = larkws.NewClient(
		c.cfg.AppID,
		c.cfg.AppSecret,
		larkws.WithEventHandler(handler),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		logrus.Info("Starting Feishu WebSocket client...")
		if err := c.wsClient.Start(runCtx); err != nil {
			logrus.Errorf("Feishu WebSocket error: %v", err)
		}
	}()

	logrus.Info("Feishu bot started")
	return nil
}

func (c *FeishuChannel) handleEvent(event *larkim.P2MessageReceiveV1) {
	content := *event.Event.Message.Content
	logrus.Debugf("Received Feishu event content: %s", content)

	var textContent string
	var msgContent struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(content), &msgContent); err == nil && msgContent.Text != "" {
		textContent = msgContent.Text
	} else {
		var generic map[string]any
		if err := json.Unmarshal([]byte(content), &generic); err == nil {
			if _, ok := generic["content"]; ok {
				textContent = fmt.Sprintf("[Rich Text] %s", content)
			} else {
				textContent = content
			}
		} else {
			textContent = content
		}
	}

	chatID := *event.Event.Message.ChatId
	senderID := *event.Event.Sender.SenderId.OpenId

	c.HandleMessage(c.Name(), c.cfg.AppID, chatID, senderID, textContent, nil, nil)
}

func (c *FeishuChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *FeishuChannel) Send(msg bus.OutboundMessage) error {
	if c.client == nil {
		return fmt.Errorf("feishu client not initialized")
	}

	chatID := msg.SessionKey.ChatID
	receiveIDType := larkim.ReceiveIdTypeOpenId
	if strings.HasPrefix(chatID, "oc_") {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	cardContent := map[string]any{
		"config": map[string]any{
			"wide_screen_mode": true,
		},
		"header": map[string]any{
			"title": map[string]any{
				"tag":     "plain_text",
				"content": c.agentName(),
			},
			"template": "blue",
		},
		"elements": []any{
			map[string]any{
				"tag": "div",
				"text": map[string]any{
					"tag":     "lark_md",
					"content": msg.Content,
				},
			},
		},
	}
	contentJSON, _ := json.Marshal(cardContent)

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(chatID).
			MsgType(larkim.MsgTypeInteractive).
			Content(string(contentJSON)).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(context.Background(), req)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("feishu error: %d %s", resp.Code, resp.Msg)
	}
	return nil
}
