package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/sirupsen/logrus"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	dingtalkoauth2 "github.com/alibabacloud-go/dingtalk/oauth2_1_0"
	dingtalkrobot "github.com/alibabacloud-go/dingtalk/robot_1_0"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/chatbot"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/client"
	"github.com/open-dingtalk/dingtalk-stream-sdk-go/logger"
)

// DingTalkChannel bridges the DingTalk stream API and the message bus.
// Inbound messages arrive over the stream client; replies go out via
// the robot API, one-to-one or to a group conversation.
type DingTalkChannel struct {
	BaseChannel
	cfg          config.DingTalkConfig
	streamClient *client.StreamClient
	robotClient  *dingtalkrobot.Client
	oauthClient  *dingtalkoauth2.Client

	tokenMu       sync.RWMutex
	accessToken   string
	tokenExpireAt time.Time
}

// NewDingTalkChannel creates a DingTalk channel.
func NewDingTalkChannel(cfg config.DingTalkConfig, messageBus *bus.MessageBus) *DingTalkChannel {
	return &DingTalkChannel{
		BaseChannel: BaseChannel{
			Bus:       messageBus,
			AllowFrom: cfg.AllowFrom,
		},
		cfg: cfg,
	}
}

func (c *DingTalkChannel) Name() string {
	return "dingtalk"
}

func (c *DingTalkChannel) Start(ctx context.Context) error {
	if !c.cfg.Enabled || c.cfg.ClientID == "" || c.cfg.Secret == "" {
		return nil
	}

	apiConfig := &openapi.Config{
		Protocol: tea.String("https"),
		RegionId: tea.String("central"),
	}

	robotClient, err := dingtalkrobot.NewClient(apiConfig)
	if err != nil {
		return fmt.Errorf("init dingtalk robot client: %w", err)
	}
	c.robotClient = robotClient

	oauthClient, err := dingtalkoauth2.NewClient(apiConfig)
	if err != nil {
		return fmt.Errorf("init dingtalk oauth client: %w", err)
	}
	c.oauthClient = oauthClient

	logger.SetLogger(logger.NewStdTestLogger())
	c.streamClient = client.NewStreamClient(client.WithAppCredential(client.NewAppCredentialConfig(c.cfg.ClientID, c.cfg.Secret)))
	c.streamClient.RegisterChatBotCallbackRouter(c.onChatReceive)

	go func() {
		logrus.Info("Starting DingTalk Stream Client...")
		if err := c.streamClient.Start(ctx); err != nil {
			logrus.Errorf("DingTalk Stream Client error: %v", err)
		}
	}()

	logrus.Info("DingTalk bot started")
	return nil
}

func (c *DingTalkChannel) Stop() error {
	if c.streamClient != nil {
		c.streamClient.Close()
	}
	return nil
}

func (c *DingTalkChannel) getAccessToken() (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && time.Now().Before(c.tokenExpireAt) {
		defer c.tokenMu.RUnlock()
		return c.accessToken, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpireAt) {
		return c.accessToken, nil
	}

	resp, err := c.oauthClient.GetAccessToken(&dingtalkoauth2.GetAccessTokenRequest{
		AppKey:    tea.String(c.cfg.ClientID),
		AppSecret: tea.String(c.cfg.Secret),
	})
	if err != nil {
		return "", err
	}
	if resp.Body == nil || resp.Body.AccessToken == nil {
		return "", fmt.Errorf("get access token: empty response body")
	}

	c.accessToken = *resp.Body.AccessToken
	// Refresh 60s before the token actually expires
	c.tokenExpireAt = time.Now().Add(time.Duration(*resp.Body.ExpireIn-60) * time.Second)
	return c.accessToken, nil
}

func (c *DingTalkChannel) onChatReceive(_ context.Context, data *chatbot.BotCallbackDataModel) ([]byte, error) {
	content := strings.TrimSpace(data.Text.Content)
	if content == "" {
		logrus.Debug("DingTalk: empty content received")
		return nil, nil
	}

	senderID := data.SenderStaffId
	if senderID == "" {
		senderID = data.SenderId
	}
	if senderID == "" {
		logrus.Warn("DingTalk: message missing senderStaffId/senderId")
		return nil, nil
	}

	// conversationType "2" is a group chat; route replies to the
	// conversation instead of the sender
	chatID := senderID
	if data.ConversationType == "2" && data.ConversationId != "" {
		chatID = data.ConversationId
	}

	c.HandleMessage(c.Name(), c.cfg.RobotCode, chatID, senderID, content, nil, map[string]any{
		"sender_name": data.SenderNick,
	})
	return nil, nil
}

type dingTalkTextParam struct {
	Content string `json:"content"`
}

func (c *DingTalkChannel) Send(msg bus.OutboundMessage) error {
	if msg.Content == "" {
		return nil
	}

	token, err := c.getAccessToken()
	if err != nil {
		return fmt.Errorf("get access token: %w", err)
	}

	chatID := msg.SessionKey.ChatID
	// IDs starting with "cid" are open conversation IDs (group chats)
	if strings.HasPrefix(chatID, "cid") {
		if err := c.sendGroup(token, chatID, msg.Content); err != nil {
			return fmt.Errorf("send dingtalk group message: %w", err)
		}
		return nil
	}

	if err := c.sendOTO(token, chatID, msg.Content); err != nil {
		return fmt.Errorf("send dingtalk message: %w", err)
	}
	return nil
}

func (c *DingTalkChannel) sendOTO(token, userID, content string) error {
	headers := &dingtalkrobot.BatchSendOTOHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}

	msgParam, _ := json.Marshal(dingTalkTextParam{Content: content})
	req := &dingtalkrobot.BatchSendOTORequest{
		RobotCode: tea.String(c.cfg.RobotCode),
		UserIds:   []*string{tea.String(userID)},
		MsgKey:    tea.String("sampleText"),
		MsgParam:  tea.String(string(msgParam)),
	}

	_, err := c.robotClient.BatchSendOTOWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}

func (c *DingTalkChannel) sendGroup(token, conversationID, content string) error {
	headers := &dingtalkrobot.OrgGroupSendHeaders{
		XAcsDingtalkAccessToken: tea.String(token),
	}

	msgParam, _ := json.Marshal(dingTalkTextParam{Content: content})
	req := &dingtalkrobot.OrgGroupSendRequest{
		RobotCode:          tea.String(c.cfg.RobotCode),
		OpenConversationId: tea.String(conversationID),
		MsgKey:             tea.String("sampleText"),
		MsgParam:           tea.String(string(msgParam)),
	}

	_, err := c.robotClient.OrgGroupSendWithOptions(req, headers, &util.RuntimeOptions{})
	return err
}
