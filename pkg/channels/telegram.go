package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ZaynJarvis/vikingbot/pkg/bus"
	"github.com/ZaynJarvis/vikingbot/pkg/config"
	"github.com/ZaynJarvis/vikingbot/pkg/utils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// TelegramChannel bridges Telegram long polling and the message bus.
type TelegramChannel struct {
	BaseChannel
	cfg      config.TelegramConfig
	mediaDir string
	bot      *tgbotapi.BotAPI
	cancel   context.CancelFunc
}

// NewTelegramChannel creates a Telegram channel. mediaDir is where
// incoming attachments are downloaded.
func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus, mediaDir string) *TelegramChannel {
	return &TelegramChannel{
		BaseChannel: BaseChannel{
			Bus:       messageBus,
			AllowFrom: cfg.AllowFrom,
		},
		cfg:      cfg,
		mediaDir: mediaDir,
	}
}

func (c *TelegramChannel) Name() string {
	return "telegram"
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	if !c.cfg.Enabled || c.cfg.Token == "" {
		return nil
	}

	client := http.DefaultClient
	if c.cfg.Proxy != "" {
		proxyURL, err := url.Parse(c.cfg.Proxy)
		if err != nil {
			return fmt.Errorf("invalid telegram proxy: %w", err)
		}
		client = &http.Client{Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)}}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(c.cfg.Token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	c.bot = bot
	logrus.Infof("Telegram bot authorized on account %s", bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					c.handleUpdate(update)
				}
			case <-runCtx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *TelegramChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.bot != nil {
		c.bot.StopReceivingUpdates()
	}
	return nil
}

func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if c.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.SessionKey.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %s", msg.SessionKey.ChatID)
	}

	for _, media := range msg.Media {
		if err := c.sendMedia(chatID, media); err != nil {
			logrus.Warnf("Telegram media send: %v", err)
		}
	}

	if msg.Content == "" {
		return nil
	}
	_, err = c.bot.Send(tgbotapi.NewMessage(chatID, msg.Content))
	return err
}

func (c *TelegramChannel) sendMedia(chatID int64, pathOrURL string) error {
	reader, filename, err := utils.GetMediaReader(pathOrURL)
	if err != nil {
		return err
	}
	defer reader.Close()

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileReader{Name: filename, Reader: reader})
	_, err = c.bot.Send(photo)
	return err
}

func (c *TelegramChannel) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	senderID := strconv.FormatInt(msg.From.ID, 10)
	if msg.From.UserName != "" {
		senderID = fmt.Sprintf("%s|%s", senderID, msg.From.UserName)
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	content := msg.Text
	if msg.Caption != "" {
		content = msg.Caption
	}

	if msg.IsCommand() && msg.Command() == "start" {
		c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "👋 Hi! I'm vikingbot.\n\nSend me a message and I'll respond!"))
		return
	}

	var media []string
	if len(msg.Photo) > 0 {
		// Largest size is last
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		if path, err := c.downloadFile(fileID, fileID+".jpg"); err == nil {
			media = append(media, path)
		} else {
			logrus.Warnf("Telegram photo download: %v", err)
		}
		if content == "" {
			content = "[Photo received]"
		}
	} else if msg.Voice != nil {
		if content == "" {
			content = "[Voice received]"
		}
	}

	if content == "" {
		content = "[Empty message]"
	}

	metadata := map[string]any{
		"message_id": msg.MessageID,
		"username":   msg.From.UserName,
		"first_name": msg.From.FirstName,
	}

	c.HandleMessage(c.Name(), "default", chatID, senderID, content, media, metadata)
}

func (c *TelegramChannel) downloadFile(fileID, name string) (string, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}
	dir := c.mediaDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "vikingbot-media")
	}
	return utils.DownloadMedia(fileURL, dir, name)
}
