// Package telegram implements the Telegram ingress channel. Telegram is an
// untrusted surface: messages enter the pipeline with telegram provenance
// and never count as first-party authenticated.
package telegram

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// ErrInvalidPayload is returned for webhook bodies that do not contain a
// usable message.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// IncomingMessage is one parsed inbound Telegram message.
type IncomingMessage struct {
	PlatformUserID string
	ChatID         int64
	Username       string
	Content        string
	Timestamp      time.Time
}

// Config holds configuration for the Telegram channel.
type Config struct {
	BotToken string
}

// Channel wraps the Telegram Bot API for the assistant.
type Channel struct {
	bot    *tgbotapi.BotAPI
	config *Config
}

// NewChannel creates a Telegram channel.
func NewChannel(config *Config) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "create telegram bot")
	}
	return &Channel{bot: bot, config: config}, nil
}

// Token returns the bot token, used as the webhook path secret.
func (c *Channel) Token() string {
	return c.config.BotToken
}

// ParseUpdate parses a webhook payload into an IncomingMessage.
func (c *Channel) ParseUpdate(payload []byte) (*IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, ErrInvalidPayload
	}

	var msg *tgbotapi.Message
	switch {
	case update.Message != nil:
		msg = update.Message
	case update.EditedMessage != nil:
		msg = update.EditedMessage
	default:
		return nil, ErrInvalidPayload
	}
	if msg.From == nil || msg.Text == "" {
		return nil, ErrInvalidPayload
	}

	return &IncomingMessage{
		PlatformUserID: strconv.FormatInt(msg.From.ID, 10),
		ChatID:         msg.Chat.ID,
		Username:       msg.From.UserName,
		Content:        msg.Text,
		Timestamp:      time.Now(),
	}, nil
}

// Reply sends a response back to the originating chat.
func (c *Channel) Reply(ctx context.Context, chatID int64, text string) error {
	reply := tgbotapi.NewMessage(chatID, text)
	if _, err := c.bot.Send(reply); err != nil {
		return errors.Wrap(err, "send telegram reply")
	}
	return nil
}

// SetWebhook registers the webhook URL with Telegram.
func (c *Channel) SetWebhook(ctx context.Context, webhookURL string) error {
	cfg, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return errors.Wrap(err, "build webhook config")
	}
	if _, err := c.bot.Request(cfg); err != nil {
		return errors.Wrap(err, "set telegram webhook")
	}
	return nil
}

// DeleteWebhook removes the registered webhook.
func (c *Channel) DeleteWebhook(ctx context.Context) error {
	_, err := c.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
	return errors.Wrap(err, "delete telegram webhook")
}
