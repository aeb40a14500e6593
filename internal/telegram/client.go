// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rewired-gh/otawatch/internal/notify"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

func (c *Client) Name() string { return "telegram" }

// ListenForCommands starts a goroutine that polls for Telegram updates and answers
// /ping and /status. It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, status func() string) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, status)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, status func() string) {
	var text string
	switch msg.Command() {
	case "ping":
		text = "Pong"
	case "status":
		text = status()
	default:
		return
	}
	c.bot.Send(tgbotapi.NewMessage(msg.Chat.ID, text)) //nolint:errcheck
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(ctx context.Context, runErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeMarkdownV2(runErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(ctx context.Context, failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(ctx, text)
}

// Send sends the price drop events of msg.
func (c *Client) Send(ctx context.Context, msg notify.Message) error {
	return c.sendMarkdownV2(ctx, formatMessage(msg))
}

// formatMessage formats price drop events into a Telegram MarkdownV2 message.
func formatMessage(msg notify.Message) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📉 *%s*\n\n", escapeMarkdownV2(msg.Subject)))

	for i, e := range msg.Events {
		b.WriteString(fmt.Sprintf("%d\\. *%s*", i+1, escapeMarkdownV2(e.HotelName)))
		if e.RoomType != "" {
			b.WriteString(fmt.Sprintf(" \\(%s\\)", escapeMarkdownV2(e.RoomType)))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("   📅 %s → %s\n", escapeMarkdownV2(e.CheckIn), escapeMarkdownV2(e.CheckOut)))
		b.WriteString(fmt.Sprintf("   💰 %s → *%s* \\(↓ %s\\)\n\n",
			escapeMarkdownV2(e.OldPrice.StringFixed(2)),
			escapeMarkdownV2(e.NewPrice.StringFixed(2)),
			escapeMarkdownV2(e.Delta.StringFixed(2)),
		))
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
