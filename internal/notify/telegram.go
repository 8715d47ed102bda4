package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramOpener opens Telegram Bot API channels. Each channel owns a
// dedicated HTTP client whose idle connections are dropped on Close.
type TelegramOpener struct {
	// ServerURL overrides the Bot API endpoint; empty means api.telegram.org.
	ServerURL string
	// RequestTimeout bounds every HTTP request of the channel.
	RequestTimeout time.Duration
}

// Open creates a channel for token without calling getMe.
func (o TelegramOpener) Open(token string) (Channel, error) {
	if token == "" {
		return nil, ErrNotConfigured
	}

	timeout := o.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	opts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(timeout, client),
	}
	if o.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(o.ServerURL))
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}
	return &telegramChannel{bot: b, client: client}, nil
}

type telegramChannel struct {
	bot    *bot.Bot
	client *http.Client
}

func (c *telegramChannel) Send(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	})
	return err
}

func (c *telegramChannel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
