package handlers

import (
	"context"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/todobot/internal/dialog"
)

// keyboard converts a dialog keyboard into Telegram inline markup.
func keyboard(rows [][]dialog.Button) *models.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &models.InlineKeyboardMarkup{InlineKeyboard: make([][]models.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

// sendResponse delivers resp as new messages: the notice, then the extra
// messages, then the view.
func sendResponse(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, resp dialog.Response) {
	if resp.Notice != "" {
		sendText(ctx, b, log, chatID, resp.Notice, "")
	}
	for _, text := range resp.Messages {
		sendText(ctx, b, log, chatID, text, models.ParseModeHTML)
	}
	if resp.View != nil {
		sendView(ctx, b, log, chatID, *resp.View)
	}
}

// editResponse answers a button press: extra messages are sent, and the view
// replaces the message carrying the keyboard. If that message can't be
// edited, the view is sent as a new message.
func editResponse(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, messageID int, resp dialog.Response) {
	for _, text := range resp.Messages {
		sendText(ctx, b, log, chatID, text, models.ParseModeHTML)
	}
	if resp.View == nil {
		return
	}
	if messageID == 0 {
		sendView(ctx, b, log, chatID, *resp.View)
		return
	}

	params := &tgbot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      resp.View.Text,
		ParseMode: models.ParseModeHTML,
	}
	if markup := keyboard(resp.View.Keyboard); markup != nil {
		params.ReplyMarkup = markup
	}
	_, err := b.EditMessageText(ctx, params)
	switch {
	case err == nil:
	case strings.Contains(err.Error(), "message is not modified"):
		log.DebugContext(ctx, "View unchanged", "chat_id", chatID, "message_id", messageID)
	default:
		log.WarnContext(ctx, "Failed to edit message, sending a new one", "error", err, "chat_id", chatID, "message_id", messageID)
		sendView(ctx, b, log, chatID, *resp.View)
	}
}

func sendView(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, view dialog.View) {
	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      view.Text,
		ParseMode: models.ParseModeHTML,
	}
	if markup := keyboard(view.Keyboard); markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send view", "error", err, "chat_id", chatID)
	}
}

func sendText(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, text string, parseMode models.ParseMode) {
	_, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}
