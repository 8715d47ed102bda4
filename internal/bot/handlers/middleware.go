// Package handlers contains the Telegram bot command, callback and text
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const privateChatMsg = "Бот работает только в личных сообщениях."

// PrivateChatOnly passes on messages from users in private chats. Commands
// sent elsewhere get a one-line refusal; any other message is dropped.
func PrivateChatOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, bot, update)
				return
			}

			msg := update.Message
			if msg.From != nil && msg.Chat.Type == models.ChatTypePrivate {
				next(ctx, bot, update)
				return
			}

			log := deps.Logger.With("middleware", "PrivateChatOnly")
			if !startsWithCommand(msg) {
				log.DebugContext(ctx, "Dropping non-command message outside a private chat", "chat_id", msg.Chat.ID, "chat_type", msg.Chat.Type)
				return
			}
			log.WarnContext(ctx, "Ignoring command outside a private chat", "chat_id", msg.Chat.ID, "chat_type", msg.Chat.Type)

			_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
				ChatID: msg.Chat.ID,
				Text:   privateChatMsg,
			})
			if err != nil {
				log.ErrorContext(ctx, "Failed to send private chat notice", "error", err, "chat_id", msg.Chat.ID)
			}
		}
	}
}

// startsWithCommand reports whether msg opens with a bot command entity.
func startsWithCommand(msg *models.Message) bool {
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeBotCommand && e.Offset == 0 {
			return true
		}
	}
	return false
}
