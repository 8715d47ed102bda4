package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCallbackHandler returns the handler for inline keyboard presses.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback")

	query := update.CallbackQuery
	if query == nil {
		log.WarnContext(ctx, "Callback handler received update without callback query", "update_id", update.ID)
		return
	}

	var (
		chatID    int64
		messageID int
	)
	switch {
	case query.Message.Message != nil:
		chatID = query.Message.Message.Chat.ID
		messageID = query.Message.Message.ID
	case query.Message.InaccessibleMessage != nil:
		chatID = query.Message.InaccessibleMessage.Chat.ID
	default:
		chatID = query.From.ID
	}

	resp := h.deps.Dialog.Callback(ctx, query.From.ID, query.Data)

	// Telegram keeps the button spinner until the query is answered.
	_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            resp.Notice,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to answer callback query", "error", err, "callback_query_id", query.ID)
	}

	editResponse(ctx, b, log, chatID, messageID, resp)
}
