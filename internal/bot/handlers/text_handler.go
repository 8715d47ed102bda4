package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTextHandler returns the default handler. It feeds plain text to the
// dialog and ignores every other update.
func NewTextHandler(deps HandlerDeps) bot.HandlerFunc {
	return PrivateChatOnly(deps)(textHandler{deps}.Handle)
}

type textHandler struct {
	deps HandlerDeps
}

func (h textHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "text")

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		log.DebugContext(ctx, "Ignoring non-text update", "update_id", update.ID)
		return
	}

	resp := h.deps.Dialog.Text(ctx, msg.From.ID, msg.Text)
	sendResponse(ctx, b, log, msg.Chat.ID, resp)
}
