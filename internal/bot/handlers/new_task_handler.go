package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewNewTaskHandler returns a handler for the /new command, which starts the
// task creation dialog.
func NewNewTaskHandler(deps HandlerDeps) bot.HandlerFunc {
	return newTaskHandler{deps}.Handle
}

type newTaskHandler struct {
	deps HandlerDeps
}

func (h newTaskHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "new_task")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "New task handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	resp := h.deps.Dialog.NewTask(ctx, update.Message.From.ID)
	sendResponse(ctx, b, log, update.Message.Chat.ID, resp)
}
