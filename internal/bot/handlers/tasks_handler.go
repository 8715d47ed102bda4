package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewTasksHandler returns a handler for the /tasks command.
func NewTasksHandler(deps HandlerDeps) bot.HandlerFunc {
	return tasksHandler{deps}.Handle
}

type tasksHandler struct {
	deps HandlerDeps
}

func (h tasksHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "tasks")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Tasks handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	resp := h.deps.Dialog.Tasks(ctx, update.Message.From.ID)
	sendResponse(ctx, b, log, update.Message.Chat.ID, resp)
}
