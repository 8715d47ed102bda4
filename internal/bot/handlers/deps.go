package handlers

import (
	"context"
	"log/slog"

	"github.com/edgard/todobot/internal/dialog"
)

// Dialog is the conversation engine the handlers delegate to.
type Dialog interface {
	Start(ctx context.Context, userID int64) dialog.Response
	Tasks(ctx context.Context, userID int64) dialog.Response
	NewTask(ctx context.Context, userID int64) dialog.Response
	Callback(ctx context.Context, userID int64, data string) dialog.Response
	Text(ctx context.Context, userID int64, text string) dialog.Response
}

// HandlerDeps provides dependencies for Telegram handlers.
type HandlerDeps struct {
	Logger *slog.Logger
	Dialog Dialog
}
