package handlers

import (
	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/todobot/internal/dialog"
)

// RegisteredHandler represents a handler with its pattern and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// RegisterAllCommands returns every command and callback handler of the
// bot, keyed by a unique name. Plain text goes to NewTextHandler, which is
// installed as the default handler.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	privateOnly := []tgbot.Middleware{PrivateChatOnly(deps)}

	handlers["/start"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "start",
		Handler:     NewStartHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateOnly,
	}
	handlers["/tasks"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "tasks",
		Handler:     NewTasksHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateOnly,
	}
	handlers["/new"] = RegisteredHandler{
		HandlerType: tgbot.HandlerTypeMessageText,
		Pattern:     "new",
		Handler:     NewNewTaskHandler(deps),
		MatchType:   tgbot.MatchTypeCommandStartOnly,
		Middleware:  privateOnly,
	}

	callback := NewCallbackHandler(deps)
	for _, prefix := range dialog.CallbackPrefixes {
		handlers["callback:"+prefix] = RegisteredHandler{
			HandlerType: tgbot.HandlerTypeCallbackQueryData,
			Pattern:     prefix,
			Handler:     callback,
			MatchType:   tgbot.MatchTypePrefix,
		}
	}

	return handlers
}
