// Package main contains the entrypoint for the Telegram bot front-end.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"

	"github.com/edgard/todobot/internal/apiclient"
	"github.com/edgard/todobot/internal/bot"
	"github.com/edgard/todobot/internal/bot/handlers"
	"github.com/edgard/todobot/internal/config"
	"github.com/edgard/todobot/internal/dialog"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run initializes the API client, dialog engine and Telegram bot, handles
// graceful shutdown, and returns an exit code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	if cfg.Telegram.Token == "" {
		log.Error("Telegram bot token is not configured", "env", "TELEGRAM_BOT_TOKEN")
		return 1
	}

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout)
	engine := dialog.NewEngine(log, client, dialog.NewSessions(), cfg.NotifierLocation())
	hDeps := handlers.HandlerDeps{
		Logger: log,
		Dialog: engine,
	}

	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewTextHandler(hDeps)),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	if _, err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, func(ctx context.Context) error {
		return telegram.PublishCommands(ctx, tg)
	})

	log.Info("Starting bot...", "api", cfg.API.BaseURL)
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
