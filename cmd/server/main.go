// Package main contains the entrypoint for the todobot backend: the HTTP API
// and the notification scheduler.
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

	"github.com/edgard/todobot/internal/api"
	"github.com/edgard/todobot/internal/config"
	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
	"github.com/edgard/todobot/internal/scheduler"
	"github.com/edgard/todobot/internal/server"
	"github.com/edgard/todobot/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run wires config, logger, store, notifier, scheduler and HTTP API, and
// blocks until shutdown. It returns the process exit code.
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

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	if cfg.Notifier.BotToken == "" {
		log.Warn("Bot token not configured; notifications will not be sent")
	}
	notifier := notify.NewService(log, store, notify.TelegramOpener{RequestTimeout: cfg.Notifier.SendTimeout}, notify.Config{
		BotToken:      cfg.Notifier.BotToken,
		SendTimeout:   cfg.Notifier.SendTimeout,
		RatePerSecond: cfg.Notifier.RatePerSecond,
		Location:      cfg.NotifierLocation(),
	})

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Notifier: notifier,
	})
	sched, err := scheduler.NewScheduler(log, cfg.Scheduler, store, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	router := api.NewRouter(api.Deps{
		Logger:   log,
		Store:    store,
		Notifier: notifier,
	})

	srv := server.NewServer(log, cfg.Server, router, sched)

	log.Info("Starting server...", "addr", cfg.Server.Addr)
	runErr := srv.Run(ctx)
	log.Info("Server run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Server stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Server stopped gracefully.")
	return 0
}
