// Package bot implements the lifecycle of the Telegram front-end: it runs the
// update listener and tears it down on shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Listener receives Telegram updates until ctx is cancelled. *bot.Bot from
// go-telegram satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Bot represents the bot application and manages its components' lifecycle.
type Bot struct {
	logger   *slog.Logger
	listener Listener
	publish  func(ctx context.Context) error
}

// NewBot creates a Bot around a Telegram client. publish, when non-nil, runs
// once before the listener starts; its failure is logged and not fatal.
func NewBot(logger *slog.Logger, listener Listener, publish func(ctx context.Context) error) *Bot {
	return &Bot{
		logger:   logger.With("component", "bot_orchestrator"),
		listener: listener,
		publish:  publish,
	}
}

// Run starts the listener and blocks until ctx is cancelled or the listener
// stops on its own.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	if b.publish != nil {
		if err := b.publish(ctx); err != nil {
			b.logger.Warn("Failed to publish bot commands", "error", err)
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")

		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			b.logger.Warn("Telegram bot listener stopped unexpectedly without context cancellation.")
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	b.logger.Info("Bot orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}
