// Package main contains the todobot management commands:
//
//	manage [-config path] setup-periodic-tasks
//	manage [-config path] createadmin [-username u] [-email e] [-password p]
//	manage [-config path] notify -task <id>
//	manage [-config path] check-due-tasks
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/edgard/todobot/internal/admin"
	"github.com/edgard/todobot/internal/config"
	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
	"github.com/edgard/todobot/internal/notify"
	"github.com/edgard/todobot/internal/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitCode)
}

type command struct {
	usage string
	run   func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]command{
	"setup-periodic-tasks": {usage: "register the default periodic tasks", run: setupPeriodicTasks},
	"createadmin":          {usage: "create the admin account if it does not exist", run: createAdmin},
	"notify":               {usage: "send the notification of one task now", run: notifyTask},
	"check-due-tasks":      {usage: "run one notification pass", run: checkDueTasks},
}

// environment is what every command works with.
type environment struct {
	cfg   *config.Config
	log   *slog.Logger
	store database.Store
	out   io.Writer
}

func (e *environment) notifier() *notify.Service {
	return notify.NewService(e.log, e.store, notify.TelegramOpener{RequestTimeout: e.cfg.Notifier.SendTimeout}, notify.Config{
		BotToken:      e.cfg.Notifier.BotToken,
		SendTimeout:   e.cfg.Notifier.SendTimeout,
		RatePerSecond: e.cfg.Notifier.RatePerSecond,
		Location:      e.cfg.NotifierLocation(),
	})
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("manage", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: manage [-config path] <command> [flags]")
		for _, name := range []string{"setup-periodic-tasks", "createadmin", "notify", "check-due-tasks"} {
			fmt.Fprintf(stderr, "  %-22s %s\n", name, commands[name].usage)
		}
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	log := logger.NewLogger(cfg.Logger)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)

	env := &environment{cfg: cfg, log: log, store: database.NewStore(db, log), out: stdout}
	if err := cmd.run(ctx, env, fs.Args()[1:]); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

func setupPeriodicTasks(ctx context.Context, env *environment, _ []string) error {
	results, err := tasks.SetupPeriodicTasks(ctx, env.store)
	if err != nil {
		return err
	}
	for _, r := range results {
		verb := "Updated"
		if r.Created {
			verb = "Created"
		}
		fmt.Fprintf(env.out, "%s periodic task %q\n", verb, r.Name)
	}
	return nil
}

func createAdmin(ctx context.Context, env *environment, args []string) error {
	fs := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	username := fs.String("username", admin.DefaultCredentials.Username, "admin username")
	email := fs.String("email", admin.DefaultCredentials.Email, "admin email")
	password := fs.String("password", admin.DefaultCredentials.Password, "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	created, err := admin.EnsureAdmin(ctx, env.store, admin.Credentials{
		Username: *username,
		Email:    *email,
		Password: *password,
	}, 0)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(env.out, "Admin %q created\n", *username)
	} else {
		fmt.Fprintf(env.out, "Admin %q already exists\n", *username)
	}
	return nil
}

func notifyTask(ctx context.Context, env *environment, args []string) error {
	fs := flag.NewFlagSet("notify", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	taskID := fs.String("task", "", "task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *taskID == "" {
		return errors.New("-task is required")
	}

	outcome := env.notifier().NotifyTask(ctx, *taskID)
	fmt.Fprintln(env.out, outcome.Message)
	if outcome.Status != notify.OutcomeSent {
		return fmt.Errorf("notification %s", outcome.Status)
	}
	return nil
}

func checkDueTasks(ctx context.Context, env *environment, _ []string) error {
	report, err := env.notifier().CheckDueTasks(ctx)
	if report != nil {
		fmt.Fprintln(env.out, report.Message)
		for _, failed := range report.Failed() {
			fmt.Fprintf(env.out, "  task %s: %v\n", failed.TaskID, failed.Err)
		}
	}
	return err
}
