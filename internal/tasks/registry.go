// Package tasks implements the periodic tasks run by the backend scheduler
// and the trigger registrations that drive them.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/notify"
)

// Task keys referenced by periodic_tasks rows.
const (
	CheckDueTasks  = "check_due_tasks"
	SQLMaintenance = "sql_maintenance"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// DueTaskChecker runs one notification pass.
type DueTaskChecker interface {
	CheckDueTasks(ctx context.Context) (*notify.RunReport, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Notifier DueTaskChecker
}

// RegisterAllTasks initializes and returns a map of all registered scheduled
// tasks keyed by the task name stored in periodic_tasks.task.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		CheckDueTasks:  newCheckDueTasksTask(deps),
		SQLMaintenance: newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

// DefaultPeriodicTasks are the triggers created by setup-periodic-tasks.
func DefaultPeriodicTasks() []database.PeriodicTask {
	return []database.PeriodicTask{
		{
			Name:            "Check due tasks",
			Task:            CheckDueTasks,
			IntervalSeconds: int64(time.Minute / time.Second),
			Enabled:         true,
		},
		{
			Name:            "Database maintenance",
			Task:            SQLMaintenance,
			IntervalSeconds: int64(24 * time.Hour / time.Second),
			Enabled:         true,
		},
	}
}

// PeriodicTaskWriter is the store subset used to register triggers.
type PeriodicTaskWriter interface {
	UpsertPeriodicTask(ctx context.Context, task *database.PeriodicTask) (bool, error)
}

// SetupResult reports one trigger registration.
type SetupResult struct {
	Name    string
	Created bool
}

// SetupPeriodicTasks registers the default triggers. Running it again
// updates the existing rows instead of adding new ones.
func SetupPeriodicTasks(ctx context.Context, store PeriodicTaskWriter) ([]SetupResult, error) {
	defaults := DefaultPeriodicTasks()
	results := make([]SetupResult, 0, len(defaults))
	for i := range defaults {
		created, err := store.UpsertPeriodicTask(ctx, &defaults[i])
		if err != nil {
			return results, fmt.Errorf("failed to register periodic task %q: %w", defaults[i].Name, err)
		}
		results = append(results, SetupResult{Name: defaults[i].Name, Created: created})
	}
	return results, nil
}
