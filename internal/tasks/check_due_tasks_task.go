package tasks

import (
	"context"
	"fmt"
	"time"
)

// newCheckDueTasksTask creates the scheduled task that sends due-date
// reminders.
func newCheckDueTasksTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", CheckDueTasks)

	return func(ctx context.Context) error {
		startTime := time.Now()

		report, err := deps.Notifier.CheckDueTasks(ctx)
		duration := time.Since(startTime)

		if err != nil {
			if report != nil {
				log.ErrorContext(ctx, "Due task check failed", "result", report.Message, "status", report.Status,
					"sent", report.Sent, "error", err, "duration", duration)
			} else {
				log.ErrorContext(ctx, "Due task check failed", "error", err, "duration", duration)
			}
			return fmt.Errorf("check due tasks: %w", err)
		}

		log.InfoContext(ctx, report.Message, "status", report.Status, "failed", len(report.Failed()), "duration", duration)
		return nil
	}
}
