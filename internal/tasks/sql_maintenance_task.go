package tasks

import (
	"context"
	"fmt"
	"time"
)

// maintenanceTimeout bounds one VACUUM run so a stuck run can't hold the
// single SQLite connection until the next trigger.
const maintenanceTimeout = 10 * time.Minute

// newSQLMaintenanceTask vacuums the database. It skips the run when the
// database does not answer a ping.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", SQLMaintenance)

	return func(ctx context.Context) error {
		if err := deps.Store.Ping(ctx); err != nil {
			log.WarnContext(ctx, "Database unreachable, skipping maintenance", "error", err)
			return fmt.Errorf("sql maintenance skipped: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, maintenanceTimeout)
		defer cancel()

		started := time.Now()
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(started))
			return fmt.Errorf("sql maintenance: %w", err)
		}

		log.InfoContext(ctx, "SQL maintenance completed", "duration", time.Since(started))
		return nil
	}
}
