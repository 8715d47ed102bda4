// Package scheduler runs the periodic tasks registered in the database with
// gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/todobot/internal/config"
	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/tasks"
)

// PeriodicTaskLister loads the trigger registry.
type PeriodicTaskLister interface {
	ListPeriodicTasks(ctx context.Context) ([]database.PeriodicTask, error)
}

// Scheduler manages scheduled tasks using the gocron library.
//
// Jobs are not run in singleton mode: if a run outlasts its interval, the
// next run starts alongside it.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       config.SchedulerConfig
	registry  PeriodicTaskLister
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(logger *slog.Logger, cfg config.SchedulerConfig, registry PeriodicTaskLister, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler(gocron.WithLogger(newGocronLogger(logger)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		registry:  registry,
		taskMap:   taskMap,
	}, nil
}

// Start loads the enabled triggers, schedules one job per trigger and starts
// the scheduler. When no trigger runs check_due_tasks and a fallback
// interval is configured, check_due_tasks is scheduled at that interval.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	rows, err := s.registry.ListPeriodicTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load periodic tasks: %w", err)
	}

	scheduledCount := 0
	checksDue := false
	for _, row := range rows {
		if !row.Enabled {
			s.logger.Info("Skipping disabled task", "name", row.Name, "task", row.Task)
			continue
		}
		if err := s.schedule(ctx, row.Name, row.Task, row.Interval()); err != nil {
			s.logger.Warn("Failed to schedule task, skipping", "name", row.Name, "task", row.Task, "error", err)
			continue
		}
		scheduledCount++
		if row.Task == tasks.CheckDueTasks {
			checksDue = true
		}
	}

	if !checksDue && s.cfg.FallbackInterval > 0 {
		if err := s.schedule(ctx, "fallback "+tasks.CheckDueTasks, tasks.CheckDueTasks, s.cfg.FallbackInterval); err != nil {
			return fmt.Errorf("failed to schedule fallback due task check: %w", err)
		}
		s.logger.Info("No registered due task check, using fallback interval", "interval", s.cfg.FallbackInterval)
		scheduledCount++
	}

	if scheduledCount == 0 {
		s.logger.Warn("No scheduler tasks configured.")
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount, "jobs", s.jobNames())
	return nil
}

func (s *Scheduler) schedule(ctx context.Context, name, taskName string, interval time.Duration) error {
	taskFunc, exists := s.taskMap[taskName]
	if !exists {
		return fmt.Errorf("task %q not found in registry", taskName)
	}
	if interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", interval)
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(
			func(ctx context.Context, name string) {
				s.logger.Info("Running scheduled task", "name", name, "task", taskName)
				startTime := time.Now()
				if taskErr := taskFunc(ctx); taskErr != nil {
					s.logger.Error("Scheduled task failed", "name", name, "task", taskName, "error", taskErr)
				}
				s.logger.Info("Finished scheduled task", "name", name, "duration", time.Since(startTime))
			},
			ctx,
			name,
		),
		gocron.WithName(name),
	)
	if err != nil {
		return err
	}

	s.logger.Info("Scheduled task", "name", name, "task", taskName, "interval", interval)
	return nil
}

// jobNames returns the names of the scheduled jobs, sorted.
func (s *Scheduler) jobNames() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, job := range jobs {
		names = append(names, job.Name())
	}
	sort.Strings(names)
	return names
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}
