// Package notify delivers due-date reminders for tasks to their owners over
// Telegram. A run selects every due task, sends one message per task and
// marks each delivered task so it is never reminded twice.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/logger"
)

// ErrNotConfigured is returned when no bot token is available.
var ErrNotConfigured = errors.New("bot token not configured")

const defaultSendTimeout = 10 * time.Second

// TaskSource is the part of the store the notification pipeline reads and
// writes. It is tenant-agnostic.
type TaskSource interface {
	SelectDueTasks(ctx context.Context, now time.Time) ([]database.Task, error)
	GetNotificationTask(ctx context.Context, id string) (*database.Task, error)
	MarkTaskNotified(ctx context.Context, id string) error
}

// Channel delivers a single HTML message to a Telegram chat.
type Channel interface {
	Send(ctx context.Context, chatID int64, text string) error
	Close() error
}

// ChannelOpener acquires a Channel for the duration of one run.
type ChannelOpener interface {
	Open(token string) (Channel, error)
}

// Status summarizes a periodic run.
type Status string

const (
	StatusNoDueTasks    Status = "no_due_tasks"
	StatusNotConfigured Status = "not_configured"
	StatusCompleted     Status = "completed"
)

// TaskResult records what happened to one task during a run.
type TaskResult struct {
	TaskID     string
	TelegramID int64
	Err        error
}

// RunReport is returned by CheckDueTasks.
type RunReport struct {
	Status  Status
	Message string
	// Sent counts tasks that were delivered and marked.
	Sent    int
	Results []TaskResult
}

// Failed returns the results that carry an error.
func (r *RunReport) Failed() []TaskResult {
	var failed []TaskResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// OutcomeStatus is the result class of an immediate notification.
type OutcomeStatus string

const (
	OutcomeSent          OutcomeStatus = "sent"
	OutcomeNotFound      OutcomeStatus = "not_found"
	OutcomeNotConfigured OutcomeStatus = "not_configured"
	OutcomeFailed        OutcomeStatus = "failed"
)

// Outcome is returned by NotifyTask.
type Outcome struct {
	Status  OutcomeStatus `json:"status"`
	Message string        `json:"message"`
}

// Config holds the delivery settings of a Service.
type Config struct {
	BotToken      string
	SendTimeout   time.Duration
	RatePerSecond int
	Location      *time.Location
}

// Service runs due-date notifications.
type Service struct {
	logger  *slog.Logger
	source  TaskSource
	opener  ChannelOpener
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time
}

// NewService creates a notification service. Zero values in cfg fall back
// to a 10s send timeout, no rate limit and UTC.
func NewService(log *slog.Logger, source TaskSource, opener ChannelOpener, cfg Config) *Service {
	if log == nil {
		log = logger.Discard()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RatePerSecond)
	}

	return &Service{
		logger:  log.With("component", "notifier"),
		source:  source,
		opener:  opener,
		cfg:     cfg,
		limiter: limiter,
		now:     time.Now,
	}
}

// CheckDueTasks notifies the owner of every task that is due, open and not
// yet notified. Tasks are processed one at a time; a failure on one task is
// recorded and the run moves on. Only tasks that were both delivered and
// marked count as sent.
func (s *Service) CheckDueTasks(ctx context.Context) (*RunReport, error) {
	due, err := s.source.SelectDueTasks(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to select due tasks: %w", err)
	}
	if len(due) == 0 {
		s.logger.DebugContext(ctx, "No due tasks")
		return &RunReport{Status: StatusNoDueTasks, Message: "No due tasks"}, nil
	}

	if s.cfg.BotToken == "" {
		s.logger.ErrorContext(ctx, "Bot token not configured, skipping notification run", "due_tasks", len(due))
		return &RunReport{Status: StatusNotConfigured, Message: "Bot token not configured"}, ErrNotConfigured
	}

	ch, err := s.opener.Open(s.cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open delivery channel: %w", err)
	}
	defer s.closeChannel(ctx, ch)

	s.logger.InfoContext(ctx, "Sending due task notifications", "due_tasks", len(due))

	results := make([]TaskResult, 0, len(due))
	var runErr error
	for i := range due {
		task := &due[i]
		if err := s.limiter.Wait(ctx); err != nil {
			runErr = err
			break
		}
		results = append(results, TaskResult{
			TaskID:     task.ID,
			TelegramID: task.TelegramID,
			Err:        s.deliver(ctx, ch, task),
		})
	}

	report := &RunReport{Status: StatusCompleted, Results: results}
	for _, res := range results {
		if res.Err != nil {
			s.logger.ErrorContext(ctx, "Failed to notify task", "task_id", res.TaskID, "telegram_id", res.TelegramID, "error", res.Err)
			continue
		}
		report.Sent++
	}
	report.Message = fmt.Sprintf("Sent %d notifications", report.Sent)

	if runErr != nil {
		s.logger.WarnContext(ctx, "Notification run interrupted", "sent", report.Sent, "remaining", len(due)-len(results), "error", runErr)
		return report, fmt.Errorf("notification run interrupted: %w", runErr)
	}

	s.logger.InfoContext(ctx, "Notification run finished", "sent", report.Sent, "failed", len(results)-report.Sent)
	return report, nil
}

// NotifyTask sends the reminder for one task right away, whatever its due
// state, and marks it notified on success. It does not retry.
func (s *Service) NotifyTask(ctx context.Context, id string) Outcome {
	task, err := s.source.GetNotificationTask(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return Outcome{Status: OutcomeNotFound, Message: fmt.Sprintf("Task %s not found", id)}
	}
	if err != nil {
		return s.failed(ctx, id, err)
	}

	if s.cfg.BotToken == "" {
		s.logger.ErrorContext(ctx, "Bot token not configured, cannot send notification", "task_id", id)
		return Outcome{Status: OutcomeNotConfigured, Message: "Bot token not configured"}
	}

	ch, err := s.opener.Open(s.cfg.BotToken)
	if err != nil {
		return s.failed(ctx, id, err)
	}
	defer s.closeChannel(ctx, ch)

	if err := s.deliver(ctx, ch, task); err != nil {
		return s.failed(ctx, id, err)
	}

	s.logger.InfoContext(ctx, "Immediate notification sent", "task_id", id, "telegram_id", task.TelegramID)
	return Outcome{Status: OutcomeSent, Message: fmt.Sprintf("Notification sent for task %s", id)}
}

// deliver sends the rendered reminder and marks the task. A mark failure
// leaves the task eligible for the next run.
func (s *Service) deliver(ctx context.Context, ch Channel, task *database.Task) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := ch.Send(sendCtx, task.TelegramID, RenderMessage(task, s.cfg.Location)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	if err := s.source.MarkTaskNotified(ctx, task.ID); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

func (s *Service) failed(ctx context.Context, id string, err error) Outcome {
	s.logger.ErrorContext(ctx, "Immediate notification failed", "task_id", id, "error", err)
	return Outcome{Status: OutcomeFailed, Message: fmt.Sprintf("Failed: %v", err)}
}

func (s *Service) closeChannel(ctx context.Context, ch Channel) {
	if err := ch.Close(); err != nil {
		s.logger.WarnContext(ctx, "Error closing delivery channel", "error", err)
	}
}
