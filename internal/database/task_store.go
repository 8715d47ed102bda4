package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const taskSelect = `
	SELECT t.id, t.telegram_id, t.title, t.description, t.category_id, c.name AS category_name,
	       t.due_date, t.is_completed, t.notification_sent, t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN categories c ON c.id = t.category_id`

// ListTasks returns the tenant's tasks, newest first.
func (s *sqlxStore) ListTasks(ctx context.Context, telegramID int64, filter TaskFilter) ([]Task, error) {
	var (
		where = []string{"t.telegram_id = ?"}
		args  = []any{telegramID}
	)
	if filter.IsCompleted != nil {
		where = append(where, "t.is_completed = ?")
		args = append(args, *filter.IsCompleted)
	}
	if filter.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, filter.CategoryID)
	}

	query := taskSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY t.created_at DESC, t.id DESC`

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error listing tasks", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to list tasks for user %d: %w", telegramID, err)
	}
	return tasks, nil
}

// GetTask returns one of the tenant's tasks.
func (s *sqlxStore) GetTask(ctx context.Context, telegramID int64, id string) (*Task, error) {
	return s.getTask(ctx, s.db, taskSelect+` WHERE t.id = ? AND t.telegram_id = ?`, id, telegramID)
}

// GetNotificationTask loads a task by id for the notification pipeline,
// which is not bound to a tenant.
func (s *sqlxStore) GetNotificationTask(ctx context.Context, id string) (*Task, error) {
	return s.getTask(ctx, s.db, taskSelect+` WHERE t.id = ?`, id)
}

func (s *sqlxStore) getTask(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*Task, error) {
	var task Task
	err := sqlx.GetContext(ctx, q, &task, query, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting task", "args", args, "error", err)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// CreateTask inserts task, assigning its id and timestamps. A referenced
// category must belong to the same tenant.
func (s *sqlxStore) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: cannot save nil task", ErrInvalidInput)
	}
	if err := validateTask(task); err != nil {
		return err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate task id: %w", err)
	}
	now := s.now()
	task.ID = id.String()
	task.CreatedAt = now
	task.UpdatedAt = now
	task.NotificationSent = false
	task.DueDate = utcPtr(task.DueDate)

	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		name, err := s.ownedCategoryName(ctx, tx, task.TelegramID, task.CategoryID)
		if err != nil {
			return err
		}
		task.CategoryName = name

		query := `
			INSERT INTO tasks (
				id, telegram_id, title, description, category_id, due_date,
				is_completed, notification_sent, created_at, updated_at
			) VALUES (
				:id, :telegram_id, :title, :description, :category_id, :due_date,
				:is_completed, :notification_sent, :created_at, :updated_at
			)`
		if _, err := tx.NamedExecContext(ctx, query, task); err != nil {
			return fmt.Errorf("failed to insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrInvalidCategory) {
			s.logger.ErrorContext(ctx, "Error creating task", "telegram_id", task.TelegramID, "error", err)
		}
		return err
	}

	s.logger.DebugContext(ctx, "Task created", "telegram_id", task.TelegramID, "task_id", task.ID)
	return nil
}

// UpdateTask writes title, description, category, due date and completion.
func (s *sqlxStore) UpdateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return fmt.Errorf("%w: cannot save nil task", ErrInvalidInput)
	}
	if err := validateTask(task); err != nil {
		return err
	}

	task.UpdatedAt = s.now()
	task.DueDate = utcPtr(task.DueDate)

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		name, err := s.ownedCategoryName(ctx, tx, task.TelegramID, task.CategoryID)
		if err != nil {
			return err
		}
		task.CategoryName = name

		query := `
			UPDATE tasks SET
				title = :title,
				description = :description,
				category_id = :category_id,
				due_date = :due_date,
				is_completed = :is_completed,
				updated_at = :updated_at
			WHERE id = :id AND telegram_id = :telegram_id`
		result, err := tx.NamedExecContext(ctx, query, task)
		if err != nil {
			return fmt.Errorf("failed to update task %s: %w", task.ID, err)
		}
		return requireOneRow(result)
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidCategory) {
			s.logger.ErrorContext(ctx, "Error updating task", "task_id", task.ID, "error", err)
		}
		return err
	}

	fresh, err := s.GetTask(ctx, task.TelegramID, task.ID)
	if err != nil {
		return err
	}
	*task = *fresh
	return nil
}

// SetTaskCompleted flips the completion flag and returns the updated task.
func (s *sqlxStore) SetTaskCompleted(ctx context.Context, telegramID int64, id string, completed bool) (*Task, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET is_completed = ?, updated_at = ? WHERE id = ? AND telegram_id = ?`,
		completed, s.now(), id, telegramID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error setting task completion", "task_id", id, "error", err)
		return nil, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if err := requireOneRow(result); err != nil {
		return nil, err
	}
	return s.GetTask(ctx, telegramID, id)
}

// DeleteTask removes one of the tenant's tasks.
func (s *sqlxStore) DeleteTask(ctx context.Context, telegramID int64, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND telegram_id = ?`, id, telegramID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting task", "task_id", id, "error", err)
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return requireOneRow(result)
}

// SelectDueTasks returns every task due at or before now that is still open
// and has not been notified. Tasks without a due date never match.
func (s *sqlxStore) SelectDueTasks(ctx context.Context, now time.Time) ([]Task, error) {
	query := taskSelect + `
		WHERE t.due_date IS NOT NULL
		  AND t.due_date <= ?
		  AND t.is_completed = 0
		  AND t.notification_sent = 0`

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, query, now.UTC()); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error selecting due tasks", "now", now, "error", err)
		return nil, fmt.Errorf("failed to select due tasks: %w", err)
	}
	return tasks, nil
}

// MarkTaskNotified sets notification_sent for a single task. Only the flag
// and updated_at are written so concurrent edits of other fields survive.
func (s *sqlxStore) MarkTaskNotified(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET notification_sent = 1, updated_at = ? WHERE id = ?`, s.now(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking task notified", "task_id", id, "error", err)
		return fmt.Errorf("failed to mark task %s notified: %w", id, err)
	}
	return requireOneRow(result)
}

// ownedCategoryName checks that categoryID (if any) belongs to telegramID
// and returns its name.
func (s *sqlxStore) ownedCategoryName(ctx context.Context, tx *sqlx.Tx, telegramID int64, categoryID *string) (*string, error) {
	if categoryID == nil {
		return nil, nil
	}
	var name string
	err := tx.GetContext(ctx, &name,
		`SELECT name FROM categories WHERE id = ? AND telegram_id = ?`, *categoryID, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCategory
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check category %s: %w", *categoryID, err)
	}
	return &name, nil
}

func validateTask(task *Task) error {
	task.Title = strings.TrimSpace(task.Title)
	if task.TelegramID == 0 {
		return fmt.Errorf("%w: task must have a non-zero telegram_id", ErrInvalidInput)
	}
	if task.Title == "" {
		return fmt.Errorf("%w: task title cannot be empty", ErrInvalidInput)
	}
	if task.CategoryID != nil && *task.CategoryID == "" {
		task.CategoryID = nil
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
