package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// UpsertPeriodicTask creates or updates a trigger identified by its name.
// Registering the same name twice updates the existing row.
func (s *sqlxStore) UpsertPeriodicTask(ctx context.Context, task *PeriodicTask) (bool, error) {
	if task == nil || task.Name == "" || task.Task == "" {
		return false, fmt.Errorf("%w: periodic task needs a name and a task", ErrInvalidInput)
	}
	if task.IntervalSeconds <= 0 {
		return false, fmt.Errorf("%w: periodic task interval must be positive", ErrInvalidInput)
	}

	now := s.now()
	task.UpdatedAt = now

	var created bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var existing PeriodicTask
		err := tx.GetContext(ctx, &existing,
			`SELECT name, task, interval_seconds, enabled, created_at, updated_at FROM periodic_tasks WHERE name = ?`,
			task.Name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			task.CreatedAt = now
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO periodic_tasks (name, task, interval_seconds, enabled, created_at, updated_at)
				VALUES (:name, :task, :interval_seconds, :enabled, :created_at, :updated_at)`, task)
		case err != nil:
			return fmt.Errorf("failed to look up periodic task %q: %w", task.Name, err)
		default:
			task.CreatedAt = existing.CreatedAt
			_, err = tx.NamedExecContext(ctx, `
				UPDATE periodic_tasks SET
					task = :task,
					interval_seconds = :interval_seconds,
					enabled = :enabled,
					updated_at = :updated_at
				WHERE name = :name`, task)
		}
		if err != nil {
			return fmt.Errorf("failed to save periodic task %q: %w", task.Name, err)
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving periodic task", "name", task.Name, "error", err)
		return false, err
	}

	s.logger.InfoContext(ctx, "Periodic task saved", "name", task.Name, "task", task.Task, "created", created)
	return created, nil
}

// ListPeriodicTasks returns all registered triggers ordered by name.
func (s *sqlxStore) ListPeriodicTasks(ctx context.Context) ([]PeriodicTask, error) {
	tasks := []PeriodicTask{}
	err := s.db.SelectContext(ctx, &tasks,
		`SELECT name, task, interval_seconds, enabled, created_at, updated_at FROM periodic_tasks ORDER BY name`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing periodic tasks", "error", err)
		return nil, fmt.Errorf("failed to list periodic tasks: %w", err)
	}
	return tasks, nil
}

// CreateAdmin inserts an admin account.
func (s *sqlxStore) CreateAdmin(ctx context.Context, admin *Admin) error {
	if admin == nil || strings.TrimSpace(admin.Username) == "" || admin.PasswordHash == "" {
		return fmt.Errorf("%w: admin needs a username and a password hash", ErrInvalidInput)
	}
	admin.CreatedAt = s.now()

	result, err := s.db.NamedExecContext(ctx, `
		INSERT INTO admins (username, email, password_hash, created_at)
		VALUES (:username, :email, :password_hash, :created_at)`, admin)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("admin %q: %w", admin.Username, ErrConflict)
		}
		return fmt.Errorf("failed to create admin %q: %w", admin.Username, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		admin.ID = id
	}
	return nil
}

// GetAdmin returns the admin account with the given username.
func (s *sqlxStore) GetAdmin(ctx context.Context, username string) (*Admin, error) {
	var admin Admin
	err := s.db.GetContext(ctx, &admin,
		`SELECT id, username, email, password_hash, created_at FROM admins WHERE username = ?`, username)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get admin %q: %w", username, err)
	}
	return &admin, nil
}
