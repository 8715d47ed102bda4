package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/edgard/todobot/internal/logger"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the requesting tenant.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("already exists")
	// ErrInvalidCategory is returned when a task references a category the
	// tenant does not own.
	ErrInvalidCategory = errors.New("category does not belong to this user")
	// ErrInvalidInput is returned for writes missing required values.
	ErrInvalidInput = errors.New("invalid input")
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts. Every task
// and category method taking a telegramID filters by it.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	ListCategories(ctx context.Context, telegramID int64) ([]Category, error)
	GetCategory(ctx context.Context, telegramID int64, id string) (*Category, error)
	CreateCategory(ctx context.Context, category *Category) error
	RenameCategory(ctx context.Context, telegramID int64, id, name string) (*Category, error)
	DeleteCategory(ctx context.Context, telegramID int64, id string) error

	ListTasks(ctx context.Context, telegramID int64, filter TaskFilter) ([]Task, error)
	GetTask(ctx context.Context, telegramID int64, id string) (*Task, error)
	CreateTask(ctx context.Context, task *Task) error
	// UpdateTask writes the editable fields of task. NotificationSent is
	// never written here.
	UpdateTask(ctx context.Context, task *Task) error
	SetTaskCompleted(ctx context.Context, telegramID int64, id string, completed bool) (*Task, error)
	DeleteTask(ctx context.Context, telegramID int64, id string) error

	// SelectDueTasks returns tasks with a due date at or before now that are
	// neither completed nor notified, across all tenants.
	SelectDueTasks(ctx context.Context, now time.Time) ([]Task, error)
	// GetNotificationTask loads a task by id regardless of tenant.
	GetNotificationTask(ctx context.Context, id string) (*Task, error)
	// MarkTaskNotified sets notification_sent and updated_at for one task in
	// its own statement.
	MarkTaskNotified(ctx context.Context, id string) error

	// UpsertPeriodicTask creates or updates a trigger by name and reports
	// whether it was created.
	UpsertPeriodicTask(ctx context.Context, task *PeriodicTask) (bool, error)
	ListPeriodicTasks(ctx context.Context) ([]PeriodicTask, error)

	// CreateAdmin inserts an admin account, returning ErrConflict if the
	// username is taken.
	CreateAdmin(ctx context.Context, admin *Admin) error
	GetAdmin(ctx context.Context, username string) (*Admin, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, log *slog.Logger) Store {
	if log == nil {
		log = logger.Discard()
	}
	return &sqlxStore{
		db:     db,
		logger: log.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance refreshes planner statistics and executes VACUUM.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case isContextErr(err):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

// withTx runs fn in a transaction, rolling back unless fn succeeds and the
// commit goes through.
func (s *sqlxStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// requireOneRow maps a zero-row UPDATE/DELETE to ErrNotFound.
func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
