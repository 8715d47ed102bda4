package database

import (
	"strings"
	"time"
)

// Category groups a tenant's tasks. Names are unique per tenant.
type Category struct {
	ID         string    `db:"id"`
	TelegramID int64     `db:"telegram_id"`
	Name       string    `db:"name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Task is a tenant's to-do item. Optional fields are pointers; a nil
// CategoryID or DueDate means the task has none.
type Task struct {
	ID          string     `db:"id"`
	TelegramID  int64      `db:"telegram_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	CategoryID  *string    `db:"category_id"`
	DueDate     *time.Time `db:"due_date"`
	IsCompleted bool       `db:"is_completed"`

	// NotificationSent only ever goes from false to true, after a due-date
	// notification was delivered.
	NotificationSent bool `db:"notification_sent"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	// CategoryName is read through a join and ignored on writes.
	CategoryName *string `db:"category_name"`
}

// HasDescription reports whether the task carries a non-blank description.
func (t *Task) HasDescription() bool {
	return strings.TrimSpace(t.Description) != ""
}

// TaskFilter narrows ListTasks. Zero values do not filter.
type TaskFilter struct {
	IsCompleted *bool
	CategoryID  string
}

// PeriodicTask registers a named task to run on a fixed interval.
type PeriodicTask struct {
	Name            string    `db:"name"`
	Task            string    `db:"task"`
	IntervalSeconds int64     `db:"interval_seconds"`
	Enabled         bool      `db:"enabled"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Interval returns the run interval as a duration.
func (p PeriodicTask) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// Admin is an administrative account.
type Admin struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}
