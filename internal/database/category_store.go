package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const categoryColumns = `id, telegram_id, name, created_at, updated_at`

// ListCategories returns the tenant's categories ordered by name.
func (s *sqlxStore) ListCategories(ctx context.Context, telegramID int64) ([]Category, error) {
	categories := []Category{}
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE telegram_id = ? ORDER BY name`

	if err := s.db.SelectContext(ctx, &categories, query, telegramID); err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error listing categories", "telegram_id", telegramID, "error", err)
		return nil, fmt.Errorf("failed to list categories for user %d: %w", telegramID, err)
	}
	return categories, nil
}

// GetCategory returns one of the tenant's categories.
func (s *sqlxStore) GetCategory(ctx context.Context, telegramID int64, id string) (*Category, error) {
	var category Category
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ? AND telegram_id = ?`

	err := s.db.GetContext(ctx, &category, query, id, telegramID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case isContextErr(err):
		return nil, err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting category", "telegram_id", telegramID, "category_id", id, "error", err)
		return nil, fmt.Errorf("failed to get category %s: %w", id, err)
	}
	return &category, nil
}

// CreateCategory inserts category, assigning its id and timestamps.
func (s *sqlxStore) CreateCategory(ctx context.Context, category *Category) error {
	if category == nil {
		return fmt.Errorf("%w: cannot save nil category", ErrInvalidInput)
	}
	category.Name = strings.TrimSpace(category.Name)
	if category.TelegramID == 0 {
		return fmt.Errorf("%w: category must have a non-zero telegram_id", ErrInvalidInput)
	}
	if category.Name == "" {
		return fmt.Errorf("%w: category name cannot be empty", ErrInvalidInput)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate category id: %w", err)
	}
	now := s.now()
	category.ID = id.String()
	category.CreatedAt = now
	category.UpdatedAt = now

	query := `INSERT INTO categories (` + categoryColumns + `)
	          VALUES (:id, :telegram_id, :name, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, category); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", category.Name, ErrConflict)
		}
		s.logger.ErrorContext(ctx, "Error creating category", "telegram_id", category.TelegramID, "error", err)
		return fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.DebugContext(ctx, "Category created", "telegram_id", category.TelegramID, "category_id", category.ID)
	return nil
}

// RenameCategory changes the name of one of the tenant's categories.
func (s *sqlxStore) RenameCategory(ctx context.Context, telegramID int64, id, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name cannot be empty", ErrInvalidInput)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, updated_at = ? WHERE id = ? AND telegram_id = ?`,
		name, s.now(), id, telegramID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q: %w", name, ErrConflict)
		}
		s.logger.ErrorContext(ctx, "Error renaming category", "telegram_id", telegramID, "category_id", id, "error", err)
		return nil, fmt.Errorf("failed to rename category %s: %w", id, err)
	}
	if err := requireOneRow(result); err != nil {
		return nil, err
	}

	return s.GetCategory(ctx, telegramID, id)
}

// DeleteCategory removes one of the tenant's categories. Tasks referencing
// it keep existing without a category.
func (s *sqlxStore) DeleteCategory(ctx context.Context, telegramID int64, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND telegram_id = ?`, id, telegramID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting category", "telegram_id", telegramID, "category_id", id, "error", err)
		return fmt.Errorf("failed to delete category %s: %w", id, err)
	}
	return requireOneRow(result)
}
