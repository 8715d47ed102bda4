package api

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/edgard/todobot/internal/database"
)

// Field limits enforced on writes.
const (
	MaxTitleLength        = 255
	MaxCategoryNameLength = 100
)

// CategoryRef is the category embedded in a task detail.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskResponse is the full representation of a task.
type TaskResponse struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	TelegramID       int64        `json:"telegram_id"`
	Category         *CategoryRef `json:"category"`
	DueDate          *time.Time   `json:"due_date"`
	IsCompleted      bool         `json:"is_completed"`
	NotificationSent bool         `json:"notification_sent"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// TaskListItem is the compact representation used by task lists.
type TaskListItem struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	CategoryName *string    `json:"category_name"`
	DueDate      *time.Time `json:"due_date"`
	IsCompleted  bool       `json:"is_completed"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CategoryResponse is the representation of a category.
type CategoryResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TelegramID int64     `json:"telegram_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateTaskRequest is the body of POST /tasks. Category is a category id.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=255"`
	Description string     `json:"description"`
	Category    *string    `json:"category"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTaskRequest is the body of PUT /tasks/{id}. Title is required;
// absent optional fields keep their stored values.
type UpdateTaskRequest struct {
	Title       string              `json:"title"`
	Description Optional[string]    `json:"description,omitzero"`
	Category    Optional[string]    `json:"category,omitzero"`
	DueDate     Optional[time.Time] `json:"due_date,omitzero"`
	IsCompleted Optional[bool]      `json:"is_completed,omitzero"`
}

// Validate requires a title and applies the PATCH rules to the rest.
func (u UpdateTaskRequest) Validate() error {
	if u.Title == "" {
		return &fieldError{Field: "title", Reason: "is required"}
	}
	return u.patch().Validate()
}

func (u UpdateTaskRequest) patch() PatchTaskRequest {
	return PatchTaskRequest{
		Title:       Some(u.Title),
		Description: u.Description,
		Category:    u.Category,
		DueDate:     u.DueDate,
		IsCompleted: u.IsCompleted,
	}
}

// PatchTaskRequest is the body of PATCH /tasks/{id}. Only present fields are
// applied; category and due_date may be set to null to clear them.
type PatchTaskRequest struct {
	Title       Optional[string]    `json:"title,omitzero"`
	Description Optional[string]    `json:"description,omitzero"`
	Category    Optional[string]    `json:"category,omitzero"`
	DueDate     Optional[time.Time] `json:"due_date,omitzero"`
	IsCompleted Optional[bool]      `json:"is_completed,omitzero"`
}

// Validate rejects nulls on non-nullable fields and oversized titles.
func (p PatchTaskRequest) Validate() error {
	if p.Title.Set {
		if p.Title.Null || p.Title.Value == "" {
			return &fieldError{Field: "title", Reason: "may not be blank"}
		}
		if utf8.RuneCountInString(p.Title.Value) > MaxTitleLength {
			return &fieldError{Field: "title", Reason: fmt.Sprintf("must be at most %d characters", MaxTitleLength)}
		}
	}
	if p.IsCompleted.Set && p.IsCompleted.Null {
		return &fieldError{Field: "is_completed", Reason: "may not be null"}
	}
	return nil
}

// apply merges the present fields into task.
func (p PatchTaskRequest) apply(task *database.Task) {
	if p.Title.Set {
		task.Title = p.Title.Value
	}
	if p.Description.Set {
		task.Description = p.Description.Value
	}
	if p.Category.Set {
		task.CategoryID = p.Category.Ptr()
	}
	if p.DueDate.Set {
		task.DueDate = p.DueDate.Ptr()
	}
	if p.IsCompleted.Set {
		task.IsCompleted = p.IsCompleted.Value
	}
}

// CategoryRequest is the body of category create and rename.
type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func newTaskResponse(task *database.Task) TaskResponse {
	resp := TaskResponse{
		ID:               task.ID,
		Title:            task.Title,
		Description:      task.Description,
		TelegramID:       task.TelegramID,
		DueDate:          task.DueDate,
		IsCompleted:      task.IsCompleted,
		NotificationSent: task.NotificationSent,
		CreatedAt:        task.CreatedAt,
		UpdatedAt:        task.UpdatedAt,
	}
	if task.CategoryID != nil && task.CategoryName != nil {
		resp.Category = &CategoryRef{ID: *task.CategoryID, Name: *task.CategoryName}
	}
	return resp
}

func newTaskListItem(task *database.Task) TaskListItem {
	return TaskListItem{
		ID:           task.ID,
		Title:        task.Title,
		CategoryName: task.CategoryName,
		DueDate:      task.DueDate,
		IsCompleted:  task.IsCompleted,
		CreatedAt:    task.CreatedAt,
	}
}

func newCategoryResponse(category *database.Category) CategoryResponse {
	return CategoryResponse{
		ID:         category.ID,
		Name:       category.Name,
		TelegramID: category.TelegramID,
		CreatedAt:  category.CreatedAt,
		UpdatedAt:  category.UpdatedAt,
	}
}
