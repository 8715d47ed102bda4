package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/edgard/todobot/internal/database"
	"github.com/edgard/todobot/internal/notify"
)

// TaskHandler serves /api/v1/tasks.
type TaskHandler struct {
	store    database.Store
	notifier TaskNotifier
	logger   *slog.Logger
}

// List returns the tenant's tasks. Without a tenant the list is empty.
// Filters: is_completed (true or anything else for false) and category.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithJSON(w, http.StatusOK, []TaskListItem{})
		return
	}

	var filter database.TaskFilter
	if raw, present := r.URL.Query()["is_completed"]; present && len(raw) > 0 {
		completed := strings.EqualFold(raw[0], "true")
		filter.IsCompleted = &completed
	}
	filter.CategoryID = r.URL.Query().Get("category")

	tasks, err := h.store.ListTasks(r.Context(), tid, filter)
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	items := make([]TaskListItem, 0, len(tasks))
	for i := range tasks {
		items = append(items, newTaskListItem(&tasks[i]))
	}
	respondWithJSON(w, http.StatusOK, items)
}

// Create adds a task for the tenant.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithError(w, r, http.StatusBadRequest, TelegramIDHeader+" header is required")
		return
	}

	var req CreateTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	task := &database.Task{
		TelegramID:  tid,
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.Category,
		DueDate:     req.DueDate,
	}
	if err := h.store.CreateTask(r.Context(), task); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Task created", "telegram_id", tid, "task_id", task.ID)
	respondWithJSON(w, http.StatusCreated, newTaskResponse(task))
}

// Get returns one task of the tenant.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newTaskResponse(task))
}

// Update replaces the title and the optional fields present in the body.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	req.patch().apply(task)
	h.save(w, r, task)
}

// Patch applies the fields present in the body.
func (h *TaskHandler) Patch(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req PatchTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}

	req.apply(task)
	h.save(w, r, task)
}

func (h *TaskHandler) save(w http.ResponseWriter, r *http.Request, task *database.Task) {
	if err := h.store.UpdateTask(r.Context(), task); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newTaskResponse(task))
}

// Delete removes a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return
	}
	if err := h.store.DeleteTask(r.Context(), tid, chi.URLParam(r, "id")); err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Complete marks a task completed.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, true)
}

// Uncomplete reopens a task.
func (h *TaskHandler) Uncomplete(w http.ResponseWriter, r *http.Request) {
	h.setCompleted(w, r, false)
}

func (h *TaskHandler) setCompleted(w http.ResponseWriter, r *http.Request, completed bool) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return
	}
	task, err := h.store.SetTaskCompleted(r.Context(), tid, chi.URLParam(r, "id"), completed)
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newTaskResponse(task))
}

// Notify sends the task's reminder now. The body is the notification
// outcome; the status code reflects it.
func (h *TaskHandler) Notify(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	outcome := h.notifier.NotifyTask(r.Context(), task.ID)

	status := http.StatusOK
	switch outcome.Status {
	case notify.OutcomeNotFound:
		status = http.StatusNotFound
	case notify.OutcomeNotConfigured:
		status = http.StatusServiceUnavailable
	case notify.OutcomeFailed:
		status = http.StatusBadGateway
	}
	respondWithJSON(w, status, outcome)
}

// loadTask resolves the {id} task for the tenant, writing a 404 if it is
// not visible.
func (h *TaskHandler) loadTask(w http.ResponseWriter, r *http.Request) (*database.Task, bool) {
	tid, ok := telegramID(r)
	if !ok {
		respondWithErrorAndLog(w, r, h.logger, database.ErrNotFound)
		return nil, false
	}
	task, err := h.store.GetTask(r.Context(), tid, chi.URLParam(r, "id"))
	if err != nil {
		respondWithErrorAndLog(w, r, h.logger, err)
		return nil, false
	}
	return task, true
}
