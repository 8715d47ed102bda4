// Package dialog implements the Telegram conversation: menus, the task list
// and detail screens, and the multi-step task creation dialog. It is
// transport-neutral; the bot layer renders Responses into Telegram messages.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/todobot/internal/api"
	"github.com/edgard/todobot/internal/apiclient"
	"github.com/edgard/todobot/internal/notify"
)

// API is the part of the backend client the dialog needs.
type API interface {
	ListTasks(ctx context.Context, telegramID int64, filter apiclient.TaskFilter) ([]api.TaskListItem, error)
	GetTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error)
	CreateTask(ctx context.Context, telegramID int64, req api.CreateTaskRequest) (*api.TaskResponse, error)
	CompleteTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error)
	UncompleteTask(ctx context.Context, telegramID int64, id string) (*api.TaskResponse, error)
	NotifyTask(ctx context.Context, telegramID int64, id string) (*notify.Outcome, error)
	DeleteTask(ctx context.Context, telegramID int64, id string) error
	ListCategories(ctx context.Context, telegramID int64) ([]api.CategoryResponse, error)
	CreateCategory(ctx context.Context, telegramID int64, name string) (*api.CategoryResponse, error)
}

// Response is what the bot shows after one update. Notice is a short plain
// text toast (callback answer, or a message for text updates). Messages are
// HTML and are sent before View.
type Response struct {
	Notice   string
	Messages []string
	View     *View
}

// User-facing texts.
const (
	NoticeTaskCreated   = "✅ Задача создана!"
	NoticeTaskCompleted = "✅ Задача выполнена!"
	NoticeTaskReopened  = "↩️ Задача возвращена в работу"
	NoticeReminderSent  = "🔔 Напоминание отправлено"
	NoticeNoNotifier    = "Ошибка: уведомления не настроены"
	NoticeReminderError = "Ошибка: не удалось отправить напоминание"
	NoticeTaskDeleted   = "🗑 Задача удалена!"
	NoticeCancelled     = "❌ Создание задачи отменено"
	NoticeTaskMissing   = "Задача не найдена"

	MessageInvalidDate     = "❌ Неверный формат даты. Используйте: ДД.ММ.ГГГГ или ДД.ММ.ГГГГ ЧЧ:ММ"
	MessageEmptyTitle      = "❌ Название не может быть пустым."
	MessageTitleTooLong    = "❌ Название слишком длинное (максимум 255 символов)."
	MessageEmptyCategory   = "❌ Название категории не может быть пустым."
	MessageCategoryExists  = "❌ Категория с таким названием уже существует."
	MessageUseMenu         = "Используйте кнопки меню или команду /start."
	messageCategoryCreated = "✅ Категория '%s' создана и выбрана."
)

// Engine drives every user's dialog.
type Engine struct {
	api      API
	sessions *Sessions
	loc      *time.Location
	log      *slog.Logger
}

// NewEngine creates an Engine. Due dates typed by users are read in loc.
func NewEngine(log *slog.Logger, client API, sessions *Sessions, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Engine{
		api:      client,
		sessions: sessions,
		loc:      loc,
		log:      log.With("component", "dialog"),
	}
}

// Start resets the user's dialog to the main menu.
func (e *Engine) Start(_ context.Context, userID int64) Response {
	sess, release := e.sessions.acquire(userID)
	defer release()
	sess.reset(StateMainMenu)
	return show(mainMenuView())
}

// Tasks shows the user's task list.
func (e *Engine) Tasks(ctx context.Context, userID int64) Response {
	sess, release := e.sessions.acquire(userID)
	defer release()
	return e.taskList(ctx, userID, sess)
}

// NewTask begins the creation dialog.
func (e *Engine) NewTask(_ context.Context, userID int64) Response {
	sess, release := e.sessions.acquire(userID)
	defer release()
	sess.reset(StateTitle)
	return show(titleView())
}

// Callback handles an inline button press.
func (e *Engine) Callback(ctx context.Context, userID int64, data string) Response {
	sess, release := e.sessions.acquire(userID)
	defer release()

	switch {
	case data == CallbackMainMenu:
		sess.reset(StateMainMenu)
		return show(mainMenuView())
	case data == CallbackTaskList:
		return e.taskList(ctx, userID, sess)
	case data == CallbackNewTask:
		sess.reset(StateTitle)
		return show(titleView())
	case strings.HasPrefix(data, CallbackOpenTask):
		return e.openTask(ctx, userID, sess, strings.TrimPrefix(data, CallbackOpenTask))
	case data == CallbackCompleteTask:
		return e.completeTask(ctx, userID, sess)
	case data == CallbackReopenTask:
		return e.reopenTask(ctx, userID, sess)
	case data == CallbackRemindTask:
		return e.remindTask(ctx, userID, sess)
	case data == CallbackDeleteTask:
		return e.deleteTask(ctx, userID, sess)
	case data == CallbackCancel:
		sess.reset(StateMainMenu)
		resp := show(mainMenuView())
		resp.Notice = NoticeCancelled
		return resp
	case strings.HasPrefix(data, "new:"):
		return e.creationCallback(ctx, userID, sess, data)
	}

	e.log.Warn("Unknown callback data", "user_id", userID, "data", data)
	sess.reset(StateMainMenu)
	return show(mainMenuView())
}

// Text handles free text typed by the user.
func (e *Engine) Text(ctx context.Context, userID int64, text string) Response {
	sess, release := e.sessions.acquire(userID)
	defer release()

	text = strings.TrimSpace(text)
	switch sess.State {
	case StateTitle:
		switch {
		case text == "":
			return withMessage(titleView(), MessageEmptyTitle)
		case utf8.RuneCountInString(text) > api.MaxTitleLength:
			return withMessage(titleView(), MessageTitleTooLong)
		}
		sess.Draft.Title = text
		sess.State = StateDescription
		return show(descriptionView())

	case StateDescription:
		sess.Draft.Description = text
		return e.categoryStep(ctx, userID, sess)

	case StateNewCategory:
		return e.createCategory(ctx, userID, sess, text)

	case StateDueDate:
		due, err := ParseDueDate(text, e.loc)
		if err != nil {
			return withMessage(dueDateView(), MessageInvalidDate)
		}
		sess.Draft.DueDate = &due
		sess.Draft.DueDisplay = due.Format(displayDateTime)
		sess.State = StateConfirm
		return show(confirmView(sess.Draft))
	}

	return withMessage(mainMenuView(), MessageUseMenu)
}

func (e *Engine) creationCallback(ctx context.Context, userID int64, sess *Session, data string) Response {
	switch {
	case data == CallbackBack:
		return e.back(ctx, userID, sess)

	case data == CallbackSkipDesc && sess.State == StateDescription:
		sess.Draft.Description = ""
		return e.categoryStep(ctx, userID, sess)

	case strings.HasPrefix(data, CallbackPickCategory) && sess.State == StateCategory:
		id := strings.TrimPrefix(data, CallbackPickCategory)
		name, ok := sess.categories[id]
		if !ok {
			resp := e.categoryStep(ctx, userID, sess)
			resp.Notice = "Категория не найдена"
			return resp
		}
		sess.Draft.CategoryID = &id
		sess.Draft.CategoryName = name
		sess.State = StateDueDate
		return show(dueDateView())

	case data == CallbackNewCategory && sess.State == StateCategory:
		sess.State = StateNewCategory
		return show(newCategoryView())

	case data == CallbackSkipCategory && sess.State == StateCategory:
		sess.Draft.CategoryID = nil
		sess.Draft.CategoryName = ""
		sess.State = StateDueDate
		return show(dueDateView())

	case data == CallbackSkipDueDate && sess.State == StateDueDate:
		sess.Draft.DueDate = nil
		sess.Draft.DueDisplay = ""
		sess.State = StateConfirm
		return show(confirmView(sess.Draft))

	case data == CallbackConfirmCreate && sess.State == StateConfirm:
		return e.createTask(ctx, userID, sess)
	}

	// Stale button from an earlier screen.
	e.log.Debug("Ignoring creation callback", "user_id", userID, "data", data, "state", sess.State.String())
	return e.current(ctx, userID, sess)
}

// back moves the creation dialog one step back.
func (e *Engine) back(ctx context.Context, userID int64, sess *Session) Response {
	switch sess.State {
	case StateDescription:
		sess.State = StateTitle
		return show(titleView())
	case StateCategory:
		sess.State = StateDescription
		return show(descriptionView())
	case StateNewCategory, StateDueDate:
		return e.categoryStep(ctx, userID, sess)
	case StateConfirm:
		sess.State = StateDueDate
		return show(dueDateView())
	}
	sess.reset(StateMainMenu)
	return show(mainMenuView())
}

// current re-renders the screen the session is on.
func (e *Engine) current(ctx context.Context, userID int64, sess *Session) Response {
	switch sess.State {
	case StateTitle:
		return show(titleView())
	case StateDescription:
		return show(descriptionView())
	case StateCategory:
		return e.categoryStep(ctx, userID, sess)
	case StateNewCategory:
		return show(newCategoryView())
	case StateDueDate:
		return show(dueDateView())
	case StateConfirm:
		return show(confirmView(sess.Draft))
	case StateTaskList:
		return e.taskList(ctx, userID, sess)
	}
	sess.reset(StateMainMenu)
	return show(mainMenuView())
}

func (e *Engine) taskList(ctx context.Context, userID int64, sess *Session) Response {
	sess.reset(StateTaskList)
	tasks, err := e.api.ListTasks(ctx, userID, apiclient.TaskFilter{})
	if err != nil {
		e.log.Error("Failed to list tasks", "error", err, "user_id", userID)
		resp := show(taskListView(nil, 0, true))
		resp.Notice = errorNotice(err)
		return resp
	}
	return show(taskListView(orderTasks(tasks), len(tasks), false))
}

func (e *Engine) openTask(ctx context.Context, userID int64, sess *Session, id string) Response {
	task, err := e.api.GetTask(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, apiclient.ErrNotFound) {
			e.log.Error("Failed to load task", "error", err, "user_id", userID, "task_id", id)
		}
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = errorNotice(err)
		return resp
	}
	sess.reset(StateTaskDetail)
	sess.SelectedTaskID = task.ID
	return show(taskDetailView(task, e.loc))
}

func (e *Engine) completeTask(ctx context.Context, userID int64, sess *Session) Response {
	if sess.State != StateTaskDetail || sess.SelectedTaskID == "" {
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = NoticeTaskMissing
		return resp
	}
	task, err := e.api.CompleteTask(ctx, userID, sess.SelectedTaskID)
	if err != nil {
		e.log.Error("Failed to complete task", "error", err, "user_id", userID, "task_id", sess.SelectedTaskID)
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = errorNotice(err)
		return resp
	}
	resp := show(taskDetailView(task, e.loc))
	resp.Notice = NoticeTaskCompleted
	return resp
}

func (e *Engine) reopenTask(ctx context.Context, userID int64, sess *Session) Response {
	if sess.State != StateTaskDetail || sess.SelectedTaskID == "" {
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = NoticeTaskMissing
		return resp
	}
	task, err := e.api.UncompleteTask(ctx, userID, sess.SelectedTaskID)
	if err != nil {
		e.log.Error("Failed to reopen task", "error", err, "user_id", userID, "task_id", sess.SelectedTaskID)
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = errorNotice(err)
		return resp
	}
	resp := show(taskDetailView(task, e.loc))
	resp.Notice = NoticeTaskReopened
	return resp
}

// remindTask sends the task's reminder now and reloads the detail screen.
func (e *Engine) remindTask(ctx context.Context, userID int64, sess *Session) Response {
	if sess.State != StateTaskDetail || sess.SelectedTaskID == "" {
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = NoticeTaskMissing
		return resp
	}
	id := sess.SelectedTaskID
	outcome, err := e.api.NotifyTask(ctx, userID, id)

	var notice string
	switch {
	case outcome != nil && outcome.Status == notify.OutcomeSent:
		notice = NoticeReminderSent
	case outcome != nil && outcome.Status == notify.OutcomeNotFound:
		notice = NoticeTaskMissing
	case outcome != nil && outcome.Status == notify.OutcomeNotConfigured:
		notice = NoticeNoNotifier
	case outcome != nil:
		e.log.Warn("Reminder delivery failed", "user_id", userID, "task_id", id, "message", outcome.Message)
		notice = NoticeReminderError
	default:
		e.log.Error("Failed to request reminder", "error", err, "user_id", userID, "task_id", id)
		notice = errorNotice(err)
	}

	resp := e.openTask(ctx, userID, sess, id)
	if resp.Notice == "" {
		resp.Notice = notice
	}
	return resp
}

func (e *Engine) deleteTask(ctx context.Context, userID int64, sess *Session) Response {
	if sess.State != StateTaskDetail || sess.SelectedTaskID == "" {
		resp := e.taskList(ctx, userID, sess)
		resp.Notice = NoticeTaskMissing
		return resp
	}
	id := sess.SelectedTaskID
	notice := NoticeTaskDeleted
	if err := e.api.DeleteTask(ctx, userID, id); err != nil {
		e.log.Error("Failed to delete task", "error", err, "user_id", userID, "task_id", id)
		notice = errorNotice(err)
	}
	resp := e.taskList(ctx, userID, sess)
	if resp.Notice == "" {
		resp.Notice = notice
	}
	return resp
}

// categoryStep loads the user's categories and shows the picker.
func (e *Engine) categoryStep(ctx context.Context, userID int64, sess *Session) Response {
	sess.State = StateCategory
	categories, err := e.api.ListCategories(ctx, userID)
	if err != nil {
		e.log.Error("Failed to list categories", "error", err, "user_id", userID)
		sess.categories = nil
		resp := show(categoryView(nil))
		resp.Notice = errorNotice(err)
		return resp
	}
	sess.categories = make(map[string]string, len(categories))
	for _, c := range categories {
		sess.categories[c.ID] = c.Name
	}
	return show(categoryView(categories))
}

func (e *Engine) createCategory(ctx context.Context, userID int64, sess *Session, name string) Response {
	if name == "" {
		return withMessage(newCategoryView(), MessageEmptyCategory)
	}
	category, err := e.api.CreateCategory(ctx, userID, name)
	if err != nil {
		if errors.Is(err, apiclient.ErrConflict) {
			return withMessage(newCategoryView(), MessageCategoryExists)
		}
		e.log.Error("Failed to create category", "error", err, "user_id", userID)
		return withMessage(newCategoryView(), html.EscapeString(errorNotice(err)))
	}

	sess.Draft.CategoryID = &category.ID
	sess.Draft.CategoryName = category.Name
	sess.State = StateDueDate
	return withMessage(dueDateView(), fmt.Sprintf(messageCategoryCreated, html.EscapeString(category.Name)))
}

func (e *Engine) createTask(ctx context.Context, userID int64, sess *Session) Response {
	d := sess.Draft
	_, err := e.api.CreateTask(ctx, userID, api.CreateTaskRequest{
		Title:       d.Title,
		Description: d.Description,
		Category:    d.CategoryID,
		DueDate:     d.DueDate,
	})
	if err != nil {
		e.log.Error("Failed to create task", "error", err, "user_id", userID)
		resp := show(confirmView(d))
		resp.Notice = errorNotice(err)
		return resp
	}

	e.log.Info("Task created via bot", "user_id", userID)
	resp := e.taskList(ctx, userID, sess)
	if resp.Notice == "" {
		resp.Notice = NoticeTaskCreated
	}
	return resp
}

func show(v View) Response {
	return Response{View: &v}
}

func withMessage(v View, message string) Response {
	return Response{Messages: []string{message}, View: &v}
}

// errorNotice renders err for the user. API messages are already safe to
// show; transport failures are not.
func errorNotice(err error) string {
	if errors.Is(err, apiclient.ErrNotFound) {
		return NoticeTaskMissing
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" && apiErr.StatusCode < 500 {
			return "Ошибка: " + apiErr.Message
		}
	}
	return "Ошибка: сервис временно недоступен"
}
