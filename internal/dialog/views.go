package dialog

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/edgard/todobot/internal/api"
)

// Button is an inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// View is one screen: HTML text plus an inline keyboard.
type View struct {
	Text     string
	Keyboard [][]Button
}

// Callback data. Values with a trailing colon take an id suffix.
const (
	CallbackMainMenu      = "menu:main"
	CallbackTaskList      = "menu:tasks"
	CallbackNewTask       = "menu:new"
	CallbackOpenTask      = "task:open:"
	CallbackCompleteTask  = "task:complete"
	CallbackReopenTask    = "task:reopen"
	CallbackRemindTask    = "task:remind"
	CallbackDeleteTask    = "task:delete"
	CallbackSkipDesc      = "new:skip_desc"
	CallbackPickCategory  = "new:cat:"
	CallbackNewCategory   = "new:cat_new"
	CallbackSkipCategory  = "new:cat_skip"
	CallbackSkipDueDate   = "new:skip_due"
	CallbackBack          = "new:back"
	CallbackConfirmCreate = "new:confirm"
	CallbackCancel        = "new:cancel"
)

// CallbackPrefixes are the prefixes every callback datum starts with.
var CallbackPrefixes = []string{"menu:", "task:", "new:"}

const (
	taskListLimit   = 10
	noCategory      = "Без категории"
	noDescription   = "Нет описания"
	noDueDate       = "Не указан"
	displayDateTime = "02.01.2006 15:04"
)

func mainMenuView() View {
	return View{
		Text: "🗂 <b>ToDo Bot</b>\n\nВыберите действие:",
		Keyboard: [][]Button{
			{{Text: "📋 Мои задачи", Data: CallbackTaskList}},
			{{Text: "➕ Новая задача", Data: CallbackNewTask}},
		},
	}
}

// orderTasks puts open tasks first, keeping the newest-first order within
// each group, and keeps at most taskListLimit.
func orderTasks(tasks []api.TaskListItem) []api.TaskListItem {
	ordered := make([]api.TaskListItem, 0, len(tasks))
	for _, t := range tasks {
		if !t.IsCompleted {
			ordered = append(ordered, t)
		}
	}
	for _, t := range tasks {
		if t.IsCompleted {
			ordered = append(ordered, t)
		}
	}
	if len(ordered) > taskListLimit {
		ordered = ordered[:taskListLimit]
	}
	return ordered
}

func statusIcon(completed bool) string {
	if completed {
		return "✅"
	}
	return "⏳"
}

// taskListView renders up to taskListLimit tasks; total is the count of all
// the user's tasks.
func taskListView(tasks []api.TaskListItem, total int, loadFailed bool) View {
	var b strings.Builder
	b.WriteString("📋 <b>Мои задачи</b>\n")
	switch {
	case loadFailed:
		b.WriteString("⚠️ Не удалось загрузить задачи.")
	case total == 0:
		b.WriteString("У вас пока нет задач.")
	default:
		fmt.Fprintf(&b, "Всего задач: %d\n", total)
	}

	keyboard := make([][]Button, 0, len(tasks)+1)
	for _, t := range tasks {
		keyboard = append(keyboard, []Button{{
			Text: statusIcon(t.IsCompleted) + " " + t.Title,
			Data: CallbackOpenTask + t.ID,
		}})
	}
	keyboard = append(keyboard, []Button{
		{Text: "➕ Новая задача", Data: CallbackNewTask},
		{Text: "🔙 Назад", Data: CallbackMainMenu},
	})
	return View{Text: b.String(), Keyboard: keyboard}
}

func taskDetailView(task *api.TaskResponse, loc *time.Location) View {
	status := "В процессе"
	if task.IsCompleted {
		status = "Выполнена"
	}

	category := noCategory
	if task.Category != nil {
		category = task.Category.Name
	}

	due := noDueDate
	if task.DueDate != nil {
		due = task.DueDate.In(loc).Format(displayDateTime)
	}

	description := task.Description
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}

	text := fmt.Sprintf("<b>%s</b>\n%s Статус: %s\n📁 Категория: %s\n📅 Срок: %s\n🕐 Создана: %s\n\n📝 %s",
		html.EscapeString(task.Title),
		statusIcon(task.IsCompleted), status,
		html.EscapeString(category),
		due,
		task.CreatedAt.In(loc).Format(displayDateTime),
		html.EscapeString(description),
	)

	var actions []Button
	if task.IsCompleted {
		actions = append(actions, Button{Text: "↩️ Вернуть в работу", Data: CallbackReopenTask})
	} else {
		actions = append(actions,
			Button{Text: "✅ Выполнить", Data: CallbackCompleteTask},
			Button{Text: "🔔 Напомнить", Data: CallbackRemindTask},
		)
	}
	actions = append(actions, Button{Text: "🗑 Удалить", Data: CallbackDeleteTask})

	return View{
		Text: text,
		Keyboard: [][]Button{
			actions,
			{{Text: "🔙 К списку", Data: CallbackTaskList}},
		},
	}
}

func titleView() View {
	return View{
		Text:     "➕ <b>Новая задача</b>\n\n📝 Введите название задачи:",
		Keyboard: [][]Button{{{Text: "❌ Отмена", Data: CallbackCancel}}},
	}
}

func descriptionView() View {
	return View{
		Text: "📝 <b>Описание</b>\n\nВведите описание задачи (или пропустите):",
		Keyboard: [][]Button{
			{{Text: "⏭ Пропустить", Data: CallbackSkipDesc}},
			{{Text: "🔙 Назад", Data: CallbackBack}},
		},
	}
}

func categoryView(categories []api.CategoryResponse) View {
	text := "📁 <b>Категория</b>\n\nВыберите категорию:"
	if len(categories) == 0 {
		text = "📁 <b>Категория</b>\n\nУ вас нет категорий. Создайте новую или пропустите."
	}

	keyboard := make([][]Button, 0, len(categories)+3)
	for _, c := range categories {
		keyboard = append(keyboard, []Button{{Text: c.Name, Data: CallbackPickCategory + c.ID}})
	}
	keyboard = append(keyboard,
		[]Button{{Text: "➕ Создать новую", Data: CallbackNewCategory}},
		[]Button{{Text: "⏭ Без категории", Data: CallbackSkipCategory}},
		[]Button{{Text: "🔙 Назад", Data: CallbackBack}},
	)
	return View{Text: text, Keyboard: keyboard}
}

func newCategoryView() View {
	return View{
		Text:     "📁 <b>Новая категория</b>\n\nВведите название новой категории:",
		Keyboard: [][]Button{{{Text: "🔙 Назад к выбору", Data: CallbackBack}}},
	}
}

func dueDateView() View {
	return View{
		Text: "📅 <b>Срок выполнения</b>\n\nВведите дату и время (ДД.ММ.ГГГГ ЧЧ:ММ)\nили пропустите:",
		Keyboard: [][]Button{
			{{Text: "⏭ Пропустить", Data: CallbackSkipDueDate}},
			{{Text: "🔙 Назад", Data: CallbackBack}},
		},
	}
}

func confirmView(d Draft) View {
	description := d.Description
	if strings.TrimSpace(description) == "" {
		description = noDescription
	}
	category := d.CategoryName
	if category == "" {
		category = noCategory
	}
	due := d.DueDisplay
	if due == "" {
		due = noDueDate
	}

	text := fmt.Sprintf("✅ <b>Подтверждение</b>\n\n📌 <b>%s</b>\n📝 %s\n📁 Категория: %s\n📅 Срок: %s\n\nСоздать задачу?",
		html.EscapeString(d.Title),
		html.EscapeString(description),
		html.EscapeString(category),
		html.EscapeString(due),
	)
	return View{
		Text: text,
		Keyboard: [][]Button{
			{{Text: "✅ Создать", Data: CallbackConfirmCreate}, {Text: "❌ Отмена", Data: CallbackCancel}},
			{{Text: "🔙 Назад", Data: CallbackBack}},
		},
	}
}
