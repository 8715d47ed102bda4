package notify

import (
	"html"
	"strings"
	"time"

	"github.com/edgard/todobot/internal/database"
)

// DateLayout is how due dates appear in reminders.
const DateLayout = "02.01.2006 15:04"

const noDueDate = "Не указана"

// RenderMessage builds the HTML reminder for task. User-supplied text is
// escaped; the due date is shown in loc.
func RenderMessage(task *database.Task, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	b.WriteString("⏰ <b>Напоминание о задаче!</b>\n\n")
	b.WriteString("📌 <b>" + html.EscapeString(task.Title) + "</b>\n")

	if task.CategoryName != nil && *task.CategoryName != "" {
		b.WriteString("📁 Категория: " + html.EscapeString(*task.CategoryName) + "\n")
	}

	due := noDueDate
	if task.DueDate != nil {
		due = task.DueDate.In(loc).Format(DateLayout)
	}
	b.WriteString("📅 Срок: " + due + "\n")

	if task.HasDescription() {
		b.WriteString("\n📝 " + html.EscapeString(task.Description))
	}

	return b.String()
}
