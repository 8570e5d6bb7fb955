package schedule

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/Spok95/mini-hemis/internal/models"
)

const NoLessonsText = "На сегодня занятий нет. Можно отдыхать! 🎉"

var dayNames = [...]string{"", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота", "Воскресенье"}

// DayName — название дня для 1..7, иначе пусто.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return ""
	}
	return dayNames[day]
}

// ForDay — пары одного дня в исходном порядке.
func ForDay(entries []models.ScheduleEntry, day int) []models.ScheduleEntry {
	out := make([]models.ScheduleEntry, 0, len(entries))
	for _, e := range entries {
		if e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	return out
}

// SortByTime сортирует копию по дню, затем по времени начала.
func SortByTime(entries []models.ScheduleEntry) []models.ScheduleEntry {
	out := append([]models.ScheduleEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].Time < out[j].Time
	})
	return out
}

// FormatDay — HTML-сообщение для telegram с парами одного дня.
func FormatDay(entries []models.ScheduleEntry) string {
	if len(entries) == 0 {
		return NoLessonsText
	}
	var b strings.Builder
	b.WriteString("<b>Расписание на сегодня:</b>\n\n")
	for _, e := range SortByTime(entries) {
		fmt.Fprintf(&b, "🕒 <b>%s</b>\n", html.EscapeString(e.Time))
		fmt.Fprintf(&b, "📚 %s", html.EscapeString(e.SubjectName))
		if e.LessonType != "" {
			fmt.Fprintf(&b, " (%s)", html.EscapeString(e.LessonType))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "👤 %s\n", html.EscapeString(e.TeacherName))
		if e.RoomName != models.NotAvailable {
			fmt.Fprintf(&b, "🚪 %s\n", html.EscapeString(e.RoomName))
		}
		b.WriteString("--------------------\n")
	}
	return b.String()
}
