package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Spok95/mini-hemis/internal/models"
)

func TestWeekday(t *testing.T) {
	assert.Equal(t, 7, Weekday(time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, Weekday(time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 6, Weekday(time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC)))
}

func TestForDayAndSort(t *testing.T) {
	entries := []models.ScheduleEntry{
		{DayOfWeek: 2, Time: "13:00", SubjectName: "C"},
		{DayOfWeek: 1, Time: "10:30", SubjectName: "B"},
		{DayOfWeek: 1, Time: "09:00", SubjectName: "A"},
	}
	mon := ForDay(entries, 1)
	assert.Len(t, mon, 2)
	assert.Equal(t, "B", mon[0].SubjectName)

	sorted := SortByTime(entries)
	assert.Equal(t, []string{"A", "B", "C"}, []string{sorted[0].SubjectName, sorted[1].SubjectName, sorted[2].SubjectName})
	assert.Equal(t, "C", entries[0].SubjectName, "input must not be reordered")
}

func TestFormatDay(t *testing.T) {
	assert.Equal(t, NoLessonsText, FormatDay(nil))

	msg := FormatDay([]models.ScheduleEntry{
		{DayOfWeek: 1, Time: "10:30", SubjectName: "Physics", TeacherName: "N/A", RoomName: "N/A"},
		{DayOfWeek: 1, Time: "09:00", SubjectName: "Math <adv>", TeacherName: "Aliyev", RoomName: "204", LessonType: "Lecture"},
	})
	assert.Contains(t, msg, "Math &lt;adv&gt; (Lecture)")
	assert.Contains(t, msg, "🚪 204")
	assert.Less(t, strings.Index(msg, "09:00"), strings.Index(msg, "10:30"))
	assert.Equal(t, 1, strings.Count(msg, "🚪"))
}

func TestDayName(t *testing.T) {
	assert.Equal(t, "Понедельник", DayName(1))
	assert.Equal(t, "Воскресенье", DayName(7))
	assert.Empty(t, DayName(0))
}
