// Package schedule превращает сырые строки расписания HEMIS в пары по дням недели.
package schedule

import (
	"strings"
	"time"

	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/models"
)

// Normalize собирает пары из строк HEMIS.
//
// День недели берётся из lesson_date в loc (nil — UTC). На один слот (день, время)
// остаётся первая встретившаяся строка, остальные отбрасываются: HEMIS присылает одну
// пару несколько раз, если на неё ссылаются несколько записей. Порядок входа сохраняется.
// Строки без lesson_date пропускаются: их нельзя поставить на день.
func Normalize(rows []hemis.RawTimetableRow, loc *time.Location) []models.ScheduleEntry {
	if loc == nil {
		loc = time.UTC
	}
	seen := make(map[models.Slot]struct{}, len(rows))
	out := make([]models.ScheduleEntry, 0, len(rows))
	for _, r := range rows {
		if r.LessonDate == nil || *r.LessonDate <= 0 {
			continue
		}
		e := models.ScheduleEntry{
			DayOfWeek:   Weekday(r.LessonDate.Time().In(loc)),
			Time:        startTime(r.LessonPair),
			SubjectName: r.Subject.NameOr(models.UnknownSubject),
			TeacherName: r.Employee.NameOr(models.NotAvailable),
			GroupName:   r.Group.NameOr(models.NotAvailable),
			RoomName:    r.Auditorium.NameOr(models.NotAvailable),
			LessonType:  r.TrainingType.NameOr(""),
		}
		if _, dup := seen[e.Slot()]; dup {
			continue
		}
		seen[e.Slot()] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Weekday — 1 понедельник ... 7 воскресенье.
func Weekday(t time.Time) int {
	if d := int(t.Weekday()); d != 0 {
		return d
	}
	return 7
}

func startTime(p *hemis.LessonPair) string {
	if p == nil || p.StartTime == nil || strings.TrimSpace(*p.StartTime) == "" {
		return models.UnknownTime
	}
	return *p.StartTime
}
