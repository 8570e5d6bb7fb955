package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/schedule"
)

var weekHeader = []string{"День", "Время", "Предмет", "Преподаватель", "Группа", "Аудитория", "Тип"}

// WeekWorkbook — один лист с парами недели, по дням и времени.
func WeekWorkbook(entries []models.ScheduleEntry, title string) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := sheetName(title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(sheet, "A1", &weekHeader); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	sorted := schedule.SortByTime(entries)
	for i, e := range sorted {
		row := weekRow(e)
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %s: %w", cell, err)
		}
	}
	if err := styleWeekSheet(f, sheet, sorted); err != nil {
		return nil, err
	}
	return f, nil
}

func weekRow(e models.ScheduleEntry) []string {
	return []string{schedule.DayName(e.DayOfWeek), e.Time, e.SubjectName, e.TeacherName, e.GroupName, e.RoomName, e.LessonType}
}

// WriteBytes — содержимое книги для отправки документом.
func WriteBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName — excel ограничивает имя листа 31 символом и запрещает часть знаков.
func sheetName(title string) string {
	s := strings.NewReplacer("[", " ", "]", " ", "_", " ").Replace(sanitizeFileName(title))
	r := []rune(strings.TrimSpace(s))
	if len(r) > 31 {
		r = []rune(strings.TrimSpace(string(r[:31])))
	}
	if len(r) == 0 {
		return "Расписание"
	}
	return string(r)
}
