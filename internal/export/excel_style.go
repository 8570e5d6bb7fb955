package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/mini-hemis/internal/models"
)

const (
	headerFill = "DDEBF7"
	daySepLine = "808080"
)

// column — границы ширины колонки. min == max — ширина фиксированная.
type column struct {
	min, max float64
}

// по порядку weekHeader
var weekColumns = []column{
	{14, 14}, // день: самое длинное "Воскресенье"
	{8, 8},   // HH:MM
	{20, 48},
	{18, 36},
	{10, 16},
	{10, 14},
	{10, 18},
}

// styleWeekSheet: шапка с заливкой и закреплённой строкой, автофильтр по таблице,
// черта между днями, ширины колонок в пределах weekColumns.
func styleWeekSheet(f *excelize.File, sheet string, entries []models.ScheduleEntry) error {
	last, err := excelize.ColumnNumberToName(len(weekColumns))
	if err != nil {
		return err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", header); err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if len(entries) > 0 {
		if err := f.AutoFilter(sheet, fmt.Sprintf("A1:%s%d", last, len(entries)+1), nil); err != nil {
			return fmt.Errorf("autofilter: %w", err)
		}
		sep, err := f.NewStyle(&excelize.Style{Border: []excelize.Border{{Type: "top", Color: daySepLine, Style: 1}}})
		if err != nil {
			return fmt.Errorf("day style: %w", err)
		}
		for i := 1; i < len(entries); i++ {
			if entries[i].DayOfWeek == entries[i-1].DayOfWeek {
				continue
			}
			row := i + 2
			if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", last, row), sep); err != nil {
				return fmt.Errorf("day separator: %w", err)
			}
		}
	}

	for i, w := range columnWidths(entries) {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return fmt.Errorf("width %s: %w", name, err)
		}
	}
	return nil
}

// columnWidths — по самому длинному значению (или заголовку), зажатому в границы колонки.
func columnWidths(entries []models.ScheduleEntry) []float64 {
	widths := make([]float64, len(weekColumns))
	for i, h := range weekHeader {
		widths[i] = float64(runeLen(h)) + 2
	}
	for _, e := range entries {
		for i, v := range weekRow(e) {
			widths[i] = max(widths[i], float64(runeLen(v))*1.1)
		}
	}
	for i, c := range weekColumns {
		widths[i] = min(max(widths[i], c.min), c.max)
	}
	return widths
}

func runeLen(s string) int { return len([]rune(s)) }

// BuildScheduleFilename — имя файла с недельным расписанием.
func BuildScheduleFilename(owner, group string, weekStart time.Time) string {
	base := fmt.Sprintf("Расписание — %s — %s — %s.xlsx",
		cleanName(owner),
		cleanName(group),
		weekStart.Format("2006-01-02"),
	)
	return sanitizeFileName(base)
}

var invalidFileRe = regexp.MustCompile(`[\\/:*?"<>|]+`)

func sanitizeFileName(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return invalidFileRe.ReplaceAllString(s, "_")
}

func cleanName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "—"
	}
	return s
}
