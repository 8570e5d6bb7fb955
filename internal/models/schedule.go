package models

// Значения по умолчанию для отсутствующих полей апстрима.
const (
	UnknownTime    = "Unknown"
	UnknownSubject = "Unknown Subject"
	NotAvailable   = "N/A"
)

// ScheduleEntry — нормализованная пара. Не хранится, собирается на каждый запрос.
// В одном наборе пара (DayOfWeek, Time) уникальна.
type ScheduleEntry struct {
	DayOfWeek   int    `json:"dayOfWeek"` // 1 = понедельник ... 7 = воскресенье
	Time        string `json:"time"`
	SubjectName string `json:"subjectName"`
	TeacherName string `json:"teacherName"`
	GroupName   string `json:"groupName"`
	RoomName    string `json:"roomName"`
	LessonType  string `json:"lessonType"`
}

// Slot — ключ дедупликации.
type Slot struct {
	DayOfWeek int
	Time      string
}

func (e ScheduleEntry) Slot() Slot {
	return Slot{DayOfWeek: e.DayOfWeek, Time: e.Time}
}
