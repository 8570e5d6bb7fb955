package hemis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SemesterCode — непрозрачный код текущего семестра. Не кэшируется.
type SemesterCode string

// envelope — общая обёртка ответов HEMIS. data разбираем отдельно, когда success подтверждён.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Code    FlexString      `json:"code"`
}

func (e envelope) ok() bool { return e.Success != nil && *e.Success }

// errorText — error бывает строкой, объектом или отсутствует.
func (e envelope) errorText() string {
	raw := bytes.TrimSpace(e.Error)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return e.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// authRejected — success:false с кодом, эквивалентным 401.
func (e envelope) authRejected() bool {
	if e.Code == "401" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(e.errorText()), "unauthorized")
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginData struct {
	Token string `json:"token"`
}

type accountData struct {
	FullName        *string    `json:"full_name"`
	StudentIDNumber FlexString `json:"student_id_number"`
	Group           *Named     `json:"group"`
	Semester        *struct {
		Code FlexString `json:"code"`
	} `json:"semester"`
}

// Named — вложенные объекты вида {"name": "..."}.
type Named struct {
	Name *string `json:"name"`
}

// NameOr — имя или def, если объекта/поля нет либо оно пустое.
func (n *Named) NameOr(def string) string {
	if n == nil || n.Name == nil || strings.TrimSpace(*n.Name) == "" {
		return def
	}
	return *n.Name
}

type LessonPair struct {
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
}

// RawTimetableRow — строка расписания как её отдаёт HEMIS. Любое поле может отсутствовать.
type RawTimetableRow struct {
	LessonDate   *Timestamp  `json:"lesson_date"`
	LessonPair   *LessonPair `json:"lessonPair"`
	Subject      *Named      `json:"subject"`
	Employee     *Named      `json:"employee"`
	Group        *Named      `json:"group"`
	Auditorium   *Named      `json:"auditorium"`
	TrainingType *Named      `json:"trainingType"`
}

// Timestamp — unix-секунды; HEMIS присылает то числом, то строкой.
// Пустая строка, "null" и значения <= 0 — ошибка: такую строку расписания нельзя поставить на день.
type Timestamp int64

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("lesson_date %s: empty", b)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("lesson_date %q: %w", s, ferr)
		}
		n = int64(f)
	}
	if n <= 0 {
		return fmt.Errorf("lesson_date %q: not a date", s)
	}
	*t = Timestamp(n)
	return nil
}

func (t Timestamp) Time() time.Time { return time.Unix(int64(t), 0) }

// FlexString принимает строку, число или null.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(b)
	return nil
}
