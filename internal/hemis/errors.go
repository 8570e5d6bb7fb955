package hemis

import (
	"errors"
	"fmt"
)

// Классы отказов. Сравнивать через errors.Is.
var (
	// ErrAuthFailure — HEMIS не выдал токен (неверные данные или апстрим недоступен при логине).
	ErrAuthFailure = errors.New("hemis: authentication failed")
	// ErrUnauthorized — токен отвергнут рабочим эндпоинтом; единственный сигнал на перелогин.
	ErrUnauthorized = errors.New("hemis: token rejected")
	// ErrUpstream — кривой ответ, неожиданный статус, сеть.
	ErrUpstream = errors.New("hemis: upstream error")
	// ErrNotFound — ответ корректный, но нужного поля нет (например, нет активного семестра).
	ErrNotFound = errors.New("hemis: not found")
)

type Kind int

const (
	KindUpstream Kind = iota
	KindAuthFailure
	KindUnauthorized
	KindNotFound
)

func (k Kind) sentinel() error {
	switch k {
	case KindAuthFailure:
		return ErrAuthFailure
	case KindUnauthorized:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	default:
		return ErrUpstream
	}
}

func (k Kind) String() string {
	switch k {
	case KindAuthFailure:
		return "auth_failure"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "upstream"
	}
}

// Error — отказ конкретного вызова. Status == 0, если до HTTP-ответа не дошло.
type Error struct {
	Op     string
	Kind   Kind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("hemis %s: %s", e.Op, e.Kind)
	if e.Status != 0 {
		s += fmt.Sprintf(" (http %d)", e.Status)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf возвращает класс отказа; ok == false для ошибок не из этого пакета.
func KindOf(err error) (Kind, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he.Kind, true
	}
	switch {
	case errors.Is(err, ErrAuthFailure):
		return KindAuthFailure, true
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized, true
	case errors.Is(err, ErrNotFound):
		return KindNotFound, true
	case errors.Is(err, ErrUpstream):
		return KindUpstream, true
	}
	return KindUpstream, false
}
