package academic

import (
	"errors"
	"net/http"

	"github.com/Spok95/mini-hemis/internal/hemis"
)

// Тексты для пользователя. Отказ авторизации и недоступность HEMIS различаются:
// в первом случае нужно перелогиниться, во втором — повторить позже.
const (
	MsgAuthRequired    = "Требуется авторизация: логин или пароль HEMIS не подходят"
	MsgUpstreamDown    = "HEMIS временно недоступен, попробуйте позже"
	MsgDataUnavailable = "Данные недоступны: в HEMIS нет активного семестра"
	MsgUnknownIdentity = "Аккаунт не привязан. Выполните вход через /login"
	MsgInternal        = "Внутренняя ошибка сервера"
)

// Describe переводит ошибку сервиса в HTTP-статус и текст для пользователя.
func Describe(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, ErrUnknownIdentity):
		return http.StatusNotFound, MsgUnknownIdentity
	case errors.Is(err, hemis.ErrAuthFailure), errors.Is(err, hemis.ErrUnauthorized):
		return http.StatusUnauthorized, MsgAuthRequired
	case errors.Is(err, hemis.ErrNotFound):
		return http.StatusNotFound, MsgDataUnavailable
	case errors.Is(err, hemis.ErrUpstream):
		return http.StatusBadGateway, MsgUpstreamDown
	default:
		return http.StatusInternalServerError, MsgInternal
	}
}

// IsUserError — ошибка вызвана данными пользователя или HEMIS, а не нашей системой.
func IsUserError(err error) bool {
	status, _ := Describe(err)
	return status < http.StatusInternalServerError || status == http.StatusBadGateway
}
