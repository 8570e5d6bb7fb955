package handlers

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/bot/menu"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/tg"
)

const (
	startText = "Добро пожаловать в Mini-HEMIS бот!\n\n" +
		"Чтобы получать ежедневные уведомления с расписанием, привяжите ваш аккаунт командой /login"
	startLinkedText = "С возвращением! Расписание на сегодня — /today, на неделю — /week.\n" +
		"Привязать другой аккаунт — /login"
	unknownText = "⚠️ Неизвестная команда. Используйте /start"
)

// HandleStart — приветствие и меню по состоянию привязки.
func HandleStart(ctx context.Context, bot tg.Bot, src ScheduleSource, chatID int64) {
	_, err := src.IdentityForChat(ctx, chatID)
	linked := err == nil
	if err != nil && !errors.Is(err, academic.ErrUnknownIdentity) {
		replyError(bot, chatID, err)
		return
	}

	text := startText
	if linked {
		text = startLinkedText
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = menu.MainMenu(linked)
	if _, err := tg.Send(bot, msg); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// HandleUnknown — ответ на всё, что не команда и не шаг диалога.
func HandleUnknown(bot tg.Bot, chatID int64) {
	if _, err := tg.SendText(bot, chatID, unknownText); err != nil {
		metrics.HandlerErrors.Inc()
	}
}
