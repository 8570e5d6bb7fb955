package auth

import (
	"context"
	"fmt"
	"html"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/bot/menu"
	"github.com/Spok95/mini-hemis/internal/bot/shared/fsmutil"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/observability"
	"github.com/Spok95/mini-hemis/internal/tg"
)

type LoginFSMState string

const (
	StateLoginAwaitLogin    LoginFSMState = "login_await_login"
	StateLoginAwaitPassword LoginFSMState = "login_await_password"

	CallbackLoginCancel = "login_cancel"
)

// Linker — привязка чата к учётке HEMIS.
type Linker interface {
	LinkChat(ctx context.Context, chatID int64, login, secret string) (models.Identity, models.Profile, error)
}

type loginData struct {
	State LoginFSMState
	Login string
}

// LoginFSM — диалог /login: логин, затем пароль. Сообщение с паролем удаляется сразу.
type LoginFSM struct {
	svc Linker
	log *zap.Logger

	mu     sync.Mutex
	states map[int64]*loginData
}

func NewLoginFSM(svc Linker, log *zap.Logger) *LoginFSM {
	return &LoginFSM{svc: svc, log: logging.OrNop(log).Named("login_fsm"), states: make(map[int64]*loginData)}
}

// State — текущий шаг или "" если диалога нет.
func (f *LoginFSM) State(chatID int64) LoginFSMState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.states[chatID]; ok {
		return d.State
	}
	return ""
}

// Reset молча выходит из диалога.
func (f *LoginFSM) Reset(chatID int64) {
	f.mu.Lock()
	delete(f.states, chatID)
	f.mu.Unlock()
}

// Start начинает диалог заново.
func (f *LoginFSM) Start(bot tg.Bot, chatID int64) {
	f.mu.Lock()
	f.states[chatID] = &loginData{State: StateLoginAwaitLogin}
	f.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, "Введите ваш логин HEMIS:")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(fsmutil.CancelRow(CallbackLoginCancel))
	if _, err := tg.Send(bot, msg); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// HandleText — очередной шаг диалога. false, если чат не в диалоге.
func (f *LoginFSM) HandleText(ctx context.Context, bot tg.Bot, msg *tgbotapi.Message) bool {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	f.mu.Lock()
	d, ok := f.states[chatID]
	if !ok {
		f.mu.Unlock()
		return false
	}
	state := d.State
	f.mu.Unlock()

	switch state {
	case StateLoginAwaitLogin:
		if text == "" {
			send(bot, chatID, "Логин не может быть пустым. Введите логин HEMIS:")
			return true
		}
		f.mu.Lock()
		d.Login = text
		d.State = StateLoginAwaitPassword
		f.mu.Unlock()
		send(bot, chatID, "Теперь введите пароль. Сообщение с паролем будет удалено.")

	case StateLoginAwaitPassword:
		// пароль в истории чата не оставляем
		fsmutil.DeleteMessage(bot, chatID, msg.MessageID)
		f.Reset(chatID)
		f.finish(ctx, bot, chatID, d.Login, msg.Text)
	}
	return true
}

// HandleCallback — кнопка "Отмена". false, если callback не наш.
func (f *LoginFSM) HandleCallback(bot tg.Bot, cb *tgbotapi.CallbackQuery) bool {
	if cb.Data != CallbackLoginCancel || cb.Message == nil {
		return false
	}
	chatID := cb.Message.Chat.ID
	f.Reset(chatID)
	if _, err := tg.Request(bot, tgbotapi.NewCallback(cb.ID, "Отменено")); err != nil {
		metrics.HandlerErrors.Inc()
	}
	fsmutil.DisableMarkup(bot, chatID, cb.Message.MessageID)
	send(bot, chatID, "🚫 Вход отменён.")
	return true
}

func (f *LoginFSM) finish(ctx context.Context, bot tg.Bot, chatID int64, login, secret string) {
	send(bot, chatID, "⏳ Проверяю данные в HEMIS...")

	idn, p, err := f.svc.LinkChat(ctx, chatID, login, secret)
	if err != nil {
		_, text := academic.Describe(err)
		f.log.Warn("link chat failed", zap.Int64("chat_id", chatID), zap.String("login", login), zap.Error(err))
		if !academic.IsUserError(err) {
			metrics.HandlerErrors.Inc()
			observability.CaptureErrWith(err, map[string]string{"op": "link_chat"})
		}
		send(bot, chatID, "⚠️ "+text+"\nПопробуйте ещё раз: /login")
		return
	}

	name := p.FullName
	if name == "" {
		name = idn.Login
	}
	text := fmt.Sprintf("✅ Аккаунт <b>%s</b> привязан.", html.EscapeString(name))
	if p.GroupName != nil {
		text += fmt.Sprintf("\nГруппа: %s", html.EscapeString(*p.GroupName))
	}
	text += "\n\nКаждое утро я буду присылать расписание на день."

	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.ReplyMarkup = menu.MainMenu(true)
	if _, err := tg.Send(bot, out); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

func send(bot tg.Bot, chatID int64, text string) {
	if _, err := tg.SendText(bot, chatID, text); err != nil {
		metrics.HandlerErrors.Inc()
	}
}
