package app

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/bot/auth"
	"github.com/Spok95/mini-hemis/internal/bot/handlers"
	"github.com/Spok95/mini-hemis/internal/bot/menu"
	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/session"
	"github.com/Spok95/mini-hemis/internal/tg"
)

// BotService — то, что боту нужно от academic.Service.
type BotService interface {
	handlers.ScheduleSource
	auth.Linker
}

// Dispatcher разбирает апдейты telegram. В одном чате сценарии выполняются по очереди.
type Dispatcher struct {
	bot   tg.Bot
	svc   BotService
	login *auth.LoginFSM
	chats *session.KeyedLocker[int64]
	log   *zap.Logger
	now   func() time.Time
}

func NewDispatcher(bot tg.Bot, svc BotService, log *zap.Logger) *Dispatcher {
	log = logging.OrNop(log).Named("dispatcher")
	return &Dispatcher{
		bot:   bot,
		svc:   svc,
		login: auth.NewLoginFSM(svc, log),
		chats: session.NewKeyedLocker[int64](),
		log:   log,
		now:   time.Now,
	}
}

// Run читает апдейты до закрытия канала или отмены ctx; каждый апдейт — в своей горутине.
func (d *Dispatcher) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			go d.HandleUpdate(ctx, upd)
		}
	}
}

func (d *Dispatcher) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	metrics.BotUpdates.Inc()
	defer func() {
		if p := recover(); p != nil {
			metrics.HandlerErrors.Inc()
			d.log.Error("update handler panicked", zap.Any("panic", p), zap.Int("update_id", upd.UpdateID))
		}
	}()

	switch {
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		chatID := upd.CallbackQuery.Message.Chat.ID
		unlock := d.chats.Lock(chatID)
		defer unlock()
		if !d.login.HandleCallback(d.bot, upd.CallbackQuery) {
			_, _ = tg.Request(d.bot, tgbotapi.NewCallback(upd.CallbackQuery.ID, ""))
		}
	case upd.Message != nil && upd.Message.Chat != nil:
		chatID := upd.Message.Chat.ID
		unlock := d.chats.Lock(chatID)
		defer unlock()
		d.HandleMessage(ctxutil.WithChatID(ctx, chatID), upd.Message)
	}
}

func (d *Dispatcher) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := commandOf(msg.Text)

	switch cmd {
	case "/start":
		d.login.Reset(chatID)
		handlers.HandleStart(ctx, d.bot, d.svc, chatID)
		return
	case "/login", menu.BtnLogin:
		d.login.Start(d.bot, chatID)
		return
	case "/cancel":
		d.login.Reset(chatID)
		handlers.HandleStart(ctx, d.bot, d.svc, chatID)
		return
	}

	// шаг диалога входа важнее кнопок меню: логин может совпасть с текстом кнопки
	if d.login.HandleText(ctx, d.bot, msg) {
		return
	}

	switch cmd {
	case "/today", "/testschedule", menu.BtnToday:
		handlers.HandleToday(ctx, d.bot, d.svc, chatID, d.now())
	case "/week", menu.BtnWeek:
		handlers.HandleWeek(ctx, d.bot, d.svc, chatID, d.now())
	default:
		handlers.HandleUnknown(d.bot, chatID)
	}
}

// commandOf — "/today@bot arg" -> "/today"; обычный текст возвращается обрезанным.
func commandOf(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	cmd := strings.Fields(text)[0]
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd)
}
