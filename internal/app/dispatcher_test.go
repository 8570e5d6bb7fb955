package app

import (
	"context"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/bot/menu"
	"github.com/Spok95/mini-hemis/internal/testutil/tgfake"
)

func newTestDispatcher(svc *fakeService) (*Dispatcher, *tgfake.Bot) {
	bot := tgfake.New()
	d := NewDispatcher(bot, svc, nil)
	d.now = func() time.Time { return monday }
	return d, bot
}

func message(chatID int64, id int, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{MessageID: id, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}}
}

func TestCommandOf(t *testing.T) {
	assert.Equal(t, "/today", commandOf(" /today@mini_hemis_bot extra"))
	assert.Equal(t, "/start", commandOf("/START"))
	assert.Equal(t, menu.BtnToday, commandOf(menu.BtnToday))
}

func TestDispatcher_LoginFlowThenToday(t *testing.T) {
	svc := newFakeService()
	d, bot := newTestDispatcher(svc)
	ctx := context.Background()

	d.HandleUpdate(ctx, message(1, 1, "/start"))
	assert.Contains(t, bot.LastText(), "/login")

	d.HandleUpdate(ctx, message(1, 2, menu.BtnLogin))
	d.HandleUpdate(ctx, message(1, 3, "st-1"))
	d.HandleUpdate(ctx, message(1, 4, "pw"))
	assert.Contains(t, bot.LastText(), "привязан")

	d.HandleUpdate(ctx, message(1, 5, "/today"))
	assert.Contains(t, bot.LastText(), "Math")
	assert.NotContains(t, bot.LastText(), "History")

	d.HandleUpdate(ctx, message(1, 6, "hello"))
	assert.Contains(t, bot.LastText(), "Неизвестная команда")
}

func TestDispatcher_TodayWithoutLink(t *testing.T) {
	d, bot := newTestDispatcher(newFakeService())
	d.HandleUpdate(context.Background(), message(9, 1, menu.BtnToday))
	assert.Contains(t, bot.LastText(), academic.MsgUnknownIdentity)
}

func TestDispatcher_StartCancelsLogin(t *testing.T) {
	d, bot := newTestDispatcher(newFakeService())
	ctx := context.Background()

	d.HandleUpdate(ctx, message(1, 1, "/login"))
	d.HandleUpdate(ctx, message(1, 2, "/start"))
	d.HandleUpdate(ctx, message(1, 3, "st-1"))
	assert.Contains(t, bot.LastText(), "Неизвестная команда")
}

func TestDispatcher_CancelCallback(t *testing.T) {
	d, bot := newTestDispatcher(newFakeService())
	ctx := context.Background()

	d.HandleUpdate(ctx, message(1, 1, "/login"))
	d.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb", Data: "login_cancel",
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: 1}},
	}})
	assert.Contains(t, bot.LastText(), "отменён")

	// чужой callback просто подтверждается
	bot.Reset()
	d.HandleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb2", Data: "other",
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 1}},
	}})
	require.Len(t, bot.Calls(), 1)
	_, ok := bot.Calls()[0].(tgbotapi.CallbackConfig)
	assert.True(t, ok)
}

func TestDispatcher_RunStopsOnClose(t *testing.T) {
	d, bot := newTestDispatcher(newFakeService())
	updates := make(chan tgbotapi.Update, 1)
	updates <- message(3, 1, "/start")
	close(updates)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background(), updates)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after channel close")
	}
	assert.Eventually(t, func() bool { return len(bot.Messages()) == 1 }, time.Second, 5*time.Millisecond)
}
