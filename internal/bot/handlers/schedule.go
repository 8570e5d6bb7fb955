package handlers

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/bot/shared/fsmutil"
	"github.com/Spok95/mini-hemis/internal/export"
	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/observability"
	"github.com/Spok95/mini-hemis/internal/schedule"
	"github.com/Spok95/mini-hemis/internal/tg"
)

const pendingWeek = "week"

// TodayMessage — HTML-сообщение с парами дня now (в loc).
func TodayMessage(entries []models.ScheduleEntry, now time.Time, loc *time.Location) string {
	day := schedule.Weekday(now.In(loc))
	return schedule.FormatDay(schedule.ForDay(entries, day))
}

// HandleToday — расписание на сегодня.
func HandleToday(ctx context.Context, bot tg.Bot, src ScheduleSource, chatID int64, now time.Time) {
	entries, err := src.GetScheduleForChat(ctx, chatID)
	if err != nil {
		replyError(bot, chatID, err)
		return
	}
	if _, err := tg.SendHTML(bot, chatID, TodayMessage(entries, now, src.Location())); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// HandleWeek — расписание на неделю файлом xlsx. Повторное нажатие, пока файл готовится, игнорируется.
func HandleWeek(ctx context.Context, bot tg.Bot, src ScheduleSource, chatID int64, now time.Time) {
	if !fsmutil.SetPending(chatID, pendingWeek) {
		_, _ = tg.SendText(bot, chatID, "⏳ Файл уже готовится, подождите.")
		return
	}
	defer fsmutil.ClearPending(chatID, pendingWeek)

	idn, err := src.IdentityForChat(ctx, chatID)
	if err != nil {
		replyError(bot, chatID, err)
		return
	}
	entries, err := src.GetScheduleForChat(ctx, chatID)
	if err != nil {
		replyError(bot, chatID, err)
		return
	}

	owner, group := idn.Login, ""
	if idn.FullName != nil {
		owner = *idn.FullName
	}
	if idn.Group != nil {
		group = *idn.Group
	}
	f, err := export.WeekWorkbook(entries, group)
	if err != nil {
		replyError(bot, chatID, err)
		return
	}
	defer func() { _ = f.Close() }()
	data, err := export.WriteBytes(f)
	if err != nil {
		replyError(bot, chatID, err)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.BuildScheduleFilename(owner, group, weekStart(now.In(src.Location()))),
		Bytes: data,
	})
	doc.Caption = fmt.Sprintf("Расписание на неделю: %d пар", len(entries))
	if _, err := tg.Send(bot, doc); err != nil {
		metrics.HandlerErrors.Inc()
	}
}

// weekStart — понедельник недели t.
func weekStart(t time.Time) time.Time {
	d := schedule.Weekday(t) - 1
	y, m, day := t.AddDate(0, 0, -d).Date()
	return time.Date(y, m, day, 0, 0, 0, 0, t.Location())
}

func replyError(bot tg.Bot, chatID int64, err error) {
	_, text := academic.Describe(err)
	if !academic.IsUserError(err) {
		metrics.HandlerErrors.Inc()
		observability.CaptureErrWith(err, map[string]string{"chat_id": fmt.Sprint(chatID)})
	}
	if _, sendErr := tg.SendText(bot, chatID, "⚠️ "+text); sendErr != nil {
		metrics.HandlerErrors.Inc()
	}
}
