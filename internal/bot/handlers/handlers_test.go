package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/schedule"
	"github.com/Spok95/mini-hemis/internal/testutil/tgfake"
)

type fakeSource struct {
	linked  map[int64]models.Identity
	entries []models.ScheduleEntry
	err     error
}

func (f *fakeSource) IdentityForChat(_ context.Context, chatID int64) (models.Identity, error) {
	if idn, ok := f.linked[chatID]; ok {
		return idn, nil
	}
	return models.Identity{}, fmt.Errorf("chat %d: %w", chatID, academic.ErrUnknownIdentity)
}

func (f *fakeSource) GetScheduleForChat(ctx context.Context, chatID int64) ([]models.ScheduleEntry, error) {
	if _, err := f.IdentityForChat(ctx, chatID); err != nil {
		return nil, err
	}
	return f.entries, f.err
}

func (f *fakeSource) Location() *time.Location { return time.UTC }

func newSource() *fakeSource {
	name, group := "Karimov Aziz", "IT-21"
	return &fakeSource{
		linked: map[int64]models.Identity{1: {Login: "st-1", FullName: &name, Group: &group}},
		entries: []models.ScheduleEntry{
			{DayOfWeek: 1, Time: "10:30", SubjectName: "Physics", TeacherName: "N/A", RoomName: "N/A"},
			{DayOfWeek: 1, Time: "09:00", SubjectName: "Math", TeacherName: "Aliyev", RoomName: "204"},
			{DayOfWeek: 2, Time: "09:00", SubjectName: "History", TeacherName: "N/A", RoomName: "N/A"},
		},
	}
}

var monday = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

func TestHandleStart(t *testing.T) {
	bot := tgfake.New()
	src := newSource()

	HandleStart(context.Background(), bot, src, 2)
	require.Len(t, bot.Messages(), 1)
	assert.Contains(t, bot.LastText(), "/login")
	kb, ok := bot.Messages()[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, kb.Keyboard, 1)

	bot.Reset()
	HandleStart(context.Background(), bot, src, 1)
	assert.Contains(t, bot.LastText(), "/today")
}

func TestHandleToday(t *testing.T) {
	bot := tgfake.New()
	HandleToday(context.Background(), bot, newSource(), 1, monday)

	msgs := bot.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)
	assert.Contains(t, msgs[0].Text, "Math")
	assert.Contains(t, msgs[0].Text, "Physics")
	assert.NotContains(t, msgs[0].Text, "History")
}

func TestHandleToday_NoLessonsOnSunday(t *testing.T) {
	bot := tgfake.New()
	HandleToday(context.Background(), bot, newSource(), 1, monday.AddDate(0, 0, 6))
	assert.Equal(t, schedule.NoLessonsText, bot.LastText())
}

func TestHandleToday_Errors(t *testing.T) {
	bot := tgfake.New()
	HandleToday(context.Background(), bot, newSource(), 99, monday)
	assert.Contains(t, bot.LastText(), academic.MsgUnknownIdentity)

	src := newSource()
	src.err = &hemis.Error{Op: "timetable", Kind: hemis.KindUpstream, Status: 502}
	HandleToday(context.Background(), bot, src, 1, monday)
	assert.Contains(t, bot.LastText(), academic.MsgUpstreamDown)
}

func TestHandleWeek(t *testing.T) {
	bot := tgfake.New()
	HandleWeek(context.Background(), bot, newSource(), 1, monday.AddDate(0, 0, 2))

	var doc *tgbotapi.DocumentConfig
	for _, c := range bot.Calls() {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			doc = &d
		}
	}
	require.NotNil(t, doc)
	fb, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Contains(t, fb.Name, "Karimov Aziz")
	assert.Contains(t, fb.Name, "2024-01-01")
	assert.NotEmpty(t, fb.Bytes)
	assert.Contains(t, doc.Caption, "3")
}

func TestWeekStart(t *testing.T) {
	sunday := time.Date(2024, 1, 7, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), weekStart(sunday))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), weekStart(monday))
}
