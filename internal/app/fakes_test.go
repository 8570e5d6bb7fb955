package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/models"
)

// fakeService — academic.Service в памяти: логин "st-N" с паролем "pw".
type fakeService struct {
	mu       sync.Mutex
	chats    map[int64]string
	entries  []models.ScheduleEntry
	failChat map[int64]error
	subsErr  error
}

func newFakeService() *fakeService {
	return &fakeService{
		chats: map[int64]string{},
		entries: []models.ScheduleEntry{
			{DayOfWeek: 1, Time: "09:00", SubjectName: "Math", TeacherName: "Aliyev", GroupName: "IT-21", RoomName: "204"},
			{DayOfWeek: 2, Time: "09:00", SubjectName: "History", TeacherName: "N/A", GroupName: "IT-21", RoomName: "N/A"},
		},
		failChat: map[int64]error{},
	}
}

func (f *fakeService) Login(_ context.Context, login, secret string) (models.Identity, models.Profile, error) {
	if secret != "pw" {
		return models.Identity{}, models.Profile{}, fmt.Errorf("login %s: %w", login, &hemis.Error{Op: "authenticate", Kind: hemis.KindAuthFailure})
	}
	g := "IT-21"
	return models.Identity{ID: 1, Login: login, Role: models.Student, Group: &g},
		models.Profile{FullName: "Karimov Aziz", IsStudent: true, GroupName: &g}, nil
}

func (f *fakeService) LinkChat(ctx context.Context, chatID int64, login, secret string) (models.Identity, models.Profile, error) {
	idn, p, err := f.Login(ctx, login, secret)
	if err != nil {
		return idn, p, err
	}
	f.mu.Lock()
	f.chats[chatID] = login
	f.mu.Unlock()
	idn.ChatID = &chatID
	return idn, p, nil
}

func (f *fakeService) known(login string) error {
	if login == "ghost" {
		return fmt.Errorf("%s: %w", login, academic.ErrUnknownIdentity)
	}
	return nil
}

func (f *fakeService) GetProfile(ctx context.Context, login string) (models.Profile, error) {
	if err := f.known(login); err != nil {
		return models.Profile{}, err
	}
	_, p, err := f.Login(ctx, login, "pw")
	return p, err
}

func (f *fakeService) GetSchedule(_ context.Context, login string) ([]models.ScheduleEntry, error) {
	if err := f.known(login); err != nil {
		return nil, err
	}
	if login == "down" {
		return nil, &hemis.Error{Op: "timetable", Kind: hemis.KindUpstream, Status: 502}
	}
	return f.entries, nil
}

func (f *fakeService) IdentityForChat(_ context.Context, chatID int64) (models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	login, ok := f.chats[chatID]
	if !ok {
		return models.Identity{}, fmt.Errorf("chat %d: %w", chatID, academic.ErrUnknownIdentity)
	}
	return models.Identity{Login: login, ChatID: &chatID}, nil
}

func (f *fakeService) GetScheduleForChat(ctx context.Context, chatID int64) ([]models.ScheduleEntry, error) {
	idn, err := f.IdentityForChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	ferr := f.failChat[chatID]
	f.mu.Unlock()
	if ferr != nil {
		return nil, ferr
	}
	return f.GetSchedule(ctx, idn.Login)
}

func (f *fakeService) Subscribers(context.Context) ([]int64, error) {
	if f.subsErr != nil {
		return nil, f.subsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.chats))
	for id := range f.chats {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeService) Location() *time.Location { return time.UTC }

var monday = time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
