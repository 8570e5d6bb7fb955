package academic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inmemdb "github.com/Spok95/mini-hemis/internal/db/inmem"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/session"
)

// fakeHEMIS выдаёт токены "<login>-<n>" и считает, какие токены ещё действуют.
type fakeHEMIS struct {
	mu       sync.Mutex
	secrets  map[string]string
	valid    map[string]bool
	logins   int
	semester hemis.SemesterCode
	rows     []hemis.RawTimetableRow
	down     bool
	delay    time.Duration
	inflight int
	peak     int
}

func newFakeHEMIS() *fakeHEMIS {
	d := hemis.Timestamp(1704067200)
	start, subj := "09:00", "Math"
	return &fakeHEMIS{
		secrets:  map[string]string{"st-1": "pw", "st-2": "pw2"},
		valid:    map[string]bool{},
		semester: "12",
		rows: []hemis.RawTimetableRow{
			{LessonDate: &d, LessonPair: &hemis.LessonPair{StartTime: &start}, Subject: &hemis.Named{Name: &subj}},
			{LessonDate: &d, LessonPair: &hemis.LessonPair{StartTime: &start}},
		},
	}
}

func (f *fakeHEMIS) Authenticate(_ context.Context, login, secret string) (string, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	delay := f.delay
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.secrets[login] != secret {
		return "", &hemis.Error{Op: "authenticate", Kind: hemis.KindAuthFailure, Msg: "Invalid login or password"}
	}
	f.logins++
	tok := fmt.Sprintf("%s-%d", login, f.logins)
	f.valid[tok] = true
	return tok, nil
}

func (f *fakeHEMIS) check(op, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return &hemis.Error{Op: op, Kind: hemis.KindUpstream, Status: http.StatusBadGateway}
	}
	if !f.valid[token] {
		return &hemis.Error{Op: op, Kind: hemis.KindUnauthorized, Status: http.StatusUnauthorized}
	}
	return nil
}

func (f *fakeHEMIS) expireAll() {
	f.mu.Lock()
	f.valid = map[string]bool{}
	f.mu.Unlock()
}

func (f *fakeHEMIS) FetchProfile(_ context.Context, token string) (models.Profile, error) {
	if err := f.check("profile", token); err != nil {
		return models.Profile{}, err
	}
	g := "IT-21"
	return models.Profile{FullName: "Karimov Aziz", IsStudent: true, GroupName: &g}, nil
}

func (f *fakeHEMIS) FetchCurrentSemester(_ context.Context, token string) (hemis.SemesterCode, error) {
	if err := f.check("semester", token); err != nil {
		return "", err
	}
	if f.semester == "" {
		return "", &hemis.Error{Op: "semester", Kind: hemis.KindNotFound}
	}
	return f.semester, nil
}

func (f *fakeHEMIS) FetchTimetable(_ context.Context, token string, _ hemis.SemesterCode) ([]hemis.RawTimetableRow, error) {
	if err := f.check("timetable", token); err != nil {
		return nil, err
	}
	return f.rows, nil
}

func newService(t *testing.T) (*Service, *fakeHEMIS, *inmemdb.IdentityStore) {
	t.Helper()
	up := newFakeHEMIS()
	store := inmemdb.New()
	m := session.NewManager(up, store, nil)
	return NewService(up, store, m, time.UTC, nil), up, store
}

func TestLogin_CreatesIdentity(t *testing.T) {
	svc, _, store := newService(t)

	idn, p, err := svc.Login(context.Background(), "st-1", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.Student, idn.Role)
	assert.Equal(t, "Karimov Aziz", p.FullName)
	require.NotNil(t, idn.Group)
	assert.Equal(t, "IT-21", *idn.Group)

	cred, err := store.ReadCredential(context.Background(), "st-1")
	require.NoError(t, err)
	assert.True(t, cred.HasToken())
}

func TestLogin_SerializedWithTokenRefresh(t *testing.T) {
	svc, up, _ := newService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "st-1", "pw")
	require.NoError(t, err)
	require.NoError(t, svc.sessions.InvalidateCache(ctx, "st-1"))
	up.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _, err := svc.Login(ctx, "st-1", "pw")
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := svc.GetProfile(ctx, "st-1")
		assert.NoError(t, err)
	}()
	wg.Wait()

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, 1, up.peak)
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, _, store := newService(t)

	_, _, err := svc.Login(context.Background(), "st-1", "nope")
	assert.ErrorIs(t, err, hemis.ErrAuthFailure)
	_, err = store.GetIdentityByLogin(context.Background(), "st-1")
	assert.ErrorIs(t, err, models.ErrIdentityNotFound)
}

func TestGetSchedule(t *testing.T) {
	svc, up, _ := newService(t)
	_, _, err := svc.Login(context.Background(), "st-1", "pw")
	require.NoError(t, err)

	entries, err := svc.GetSchedule(context.Background(), "st-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Math", entries[0].SubjectName)
	assert.Equal(t, 1, up.logins, "token from Login is reused")
}

func TestGetSchedule_ExpiredTokenRelogsOnce(t *testing.T) {
	svc, up, _ := newService(t)
	_, _, err := svc.Login(context.Background(), "st-1", "pw")
	require.NoError(t, err)
	up.expireAll()

	entries, err := svc.GetSchedule(context.Background(), "st-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 2, up.logins)
}

func TestGetSchedule_Errors(t *testing.T) {
	svc, up, _ := newService(t)

	_, err := svc.GetSchedule(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownIdentity)

	_, _, err = svc.Login(context.Background(), "st-1", "pw")
	require.NoError(t, err)

	up.semester = ""
	_, err = svc.GetSchedule(context.Background(), "st-1")
	assert.ErrorIs(t, err, hemis.ErrNotFound)

	up.down = true
	_, err = svc.GetProfile(context.Background(), "st-1")
	assert.ErrorIs(t, err, hemis.ErrUpstream)
}

func TestLinkChat_RebindInvalidatesPrevious(t *testing.T) {
	svc, _, store := newService(t)
	ctx := context.Background()

	_, _, err := svc.LinkChat(ctx, 100, "st-1", "pw")
	require.NoError(t, err)
	idn, err := svc.IdentityForChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "st-1", idn.Login)

	_, _, err = svc.LinkChat(ctx, 100, "st-2", "pw2")
	require.NoError(t, err)

	idn, err = svc.IdentityForChat(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "st-2", idn.Login)

	cred, err := store.ReadCredential(ctx, "st-1")
	require.NoError(t, err)
	assert.False(t, cred.HasToken())

	subs, err := svc.Subscribers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100}, subs)

	entries, err := svc.GetScheduleForChat(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = svc.GetScheduleForChat(ctx, 999)
	assert.ErrorIs(t, err, ErrUnknownIdentity)
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("x: %w", ErrUnknownIdentity), http.StatusNotFound, MsgUnknownIdentity},
		{&hemis.Error{Kind: hemis.KindAuthFailure}, http.StatusUnauthorized, MsgAuthRequired},
		{&hemis.Error{Kind: hemis.KindUnauthorized}, http.StatusUnauthorized, MsgAuthRequired},
		{&hemis.Error{Kind: hemis.KindNotFound}, http.StatusNotFound, MsgDataUnavailable},
		{&hemis.Error{Kind: hemis.KindUpstream}, http.StatusBadGateway, MsgUpstreamDown},
		{errors.New("db down"), http.StatusInternalServerError, MsgInternal},
	}
	for _, tt := range cases {
		status, msg := Describe(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.msg, msg)
	}
	assert.True(t, IsUserError(&hemis.Error{Kind: hemis.KindUpstream}))
	assert.False(t, IsUserError(errors.New("db down")))
}
