// Package academic — то, чем пользуются HTTP-маршруты, бот и рассылка: профиль, расписание, привязка чата.
package academic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/hemis"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/models"
	"github.com/Spok95/mini-hemis/internal/schedule"
	"github.com/Spok95/mini-hemis/internal/session"
)

// ErrUnknownIdentity — логин или чат ещё не входил через HEMIS.
var ErrUnknownIdentity = errors.New("academic: unknown identity")

// Upstream — вызовы HEMIS, которые нужны сервису.
type Upstream interface {
	session.Authenticator
	FetchProfile(ctx context.Context, token string) (models.Profile, error)
	FetchCurrentSemester(ctx context.Context, token string) (hemis.SemesterCode, error)
	FetchTimetable(ctx context.Context, token string, semester hemis.SemesterCode) ([]hemis.RawTimetableRow, error)
}

// IdentityStore — хранилище учёток (Postgres или память).
type IdentityStore interface {
	session.CredentialStore
	UpsertIdentity(ctx context.Context, idn models.Identity) (models.Identity, error)
	GetIdentityByLogin(ctx context.Context, login string) (models.Identity, error)
	GetIdentityByChatID(ctx context.Context, chatID int64) (models.Identity, error)
	BindChat(ctx context.Context, chatID int64, login string) (string, error)
	ListSubscriberChatIDs(ctx context.Context) ([]int64, error)
}

// Sessions — часть session.Manager, которой пользуется сервис.
type Sessions interface {
	session.TokenSource
	InvalidateCache(ctx context.Context, login string) error
	Enroll(ctx context.Context, login, secret string, save session.SaveFunc) (string, error)
}

type Service struct {
	up       Upstream
	store    IdentityStore
	sessions Sessions
	loc      *time.Location
	log      *zap.Logger
}

func NewService(up Upstream, store IdentityStore, sessions Sessions, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{up: up, store: store, sessions: sessions, loc: loc, log: logging.OrNop(log).Named("academic")}
}

// Location — часовой пояс, в котором считаются дни недели.
func (s *Service) Location() *time.Location { return s.loc }

// GetSchedule — расписание текущего семестра. Семестр и расписание запрашиваются
// независимо: каждый шаг сам переживает одну смену токена.
func (s *Service) GetSchedule(ctx context.Context, login string) ([]models.ScheduleEntry, error) {
	ctx = ctxutil.WithOp(ctx, "schedule")
	if err := s.known(ctx, login); err != nil {
		return nil, err
	}
	sem, err := session.Invoke(ctx, s.sessions, login, s.up.FetchCurrentSemester)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", login, err)
	}
	rows, err := session.Invoke(ctx, s.sessions, login, func(ctx context.Context, token string) ([]hemis.RawTimetableRow, error) {
		return s.up.FetchTimetable(ctx, token, sem)
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", login, err)
	}
	entries := schedule.Normalize(rows, s.loc)
	s.log.Debug("schedule normalized", append(ctxutil.LogFields(ctxutil.WithLogin(ctx, login)),
		zap.Int("rows", len(rows)), zap.Int("entries", len(entries)))...)
	return entries, nil
}

func (s *Service) GetProfile(ctx context.Context, login string) (models.Profile, error) {
	ctx = ctxutil.WithOp(ctx, "profile")
	if err := s.known(ctx, login); err != nil {
		return models.Profile{}, err
	}
	p, err := session.Invoke(ctx, s.sessions, login, s.up.FetchProfile)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile %s: %w", login, err)
	}
	return p, nil
}

// Login проверяет пару логин/пароль в HEMIS и заводит (или обновляет) учётку.
// Вход идёт через менеджер сессий: пока учётка пишется, другие логины этого пользователя ждут.
func (s *Service) Login(ctx context.Context, login, secret string) (models.Identity, models.Profile, error) {
	ctx = ctxutil.WithOp(ctx, "login")

	var (
		p     models.Profile
		saved models.Identity
	)
	_, err := s.sessions.Enroll(ctx, login, secret, func(ctx context.Context, token string) error {
		var err error
		p, err = s.up.FetchProfile(ctx, token)
		if err != nil {
			return err
		}
		idn := models.Identity{
			Login:  login,
			Secret: secret,
			Token:  &token,
			Role:   p.Role(),
			Group:  p.GroupName,
		}
		if p.FullName != "" {
			idn.FullName = &p.FullName
		}
		saved, err = s.store.UpsertIdentity(ctx, idn)
		if err != nil {
			return fmt.Errorf("save identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Identity{}, models.Profile{}, fmt.Errorf("login %s: %w", login, err)
	}

	s.log.Info("identity logged in", zap.String("login", login), zap.String("role", string(saved.Role)))
	return saved, p, nil
}

// LinkChat — Login и привязка telegram-чата. Если чат был привязан к другому логину,
// тот логин отвязывается, а его токен сбрасывается.
func (s *Service) LinkChat(ctx context.Context, chatID int64, login, secret string) (models.Identity, models.Profile, error) {
	ctx = ctxutil.WithChatID(ctx, chatID)
	idn, p, err := s.Login(ctx, login, secret)
	if err != nil {
		return models.Identity{}, models.Profile{}, err
	}
	prev, err := s.store.BindChat(context.WithoutCancel(ctx), chatID, login)
	if err != nil {
		return models.Identity{}, models.Profile{}, fmt.Errorf("link chat %d: %w", chatID, err)
	}
	if prev != "" {
		if err := s.sessions.InvalidateCache(context.WithoutCancel(ctx), prev); err != nil {
			s.log.Warn("invalidate previous identity", zap.String("login", prev), zap.Error(err))
		}
		s.log.Info("chat rebound", zap.Int64("chat_id", chatID), zap.String("from", prev), zap.String("to", login))
	}
	idn.ChatID = &chatID
	return idn, p, nil
}

// IdentityForChat — учётка, привязанная к чату.
func (s *Service) IdentityForChat(ctx context.Context, chatID int64) (models.Identity, error) {
	idn, err := s.store.GetIdentityByChatID(ctx, chatID)
	if errors.Is(err, models.ErrIdentityNotFound) {
		return models.Identity{}, fmt.Errorf("chat %d: %w", chatID, ErrUnknownIdentity)
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("chat %d: %w", chatID, err)
	}
	return idn, nil
}

func (s *Service) GetScheduleForChat(ctx context.Context, chatID int64) ([]models.ScheduleEntry, error) {
	idn, err := s.IdentityForChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, idn.Login)
}

// Subscribers — чаты с привязанной учёткой.
func (s *Service) Subscribers(ctx context.Context) ([]int64, error) {
	ids, err := s.store.ListSubscriberChatIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return ids, nil
}

func (s *Service) known(ctx context.Context, login string) error {
	_, err := s.store.GetIdentityByLogin(ctx, login)
	if errors.Is(err, models.ErrIdentityNotFound) {
		return fmt.Errorf("%s: %w", login, ErrUnknownIdentity)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", login, err)
	}
	return nil
}
