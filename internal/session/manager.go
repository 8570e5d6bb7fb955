package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Spok95/mini-hemis/internal/ctxutil"
	"github.com/Spok95/mini-hemis/internal/logging"
	"github.com/Spok95/mini-hemis/internal/metrics"
)

// Authenticator — единственный сетевой вызов, который нужен менеджеру.
type Authenticator interface {
	Authenticate(ctx context.Context, login, secret string) (string, error)
}

// TokenSource — то, чем пользуется Invoke.
type TokenSource interface {
	GetToken(ctx context.Context, login string) (string, error)
	ForceRefresh(ctx context.Context, login string) (string, error)
}

// Manager выдаёт токены HEMIS по логину и обновляет их по требованию.
// На один логин одновременно идёт не больше одной аутентификации.
type Manager struct {
	auth  Authenticator
	store CredentialStore
	cache *TokenCache
	locks *KeyedLocker[string]
	group singleflight.Group
	log   *zap.Logger
}

var _ TokenSource = (*Manager)(nil)

func NewManager(auth Authenticator, store CredentialStore, log *zap.Logger) *Manager {
	return &Manager{
		auth:  auth,
		store: store,
		cache: NewTokenCache(store),
		locks: NewKeyedLocker[string](),
		log:   logging.OrNop(log).Named("session"),
	}
}

// GetToken — токен из кэша без сети; если его нет — логин в HEMIS и сохранение.
func (m *Manager) GetToken(ctx context.Context, login string) (string, error) {
	unlock := m.locks.Lock(login)
	defer unlock()

	tok, ok, err := m.cache.Get(ctx, login)
	if err != nil {
		return "", fmt.Errorf("session %s: %w", login, err)
	}
	if ok {
		return tok, nil
	}
	return m.authenticate(ctx, login, "miss")
}

// ForceRefresh всегда ходит в HEMIS и перезаписывает кэш.
// Одновременные вызовы для одного логина склеиваются в одну аутентификацию.
func (m *Manager) ForceRefresh(ctx context.Context, login string) (string, error) {
	ctx = ctxutil.WithLogin(ctx, login)
	v, err, shared := m.group.Do(login, func() (any, error) {
		unlock := m.locks.Lock(login)
		defer unlock()
		return m.authenticate(ctx, login, "expired")
	})
	if shared {
		m.log.Debug("refresh coalesced", ctxutil.LogFields(ctx)...)
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// InvalidateCache забывает токен без обращения к HEMIS.
func (m *Manager) InvalidateCache(ctx context.Context, login string) error {
	unlock := m.locks.Lock(login)
	defer unlock()
	if err := m.cache.Invalidate(ctx, login); err != nil {
		return fmt.Errorf("session %s: %w", login, err)
	}
	return nil
}

// SaveFunc записывает учётку вместе со свежим токеном. Вызывается под замком логина.
type SaveFunc func(ctx context.Context, token string) error

// Enroll — вход по паролю, который только что ввёл пользователь; учётки в хранилище может ещё не быть.
// Аутентификация и save идут под тем же замком, что и GetToken/ForceRefresh.
func (m *Manager) Enroll(ctx context.Context, login, secret string, save SaveFunc) (string, error) {
	unlock := m.locks.Lock(login)
	defer unlock()
	ctx = ctxutil.WithLogin(context.WithoutCancel(ctx), login)
	log := m.log.With(ctxutil.LogFields(ctx)...)

	tok, err := m.auth.Authenticate(ctx, login, secret)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("enroll", "failed").Inc()
		log.Warn("hemis login failed", zap.String("reason", "enroll"), zap.Error(err))
		return "", err
	}
	if err := save(ctx, tok); err != nil {
		metrics.TokenRefreshes.WithLabelValues("enroll", "persist_failed").Inc()
		return "", fmt.Errorf("session %s: %w", login, err)
	}
	m.cache.Remember(login, tok)
	metrics.TokenRefreshes.WithLabelValues("enroll", "ok").Inc()
	log.Info("hemis token issued", zap.String("reason", "enroll"))
	return tok, nil
}

// authenticate вызывается под замком логина. Отмена ctx не прерывает логин и запись токена,
// иначе HEMIS мог бы выдать токен, который мы не сохранили.
func (m *Manager) authenticate(ctx context.Context, login, reason string) (string, error) {
	ctx = ctxutil.WithLogin(context.WithoutCancel(ctx), login)
	log := m.log.With(ctxutil.LogFields(ctx)...)

	cred, err := m.store.ReadCredential(ctx, login)
	if err != nil {
		return "", fmt.Errorf("session %s: read credential: %w", login, err)
	}
	tok, err := m.auth.Authenticate(ctx, cred.Login, cred.Secret)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues(reason, "failed").Inc()
		log.Warn("hemis login failed", zap.String("reason", reason), zap.Error(err))
		return "", err
	}
	if err := m.cache.Set(ctx, login, tok); err != nil {
		metrics.TokenRefreshes.WithLabelValues(reason, "persist_failed").Inc()
		return "", fmt.Errorf("session %s: %w", login, err)
	}
	metrics.TokenRefreshes.WithLabelValues(reason, "ok").Inc()
	log.Info("hemis token refreshed", zap.String("reason", reason))
	return tok, nil
}
