package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/Spok95/mini-hemis/internal/metrics"
	"github.com/Spok95/mini-hemis/internal/models"
)

// CredentialStore — внешнее хранилище учёток: пароль на чтение, токен на запись.
type CredentialStore interface {
	ReadCredential(ctx context.Context, login string) (models.Credential, error)
	WriteToken(ctx context.Context, login, token string) error
	ClearToken(ctx context.Context, login string) error
}

// TokenCache — последний известный валидный токен на логин.
// При первом обращении читает хранилище, запись идёт сначала в хранилище, потом в память.
type TokenCache struct {
	store CredentialStore

	mu      sync.RWMutex
	entries map[string]string // "" — токена заведомо нет
}

func NewTokenCache(store CredentialStore) *TokenCache {
	return &TokenCache{store: store, entries: make(map[string]string)}
}

// Get возвращает токен; ok == false, если токена нет.
func (c *TokenCache) Get(ctx context.Context, login string) (token string, ok bool, err error) {
	c.mu.RLock()
	tok, loaded := c.entries[login]
	c.mu.RUnlock()
	if loaded {
		c.count(tok)
		return tok, tok != "", nil
	}

	cred, err := c.store.ReadCredential(ctx, login)
	if err != nil {
		return "", false, fmt.Errorf("read credential: %w", err)
	}
	if cred.HasToken() {
		tok = *cred.Token
	}

	c.mu.Lock()
	if cur, raced := c.entries[login]; raced {
		tok = cur
	} else {
		c.entries[login] = tok
	}
	c.mu.Unlock()

	c.count(tok)
	return tok, tok != "", nil
}

// Set сохраняет токен. Ошибка записи в хранилище — ошибка всей операции.
func (c *TokenCache) Set(ctx context.Context, login, token string) error {
	if err := c.store.WriteToken(ctx, login, token); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	c.mu.Lock()
	c.entries[login] = token
	c.mu.Unlock()
	return nil
}

// Invalidate забывает токен и в памяти, и в хранилище.
func (c *TokenCache) Invalidate(ctx context.Context, login string) error {
	c.mu.Lock()
	c.entries[login] = ""
	c.mu.Unlock()
	if err := c.store.ClearToken(ctx, login); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Remember кладёт токен только в память: хранилище уже записал вызывающий.
func (c *TokenCache) Remember(login, token string) {
	c.mu.Lock()
	c.entries[login] = token
	c.mu.Unlock()
}

func (c *TokenCache) count(tok string) {
	if tok != "" {
		metrics.TokenCache.WithLabelValues("hit").Inc()
	} else {
		metrics.TokenCache.WithLabelValues("miss").Inc()
	}
}
