// Package inmemdb — хранилище учёток в памяти: для тестов и для запуска без Postgres (DATABASE_URL=memory://).
package inmemdb

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Spok95/mini-hemis/internal/models"
)

type IdentityStore struct {
	mutex   sync.RWMutex
	byLogin map[string]*models.Identity
	pkCount int64
}

func New() *IdentityStore {
	return &IdentityStore{byLogin: make(map[string]*models.Identity)}
}

func (s *IdentityStore) ReadCredential(_ context.Context, login string) (models.Credential, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	idn, ok := s.byLogin[login]
	if !ok {
		return models.Credential{}, models.ErrIdentityNotFound
	}
	return models.Credential{Login: idn.Login, Secret: idn.Secret, Token: copyStr(idn.Token)}, nil
}

func (s *IdentityStore) WriteToken(_ context.Context, login, token string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idn, ok := s.byLogin[login]
	if !ok {
		return models.ErrIdentityNotFound
	}
	idn.Token = &token
	idn.UpdatedAt = time.Now()
	return nil
}

func (s *IdentityStore) ClearToken(_ context.Context, login string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idn, ok := s.byLogin[login]
	if !ok {
		return models.ErrIdentityNotFound
	}
	idn.Token = nil
	idn.UpdatedAt = time.Now()
	return nil
}

// UpsertIdentity создаёт запись или обновляет всё, кроме id, чата и даты создания.
func (s *IdentityStore) UpsertIdentity(_ context.Context, idn models.Identity) (models.Identity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	if cur, ok := s.byLogin[idn.Login]; ok {
		idn.ID = cur.ID
		idn.ChatID = cur.ChatID
		idn.CreatedAt = cur.CreatedAt
	} else {
		s.pkCount++
		idn.ID = s.pkCount
		idn.ChatID = nil
		idn.CreatedAt = now
	}
	idn.UpdatedAt = now
	stored := clone(idn)
	s.byLogin[idn.Login] = &stored
	return clone(stored), nil
}

func (s *IdentityStore) GetIdentityByLogin(_ context.Context, login string) (models.Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if idn, ok := s.byLogin[login]; ok {
		return clone(*idn), nil
	}
	return models.Identity{}, models.ErrIdentityNotFound
}

func (s *IdentityStore) GetIdentityByChatID(_ context.Context, chatID int64) (models.Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if idn := s.findByChat(chatID); idn != nil {
		return clone(*idn), nil
	}
	return models.Identity{}, models.ErrIdentityNotFound
}

// BindChat привязывает чат к логину. Возвращает логин, от которого чат отвязан ("" если такого нет).
func (s *IdentityStore) BindChat(_ context.Context, chatID int64, login string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	idn, ok := s.byLogin[login]
	if !ok {
		return "", models.ErrIdentityNotFound
	}
	prev := ""
	if other := s.findByChat(chatID); other != nil && other.Login != login {
		other.ChatID = nil
		other.UpdatedAt = time.Now()
		prev = other.Login
	}
	idn.ChatID = &chatID
	idn.UpdatedAt = time.Now()
	return prev, nil
}

func (s *IdentityStore) ListSubscriberChatIDs(_ context.Context) ([]int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := make([]int64, 0, len(s.byLogin))
	for _, idn := range s.byLogin {
		if idn.ChatID != nil {
			ids = append(ids, *idn.ChatID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *IdentityStore) findByChat(chatID int64) *models.Identity {
	for _, idn := range s.byLogin {
		if idn.ChatID != nil && *idn.ChatID == chatID {
			return idn
		}
	}
	return nil
}

func clone(idn models.Identity) models.Identity {
	idn.Token = copyStr(idn.Token)
	idn.FullName = copyStr(idn.FullName)
	idn.Group = copyStr(idn.Group)
	if idn.ChatID != nil {
		v := *idn.ChatID
		idn.ChatID = &v
	}
	return idn
}

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
