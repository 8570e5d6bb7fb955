package session

import "sync"

// KeyedLocker — мьютекс на ключ (логин, chatID). Разные ключи друг друга не ждут.
// Записи удаляются, когда за ключ больше никто не держится.
type KeyedLocker[K comparable] struct {
	mu   sync.Mutex
	byID map[K]*keyedMutex
}

type keyedMutex struct {
	sync.Mutex
	refs int
}

func NewKeyedLocker[K comparable]() *KeyedLocker[K] {
	return &KeyedLocker[K]{byID: make(map[K]*keyedMutex)}
}

// Lock захватывает мьютекс ключа и возвращает функцию освобождения.
func (l *KeyedLocker[K]) Lock(key K) func() {
	l.mu.Lock()
	m, ok := l.byID[key]
	if !ok {
		m = &keyedMutex{}
		l.byID[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.byID, key)
		}
		l.mu.Unlock()
	}
}

func (l *KeyedLocker[K]) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byID)
}
