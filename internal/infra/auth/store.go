package auth

import (
	"context"
	"sync"
	"time"
)

// TokenStore место, где клиент держит пару access/refresh токенов.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, token, refreshToken string) error
	Clear(ctx context.Context) error
}

// Locker реализуют хранилища, общие для нескольких инстансов.
// Обновление токена тогда выполняет только владелец блокировки.
type Locker interface {
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

type MemoryStore struct {
	mu           sync.RWMutex
	token        string
	refreshToken string
}

func NewMemoryStore(token, refreshToken string) *MemoryStore {
	return &MemoryStore{token: token, refreshToken: refreshToken}
}

func (s *MemoryStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken, nil
}

func (s *MemoryStore) SetTokens(_ context.Context, token, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	// Бэкенд не всегда ротирует refresh токен
	if refreshToken != "" {
		s.refreshToken = refreshToken
	}
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.refreshToken = "", ""
	return nil
}
