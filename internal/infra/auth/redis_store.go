package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
)

// Снимаем блокировку, только если она все еще наша
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStore хранит токены в Redis, чтобы несколько процессов работали под одной сессией.
type RedisStore struct {
	rdb        *redis.Client
	tokenKey   string
	refreshKey string
	lockKey    string
	owner      string
}

func NewRedisStore(rdb *redis.Client, tokenName, refreshName string) *RedisStore {
	return &RedisStore{
		rdb:        rdb,
		tokenKey:   infra.TokenStorageKey(tokenName),
		refreshKey: infra.TokenStorageKey(refreshName),
		lockKey:    infra.RedisKeyLockTokenRefresh,
		owner:      uuid.NewString(),
	}
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	return s.get(ctx, s.tokenKey)
}

func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, s.refreshKey)
}

func (s *RedisStore) get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) SetTokens(ctx context.Context, token, refreshToken string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.tokenKey, token, 0)
	if refreshToken != "" {
		pipe.Set(ctx, s.refreshKey, refreshToken, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey, s.refreshKey).Err(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// TryLock Распределенная блокировка (SetNX) на время обновления токена
func (s *RedisStore) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.lockKey, s.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire refresh lock: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Unlock(ctx context.Context) error {
	if err := unlockScript.Run(ctx, s.rdb, []string{s.lockKey}, s.owner).Err(); err != nil {
		return fmt.Errorf("release refresh lock: %w", err)
	}
	return nil
}
