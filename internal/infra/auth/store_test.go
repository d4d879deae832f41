package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("access", "refresh")

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access", tok)

	require.NoError(t, s.SetTokens(ctx, "access-2", ""))
	tok, _ = s.Token(ctx)
	rt, _ := s.RefreshToken(ctx)
	assert.Equal(t, "access-2", tok)
	assert.Equal(t, "refresh", rt, "empty refresh token keeps the previous one")

	require.NoError(t, s.Clear(ctx))
	tok, _ = s.Token(ctx)
	assert.Empty(t, tok)
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb, "kindergarten_token", "kindergarten_refresh_token"), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	tok, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok, "missing key is not an error")

	require.NoError(t, s.SetTokens(ctx, "access", "refresh"))
	assert.Equal(t, "access", mustGet(t, mr, "kyyup:auth:kindergarten_token"))
	assert.Equal(t, "refresh", mustGet(t, mr, "kyyup:auth:kindergarten_refresh_token"))

	rt, err := s.RefreshToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh", rt)

	require.NoError(t, s.Clear(ctx))
	assert.False(t, mr.Exists("kyyup:auth:kindergarten_token"))
}

func TestRedisStoreLock(t *testing.T) {
	ctx := context.Background()
	a, mr := newRedisStore(t)
	b := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "kindergarten_token", "kindergarten_refresh_token")

	ok, err := a.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not get the lock")

	// чужой Unlock не снимает блокировку
	require.NoError(t, b.Unlock(ctx))
	assert.True(t, mr.Exists("kyyup:lock:token-refresh"))

	require.NoError(t, a.Unlock(ctx))
	assert.False(t, mr.Exists("kyyup:lock:token-refresh"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
