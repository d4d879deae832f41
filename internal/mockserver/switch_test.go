package mockserver

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
)

func newSwitch(t *testing.T) (*AISwitch, *Server, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	srv, err := New(Options{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return NewAISwitch(rdb, srv, zaptest.NewLogger(t)), srv, mr
}

func TestAISwitchInit(t *testing.T) {
	sw, srv, mr := newSwitch(t)
	ctx := context.Background()

	require.NoError(t, sw.Init(ctx))
	assert.False(t, srv.AIUnavailable())

	require.NoError(t, mr.Set(infra.RedisKeyMockAIUnavailable, "down"))
	require.NoError(t, sw.Init(ctx))
	assert.True(t, srv.AIUnavailable())
}

func TestAISwitchListen(t *testing.T) {
	sw, srv, mr := newSwitch(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		sw.Listen(ctx, ready)
		close(done)
	}()
	<-ready

	require.NoError(t, sw.Set(ctx, true))
	assert.Eventually(t, srv.AIUnavailable, time.Second, 10*time.Millisecond)
	got, err := mr.Get(infra.RedisKeyMockAIUnavailable)
	require.NoError(t, err)
	assert.Equal(t, "down", got)

	// мусор в канале игнорируется
	mr.Publish(infra.RedisChannelMockAISwitch, "reboot")
	require.NoError(t, sw.Set(ctx, false))
	assert.Eventually(t, func() bool { return !srv.AIUnavailable() }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}
