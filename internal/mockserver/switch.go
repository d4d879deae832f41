package mockserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
)

const (
	switchDown = "down"
	switchUp   = "up"
)

// AISwitch держит переключатель AI 503 в Redis, чтобы им управляли все инстансы сразу.
type AISwitch struct {
	rdb    *redis.Client
	server *Server
	logger *zap.Logger
}

func NewAISwitch(rdb *redis.Client, server *Server, logger *zap.Logger) *AISwitch {
	return &AISwitch{rdb: rdb, server: server, logger: logger.Named("ai-switch")}
}

// Init подтягивает текущее состояние при старте.
func (s *AISwitch) Init(ctx context.Context) error {
	v, err := s.rdb.Get(ctx, infra.RedisKeyMockAIUnavailable).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load ai switch: %w", err)
	}
	s.server.SetAIUnavailable(v == switchDown)
	return nil
}

// Set сохраняет состояние и рассылает его подписчикам.
func (s *AISwitch) Set(ctx context.Context, down bool) error {
	state := switchUp
	if down {
		state = switchDown
	}
	if err := s.rdb.Set(ctx, infra.RedisKeyMockAIUnavailable, state, 0).Err(); err != nil {
		return fmt.Errorf("store ai switch: %w", err)
	}
	if err := s.rdb.Publish(ctx, infra.RedisChannelMockAISwitch, state).Err(); err != nil {
		return fmt.Errorf("publish ai switch: %w", err)
	}
	return nil
}

// Listen применяет команды из канала до отмены ctx. ready закрывается после подписки.
func (s *AISwitch) Listen(ctx context.Context, ready chan<- struct{}) {
	pubsub := s.rdb.Subscribe(ctx, infra.RedisChannelMockAISwitch)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		s.logger.Error("subscribe failed", zap.Error(err))
		if ready != nil {
			close(ready)
		}
		return
	}
	if ready != nil {
		close(ready)
	}
	s.logger.Info("ai switch listener started")

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				s.logger.Info("ai switch channel closed")
				return
			}
			switch msg.Payload {
			case switchDown, switchUp:
				s.server.SetAIUnavailable(msg.Payload == switchDown)
				s.logger.Info("ai switch changed", zap.String("state", msg.Payload))
			default:
				s.logger.Warn("unknown ai switch command", zap.String("payload", msg.Payload))
			}
		case <-ctx.Done():
			s.logger.Info("ai switch listener stopping")
			return
		}
	}
}
