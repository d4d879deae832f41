package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"github.com/yyupcompany/kyyupgame-sub066/internal/mockserver"
)

func main() {
	addr := flag.String("addr", ":3000", "Listen address")
	secret := flag.String("secret", os.Getenv("MOCK_JWT_SECRET"), "HMAC secret for issued tokens")
	ttl := flag.Duration("ttl", 15*time.Minute, "Access token lifetime")
	aiDown := flag.Bool("ai-down", false, "Answer 503 on /api/ai/*")
	shared := flag.Bool("redis-switch", false, "Share the AI switch through Redis")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	// 1. Бэкенд с фикстурами
	reg := prometheus.NewRegistry()
	backend, err := mockserver.New(mockserver.Options{
		Secret:    []byte(*secret),
		AccessTTL: *ttl,
		Registry:  reg,
		Gatherer:  reg,
	}, logger)
	if err != nil {
		logger.Fatal("failed to init mock backend", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *shared {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		sw := mockserver.NewAISwitch(rdb, backend, logger)
		if err := sw.Init(ctx); err != nil {
			logger.Fatal("failed to init ai switch", zap.Error(err))
		}
		if *aiDown {
			if err := sw.Set(ctx, true); err != nil {
				logger.Fatal("failed to set ai switch", zap.Error(err))
			}
		}
		go sw.Listen(ctx, nil)
	} else {
		backend.SetAIUnavailable(*aiDown)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      backend,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 2. Graceful Shutdown
	go func() {
		logger.Info("mock API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("mock API stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
	logger.Info("mock API exited properly")
}
