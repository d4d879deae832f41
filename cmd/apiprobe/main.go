package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yyupcompany/kyyupgame-sub066/internal/infra"
	"github.com/yyupcompany/kyyupgame-sub066/internal/infra/auth"
	"github.com/yyupcompany/kyyupgame-sub066/internal/journal"
	"github.com/yyupcompany/kyyupgame-sub066/internal/probe"
	"github.com/yyupcompany/kyyupgame-sub066/internal/repository/postgres"
	"github.com/yyupcompany/kyyupgame-sub066/internal/transport"
)

var errEndpointsFailed = errors.New("some endpoints failed")

type flags struct {
	format      string
	output      string
	categories  string
	username    string
	password    string
	writes      bool
	concurrency int
}

func main() {
	// .env не обязателен
	_ = godotenv.Load()

	var f flags
	flag.StringVar(&f.format, "format", "markdown", "Report format: markdown or yaml")
	flag.StringVar(&f.output, "out", "", "Report file, stdout if empty")
	flag.StringVar(&f.categories, "only", "", "Comma-separated categories to probe")
	flag.StringVar(&f.username, "user", os.Getenv("KYYUP_USERNAME"), "Login before probing")
	flag.StringVar(&f.password, "password", os.Getenv("KYYUP_PASSWORD"), "Password for -user")
	flag.BoolVar(&f.writes, "writes", false, "Also call endpoints that change data")
	flag.IntVar(&f.concurrency, "concurrency", 4, "Parallel requests")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	err = run(cfg, f, logger)
	_ = logger.Sync()
	switch {
	case errors.Is(err, errEndpointsFailed):
		os.Exit(1)
	case err != nil:
		logger.Error("probe aborted", zap.Error(err))
		os.Exit(2)
	}
}

func run(cfg *infra.Config, f flags, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Метрики: транспорт и пробник пишут в один реестр, он же уходит в textfile
	reg := prometheus.NewRegistry()
	opts := []transport.Option{
		transport.WithLogger(logger),
		transport.WithMetrics(transport.NewMetrics(reg)),
		transport.WithProactiveRefresh(),
	}

	// 2. Хранилище токенов
	if cfg.Auth.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis unreachable: %w", err)
		}
		opts = append(opts, transport.WithTokenStore(auth.NewRedisStore(rdb, cfg.Auth.TokenKey, cfg.Auth.RefreshTokenKey)))
	}

	// 3. Журнал вызовов в Postgres
	if cfg.Journal.Enabled && cfg.Database.URL != "" {
		repo, err := postgres.NewJournalRepo(cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return err
		}
		defer repo.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = repo.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("journal database unreachable: %w", err)
		}

		j := journal.New(repo, journal.Options{
			BufferSize:    cfg.Journal.BufferSize,
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, logger)
		j.Start()
		defer j.Stop()
		opts = append(opts, transport.WithJournal(j))
	}

	client := transport.NewClient(cfg, opts...)

	if f.username != "" {
		if err := client.Login(ctx, f.username, f.password); err != nil {
			return fmt.Errorf("login as %s: %w", f.username, err)
		}
	}
	checkToken(ctx, cfg, client, logger)

	// 4. Прогон
	endpoints := probe.Catalog()
	if f.categories != "" {
		endpoints = probe.Filter(endpoints, strings.Split(f.categories, ",")...)
	}
	runner := probe.NewRunner(client, endpoints, probe.Options{
		Concurrency: f.concurrency,
		Writes:      f.writes,
	}, probe.NewMetrics(reg), logger)

	logger.Info("probe started",
		zap.String("base_url", client.BaseURL()),
		zap.Int("endpoints", len(runner.Selected())),
	)
	results, runErr := runner.Run(ctx)
	report := probe.NewReport(client.BaseURL(), results, time.Now())

	// 5. Отчет и метрики
	if err := writeReport(report, f); err != nil {
		return err
	}
	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			logger.Error("failed to write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	logger.Info("probe finished",
		zap.Int("total", report.Total),
		zap.Int("success", report.Success),
		zap.Int("auth_required", report.AuthRequired),
		zap.Int("not_found", report.NotFound),
		zap.Int("errors", report.Errors),
		zap.Float64("success_rate", report.SuccessRate),
		zap.Duration("avg_latency", report.AvgLatency),
	)

	if runErr != nil {
		return runErr
	}
	if len(report.Failed()) > 0 {
		return errEndpointsFailed
	}
	return nil
}

// checkToken сверяет подпись сохраненного токена, если задан публичный ключ.
func checkToken(ctx context.Context, cfg *infra.Config, client *transport.Client, logger *zap.Logger) {
	token, err := client.Tokens().Token(ctx)
	if err != nil || token == "" {
		logger.Warn("no access token, protected endpoints will report auth_required")
		return
	}
	if len(cfg.Auth.PublicKey) == 0 {
		return
	}
	key, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Warn("invalid public key", zap.Error(err))
		return
	}
	claims, err := auth.NewRSAValidator(key).VerifyToken(token)
	if err != nil {
		logger.Warn("stored token rejected", zap.String("token", auth.Fingerprint(token)), zap.Error(err))
		return
	}
	logger.Info("token verified", zap.String("username", claims.Username), zap.String("role", claims.Role))
}

func writeReport(report *probe.Report, f flags) error {
	var w io.Writer = os.Stdout
	if f.output != "" {
		file, err := os.Create(f.output)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer file.Close()
		w = file
	}
	return report.Write(w, f.format)
}
