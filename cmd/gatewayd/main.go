package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/quantapay/gateway/internal/compliance"
	"github.com/quantapay/gateway/internal/config"
	"github.com/quantapay/gateway/internal/events"
	"github.com/quantapay/gateway/internal/gateway"
	"github.com/quantapay/gateway/internal/logging"
	"github.com/quantapay/gateway/internal/repository"
	"github.com/quantapay/gateway/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("gatewayd", cfg.LogLevel, cfg.AppEnv)

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		slog.Error("failed to build payment store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	emitter := events.NewEmitter(logger)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sink := events.NewRedisSink(rdb, cfg.RedisEventKey, logger)
		emitter.Subscribe(sink.Notify)
		slog.Info("redis event sink attached", "addr", cfg.RedisAddr, "key", cfg.RedisEventKey)
	}

	svc, err := gateway.NewService(
		store,
		settlement.NewHTTPClient(cfg.SettlementURL),
		compliance.StaticScreener{},
		emitter,
		cfg,
	)
	if err != nil {
		slog.Error("failed to build gateway service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.WithLogger(ctx, logger)

	go svc.RunScheduler(ctx, time.Duration(cfg.SchedulerIntervalS)*time.Second)

	slog.Info("gateway started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cancel()
	emitter.Flush()
	slog.Info("gateway stopped")
}

func buildStore(cfg *config.Config) (repository.PaymentRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Info("using in-memory payment store")
		return repository.NewInMemoryRepository(), func() {}, nil
	}

	db, err := connectDB(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using postgres payment store")
	return repository.NewPostgresRepository(db), func() { db.Close() }, nil
}

func connectDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
