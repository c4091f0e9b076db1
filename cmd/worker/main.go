package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"inmoveo/internal/catalog"
	"inmoveo/internal/config"
	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
	"inmoveo/internal/pkg/shutdown"
	"inmoveo/internal/queue"
	"inmoveo/internal/storage"
	"inmoveo/internal/worker"
)

func main() {
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "inmoveo-worker",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}
	if cfg.RedisAddr == "" {
		log.Error("missing required environment variable", "key", "REDIS_ADDR")
		os.Exit(1)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	store, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	if c, ok := store.(io.Closer); ok {
		shutdownMgr.Register("storage", func(ctx context.Context) error {
			return c.Close()
		})
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})
	q := queue.NewRedisQueue(rdb, cfg.JobQueueName)
	if err := q.Ping(ctx); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}

	deps := worker.Deps{
		Queue: q,
		Jobs:  jobs.NewService(jobs.Deps{Store: store, Log: log}),
		Stage: worker.LogStage{Log: log},
		Log:   log,
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		repo := catalog.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to ensure catalog schema", err)
		}
		deps.Catalog = repo
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	// Registered last so the loop stops before its dependencies close.
	shutdownMgr.Register("worker", func(ctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(stopped)
		pending, _ := q.Len(runCtx)
		log.Info("worker started", "queue", q.Name(), "pending", pending, "provider", store.Provider())
		if err := worker.Run(runCtx, deps); err != nil && !errors.Is(err, context.Canceled) {
			log.LogFatal("worker stopped", err)
		}
	}()

	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}
