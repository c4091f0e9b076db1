package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"inmoveo/internal/catalog"
	"inmoveo/internal/config"
	"inmoveo/internal/httpapi"
	"inmoveo/internal/httpapi/handlers"
	"inmoveo/internal/jobs"
	"inmoveo/internal/pkg/logger"
	"inmoveo/internal/pkg/shutdown"
	"inmoveo/internal/queue"
	"inmoveo/internal/storage"
)

func main() {
	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "inmoveo-api",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting inmoveo API", "version", "0.1.0")

	cfg, err := config.Load()
	if err != nil {
		log.LogFatal("invalid configuration", err)
	}

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)
	checks := map[string]handlers.Check{}

	// Storage
	log.Info("initializing storage provider", "provider", cfg.StorageProvider)
	store, err := storage.NewProvider(ctx, cfg)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	if err := store.EnsureLayout(ctx); err != nil {
		log.LogFatal("failed to prepare storage layout", err)
	}
	if c, ok := store.(io.Closer); ok {
		shutdownMgr.Register("storage", func(ctx context.Context) error {
			return c.Close()
		})
	}
	if cfg.StorageProvider == config.ProviderLocalFS && !cfg.LocalSigning() {
		log.Warn("LOCAL_SIGNING_KEY not set, result_url is disabled")
	}
	log.Info("storage provider initialized", "provider", store.Provider())

	var index handlers.JobIndex
	svcDeps := jobs.Deps{
		Store:        store,
		Log:          log,
		SlugRequired: cfg.SlugRequired,
	}

	// PostgreSQL (optional job catalog)
	if cfg.DatabaseURL != "" {
		log.Info("connecting to PostgreSQL")
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}

		repo := catalog.NewRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to ensure catalog schema", err)
		}
		svcDeps.Catalog = repo
		index = repo
		checks["postgres"] = pool.Ping
		log.Info("PostgreSQL connected")
	}

	// Redis (optional dispatch to the worker)
	if cfg.RedisAddr != "" {
		log.Info("connecting to Redis")
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})

		q := queue.NewRedisQueue(rdb, cfg.JobQueueName)
		if err := q.Ping(ctx); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		svcDeps.Dispatcher = q
		checks["redis"] = q.Ping
		log.Info("Redis connected", "queue", q.Name())
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Jobs:               jobs.NewService(svcDeps),
		Store:              store,
		Catalog:            index,
		Checks:             checks,
		Log:                log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes(),
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Registered last so it stops first.
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.HTTPPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
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
