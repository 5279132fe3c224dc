package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SachiinVishwakarma/CodeBasse/internal/auth"
	"github.com/SachiinVishwakarma/CodeBasse/internal/catalog"
	"github.com/SachiinVishwakarma/CodeBasse/internal/config"
	handler "github.com/SachiinVishwakarma/CodeBasse/internal/delivery/http"
	"github.com/SachiinVishwakarma/CodeBasse/internal/executor"
	"github.com/SachiinVishwakarma/CodeBasse/internal/pool"
	"github.com/SachiinVishwakarma/CodeBasse/internal/publisher"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository/memory"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository/postgres"
	redisrepo "github.com/SachiinVishwakarma/CodeBasse/internal/repository/redis"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository/sqlite"
	"github.com/SachiinVishwakarma/CodeBasse/internal/sandbox"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
	"github.com/SachiinVishwakarma/CodeBasse/internal/workspace"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting CodeBasse execution server")

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx := context.Background()
	healthChecks := map[string]handler.HealthCheck{}

	// Example catalog store
	exampleRepo, closeExamples := openExampleRepository(ctx, cfg, logger)
	defer closeExamples()
	healthChecks["examples"] = exampleRepo.Ping

	// Rate limit store
	var rateStore repository.RateLimitStore = memory.NewRateLimitStore()
	if cfg.Redis.URL != "" {
		redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		rdb := goredis.NewClient(redisOpts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to ping Redis", zap.Error(err))
		}
		logger.Info("Connected to Redis")
		rateStore = redisrepo.NewRedisRateLimitStore(rdb)
		healthChecks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Execution event publisher
	pub := publisher.NewNoop()
	if cfg.RabbitMQ.URL != "" {
		pub, err = publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		logger.Info("Connected to RabbitMQ")
	}
	defer pub.Close()

	// Workspaces
	workspaces, err := workspace.NewManager(cfg.Workspace.Root, logger)
	if err != nil {
		logger.Fatal("Failed to prepare workspace root", zap.Error(err))
	}
	if n, err := workspaces.Sweep(); err != nil {
		logger.Warn("Workspace sweep incomplete", zap.Int("removed", n), zap.Error(err))
	} else if n > 0 {
		logger.Info("Removed stale workspaces", zap.Int("removed", n))
	}

	// Sandbox and compiler
	sb, err := sandbox.New(sandboxOptions(cfg), logger)
	if err != nil {
		logger.Fatal("Failed to initialize sandbox", zap.Error(err), zap.String("backend", cfg.Sandbox.Backend))
	}
	if c, ok := sb.(sandbox.Closer); ok {
		defer c.Close()
	}
	logger.Info("Sandbox ready", zap.String("backend", sb.Name()))

	runnerCfg := executor.DefaultConfig()
	runnerCfg.CompilerPath = cfg.Compiler.Path
	if len(cfg.Compiler.Flags) > 0 {
		runnerCfg.CompilerFlags = cfg.Compiler.Flags
	}
	runnerCfg.CompileTimeout = cfg.Compiler.CompileTimeout
	runnerCfg.RunTimeout = cfg.Compiler.RunTimeout
	runnerCfg.MaxOutputBytes = cfg.Compiler.MaxOutputBytes
	runner := executor.NewRunner(runnerCfg, sb, logger)

	// Start worker pool
	workerPool := pool.NewWorkerPool(cfg.Worker.PoolSize, logger)
	workerPool.Start()

	// Initialize use cases
	executeUC := usecase.NewExecuteCodeUsecase(workerPool, workspaces, runner, pub, cfg.Server.MaxSourceBytes, logger)
	examplesUC := usecase.NewExamplesUsecase(exampleRepo, logger)
	if err := examplesUC.Seed(ctx, catalog.Examples()); err != nil {
		logger.Fatal("Failed to seed example catalog", zap.Error(err))
	}

	// Optional bearer auth
	var tokens *auth.TokenService
	if cfg.Auth.Secret != "" {
		tokens, err = auth.NewTokenService(cfg.Auth.Secret)
		if err != nil {
			logger.Fatal("Invalid auth configuration", zap.Error(err))
		}
		logger.Info("Bearer authentication enabled for run endpoints")
	}

	deps := &handler.RouterDeps{
		ExecuteUC:       executeUC,
		ExamplesUC:      examplesUC,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
		RateLimitStore:  rateStore,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxBodyBytes:    maxBodyBytes(cfg.Server.MaxSourceBytes),
		HealthChecks:    healthChecks,
	}
	if tokens != nil {
		deps.Tokens = tokens
	}
	router := handler.NewRouter(deps)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("API server listening", zap.Int("port", cfg.Server.Port), zap.Int("workers", workerPool.Size()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight executions finish, then flush pending events.
	workerPool.Stop()
	executeUC.Wait()

	logger.Info("Server stopped", zap.Int("active_workspaces", workspaces.Active()))
}

func newLogger(level string) *zap.Logger {
	var zcfg zap.Config
	if level == "debug" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		if lvl, err := zapcore.ParseLevel(level); err == nil {
			zcfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}
	logger, err := zcfg.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

// openExampleRepository selects PostgreSQL when DATABASE_URL is set and the
// embedded SQLite file otherwise.
func openExampleRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ExampleRepository, func()) {
	if cfg.Database.URL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		if err := dbPool.Ping(ctx); err != nil {
			logger.Fatal("Failed to ping PostgreSQL", zap.Error(err))
		}
		if err := postgres.Migrate(ctx, dbPool); err != nil {
			logger.Fatal("Failed to migrate PostgreSQL", zap.Error(err))
		}
		logger.Info("Connected to PostgreSQL")
		return postgres.NewPostgresExampleRepository(dbPool), dbPool.Close
	}

	repo, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
	if err != nil {
		logger.Fatal("Failed to open SQLite database", zap.Error(err), zap.String("path", cfg.Database.SQLitePath))
	}
	logger.Info("Opened SQLite database", zap.String("path", cfg.Database.SQLitePath))
	return repo, func() { repo.Close() }
}

func sandboxOptions(cfg *config.Config) sandbox.Options {
	const mb = 1 << 20
	return sandbox.Options{
		Backend: cfg.Sandbox.Backend,
		Limits: sandbox.Limits{
			CPUSeconds:   nonNegative(cfg.Sandbox.CPUSeconds),
			MemoryBytes:  nonNegative(cfg.Sandbox.MemoryMB) * mb,
			MaxProcs:     nonNegative(cfg.Sandbox.MaxProcs),
			MaxOpenFiles: nonNegative(cfg.Sandbox.MaxFiles),
			MaxFileBytes: nonNegative(cfg.Sandbox.MaxFileMB) * mb,
			UID:          cfg.Sandbox.UID,
			GID:          cfg.Sandbox.GID,
		},
		NsjailPath:   cfg.Sandbox.NsjailPath,
		NsjailConfig: cfg.Sandbox.NsjailConfig,
		DockerImage:  cfg.Sandbox.DockerImage,
	}
}

// maxBodyBytes leaves room for JSON escaping of the source and for stdin.
func maxBodyBytes(maxSource int) int64 {
	return int64(maxSource)*2 + 64*1024
}

func nonNegative(v int) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
