package main

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskmirror/backend/api/handler"
	"github.com/taskmirror/backend/internal/config"
	"github.com/taskmirror/backend/internal/infrastructure/buffer"
	"github.com/taskmirror/backend/internal/infrastructure/monitor"
	pgInfra "github.com/taskmirror/backend/internal/infrastructure/postgres"
	redisInfra "github.com/taskmirror/backend/internal/infrastructure/redis"
	"github.com/taskmirror/backend/internal/infrastructure/remote"
	"github.com/taskmirror/backend/internal/router"
	"github.com/taskmirror/backend/internal/services"
	"github.com/taskmirror/backend/internal/services/lifecycle"
	"github.com/taskmirror/backend/pkg/httpcontext"
	"github.com/taskmirror/backend/pkg/logger"
	"github.com/taskmirror/backend/repository"
	"github.com/taskmirror/backend/repository/postgres"
	redisRepo "github.com/taskmirror/backend/repository/redis"
	"github.com/taskmirror/backend/usecase/mutator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	pool := openRecordStore(appCtx, cfg, manager, zapLogger)
	redisClient, reportRepo := openReportCache(cfg, manager, zapLogger)

	remoteClient := remote.NewClient(remote.Config{
		BaseURL:       cfg.Remote.BaseURL,
		HealthTimeout: cfg.Remote.HealthTimeout,
		BatchTimeout:  cfg.Remote.BatchTimeout,
	}, zapLogger)

	bufferStore, err := buffer.Open(cfg.Buffer.Path, "mutations")
	if err != nil {
		zapLogger.Fatal("failed to open buffer store", zap.Error(err))
	}
	manager.Register("buffer", func(ctx context.Context) error {
		return bufferStore.Close()
	})

	mon := monitor.New(pool, redisClient, remoteClient, bufferStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	taskRepo := postgres.NewTaskRepository(pool)
	queueRepo := postgres.NewQueueRepository(pool)
	txStore := postgres.NewTxStore(pool)

	bufferProcessor := services.NewBufferProcessor(bufferStore, mon, txStore, zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Buffer.ReplayInterval,
			MaxRetries: cfg.Buffer.MaxRetry,
			Retention:  time.Duration(cfg.Buffer.RetentionHours) * time.Hour,
		})
	bufferProcessor.Start()
	manager.Register("buffer_processor", func(ctx context.Context) error {
		bufferProcessor.Stop(ctx)
		return nil
	})

	taskMutator := mutator.New(taskRepo, txStore, services.NewBufferBridge(bufferStore), zapLogger)

	orchestrator := services.NewSyncOrchestrator(queueRepo, txStore, remoteClient, zapLogger,
		services.SyncConfig{
			BatchSize:  cfg.Sync.BatchSize,
			MaxRetries: cfg.Sync.MaxRetries,
		})

	trigger := services.NewSyncTrigger(orchestrator, reportRepo, zapLogger,
		services.TriggerConfig{
			Interval:   cfg.Sync.Interval,
			RunTimeout: cfg.Sync.RunTimeout,
		})
	trigger.Start()
	manager.Register("sync_trigger", func(ctx context.Context) error {
		trigger.Stop(ctx)
		return nil
	})

	adapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	r := router.New(router.Handlers{
		Task:   apiHandler.NewTaskHandler(taskRepo, taskMutator, adapter, zapLogger),
		Sync:   apiHandler.NewSyncHandler(trigger, queueRepo, adapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, adapter, zapLogger),
	})

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}
	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openRecordStore runs migrations and connects the pgx pool. A dead
// record store at boot is fatal: nothing works without it.
func openRecordStore(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) *pgxpool.Pool {
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})
	return pool
}

// openReportCache connects Redis. Redis only caches sync run reports,
// so a connection failure degrades that feature instead of aborting boot.
func openReportCache(cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*redislib.Client, repository.SyncReportRepository) {
	client, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Warn("redis unavailable, sync reports will not be cached", zap.Error(err))
		return nil, nil
	}
	manager.Register("redis", func(ctx context.Context) error {
		return client.Close()
	})
	return client, redisRepo.NewSyncReportRepository(client, cfg.Sync.ReportTTL)
}
