package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/doorcount/backend/api/handler"
	"github.com/doorcount/backend/internal/aggregate"
	"github.com/doorcount/backend/internal/config"
	"github.com/doorcount/backend/internal/infrastructure/monitor"
	pgInfra "github.com/doorcount/backend/internal/infrastructure/postgres"
	redisInfra "github.com/doorcount/backend/internal/infrastructure/redis"
	"github.com/doorcount/backend/internal/middleware"
	"github.com/doorcount/backend/internal/router"
	"github.com/doorcount/backend/internal/services"
	"github.com/doorcount/backend/internal/services/lifecycle"
	"github.com/doorcount/backend/internal/snapshot"
	"github.com/doorcount/backend/pkg/httpcontext"
	"github.com/doorcount/backend/pkg/logger"
	"github.com/doorcount/backend/repository/postgres"
	redisRepo "github.com/doorcount/backend/repository/redis"
	archiveUC "github.com/doorcount/backend/usecase/archive"
	authUC "github.com/doorcount/backend/usecase/auth"
	counterUC "github.com/doorcount/backend/usecase/counter"
	dashboardUC "github.com/doorcount/backend/usecase/dashboard"
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

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	snapshots, err := snapshot.Open(cfg.Snapshot.Path)
	if err != nil {
		zapLogger.Fatal("failed to open snapshot store", zap.Error(err))
	}
	manager.Register("snapshot", func(ctx context.Context) error {
		return snapshots.Close()
	})

	mon := monitor.New(pool, redisClient, snapshots, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	loc, err := time.LoadLocation(cfg.Venue.Timezone)
	if err != nil {
		zapLogger.Fatal("invalid venue timezone", zap.String("timezone", cfg.Venue.Timezone), zap.Error(err))
	}
	window := aggregate.DayWindow{
		OpenHour:    cfg.Venue.OpenHour,
		CloseHour:   cfg.Venue.CloseHour,
		CutoverHour: cfg.Venue.CutoverHour,
		Location:    loc,
	}
	engine := aggregate.New(window, cfg.Venue.BucketWidth, zapLogger)

	eventRepo := postgres.NewEventRepository(pool)
	archiveRepo := postgres.NewArchiveRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, cfg.JWT.SessionTTL)
	notifier := redisRepo.NewChangeNotifier(redisClient, cfg.Redis.Channel, zapLogger)

	archiveUseCase := archiveUC.New(eventRepo, archiveRepo, engine, zapLogger)
	counterUseCase := counterUC.New(
		eventRepo, notifier, archiveUseCase, engine, mon, snapshots,
		cfg.Venue.Debounce, zapLogger,
	)
	dashboardUseCase := dashboardUC.New(eventRepo, engine, cfg.Venue.Debounce, zapLogger)
	authUseCase := authUC.New(userRepo, sessionRepo, authUC.Config{
		JWTSecret: cfg.JWT.Secret,
		Issuer:    cfg.JWT.Issuer,
		TTL:       cfg.JWT.SessionTTL,
	}, zapLogger)

	if err := counterUseCase.Seed(appCtx); err != nil {
		zapLogger.Warn("initial count seed failed, serving stale snapshot until reconciled", zap.Error(err))
	}

	watchCtx, stopWatch := context.WithCancel(appCtx)
	go func() {
		if err := counterUseCase.Watch(watchCtx); err != nil && watchCtx.Err() == nil {
			zapLogger.Error("counter watch stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := dashboardUseCase.Watch(watchCtx, notifier); err != nil && watchCtx.Err() == nil {
			zapLogger.Error("dashboard watch stopped", zap.Error(err))
		}
	}()
	manager.Register("watchers", func(ctx context.Context) error {
		stopWatch()
		return nil
	})

	reconciler := services.NewReconciler(counterUseCase, cfg.Reconcile.Interval, zapLogger)
	if err := reconciler.Start(); err != nil {
		zapLogger.Fatal("reconciler failed to start", zap.Error(err))
	}
	manager.Register("reconciler", func(ctx context.Context) error {
		return reconciler.Stop(ctx)
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:      apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Counter:   apiHandler.NewCounterHandler(counterUseCase, ctxAdapter, zapLogger),
		Stream:    apiHandler.NewStreamHandler(counterUseCase, notifier, ctxAdapter, zapLogger),
		Dashboard: apiHandler.NewDashboardHandler(dashboardUseCase, ctxAdapter, zapLogger),
		Archive:   apiHandler.NewArchiveHandler(archiveUseCase, ctxAdapter, zapLogger),
		Health:    apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	adminOnly := middleware.AdminAuth(cfg.JWT.Secret, authUseCase, zapLogger)
	r := router.New(handlers, adminOnly)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
