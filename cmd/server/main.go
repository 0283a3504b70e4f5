package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/config"
	"github.com/SAP-F-2025/exam-service/internal/handlers"
	"github.com/SAP-F-2025/exam-service/internal/middleware"
	"github.com/SAP-F-2025/exam-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/SAP-F-2025/exam-service/pkg"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("exam-service: %v", err)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := utils.NewLogger(cfg.IsProduction())
	slogger := logger.Slog()

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	checks := []handlers.DependencyCheck{{Name: "database", Check: sqlDB.PingContext}}

	// Redis is optional: without it the roster cache is off and the
	// regeneration lock only guards this process.
	var (
		examCache cache.CacheService = cache.NoopCache{}
		locker    cache.Locker       = cache.NewLocalLocker()
	)
	if redisClient, err := pkg.NewRedisClient(cfg); err != nil {
		logger.Warn("Redis unavailable, using in-process cache and locks", "error", err)
	} else {
		defer redisClient.Close()
		examCache = cache.NewRedisCache(redisClient, slogger, "exam-service")
		locker = cache.NewRedisLocker(redisClient, slogger)
		checks = append(checks, handlers.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      postgres.NewRepository(db),
		Validator: validator.New(),
		Logger:    slogger,
		Cache:     examCache,
		CacheTTL:  cfg.Exam.CacheTTL,
		Locker:    locker,
		Audit:     services.NewEventAuditSink(publisher, slogger),
		Exam: services.ExamServiceConfig{
			DefaultExpiringHours: cfg.Exam.DefaultExpiringHours,
			RegenerationLockTTL:  cfg.Exam.RegenerationLockTTL,
		},
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		utils.LoggerMiddleware(logger),
		utils.ContextLogger(logger),
	)

	auth := middleware.Auth(middleware.NewCasdoorVerifier(cfg.Casdoor), logger)
	handlers.NewHandlerManager(serviceManager, logger, checks...).SetupRoutes(router, auth)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Exam service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
