package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/library-seat-reservation/internal/config"
	"github.com/iliyamo/library-seat-reservation/internal/database"
	"github.com/iliyamo/library-seat-reservation/internal/handler"
	"github.com/iliyamo/library-seat-reservation/internal/logger"
	"github.com/iliyamo/library-seat-reservation/internal/middleware"
	"github.com/iliyamo/library-seat-reservation/internal/queue"
	"github.com/iliyamo/library-seat-reservation/internal/repository"
	"github.com/iliyamo/library-seat-reservation/internal/router"
	"github.com/iliyamo/library-seat-reservation/internal/service"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()

	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "seat-reservation")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		lg.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		lg.Fatal("ensure schema", zap.Error(err))
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), lg)
	if rdb != nil {
		defer rdb.Close()
	}

	policyDoc, err := config.LoadPolicyFile(cfg.PolicyFile)
	if err != nil {
		lg.Fatal("load policy", zap.String("file", cfg.PolicyFile), zap.Error(err))
	}
	if _, err := policyDoc.Compile(); err != nil {
		lg.Fatal("invalid policy file", zap.String("file", cfg.PolicyFile), zap.Error(err))
	}

	// repositories
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)
	settings := repository.NewSettingsRepo(db)

	if cfg.BootstrapAdminEmail != "" {
		if err := service.BootstrapAdmin(ctx, users, cfg.BootstrapAdminEmail, lg); err != nil {
			lg.Warn("bootstrap admin failed", zap.String("email", cfg.BootstrapAdminEmail), zap.Error(err))
		}
	}

	// services
	cacheCfg := config.LoadCacheConfig()
	generation := service.NewCacheGeneration(rdb, cacheCfg.GenerationKey(), lg)
	policy := service.NewPolicyStore(policyDoc, settings, rdb, cfg.PolicyCacheTTL, lg)
	events := service.NewAMQPPublisher(cfg.RabbitMQURL, lg)
	svc := service.NewReservationService(db, seats, reservations, users, policy, events, generation, lg)
	sweeper := service.NewSweeper(db, reservations, users, policy, events, generation, lg)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx, cfg.SweepInterval)
	}()
	if cfg.RunConsumer {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.EventLogDir, lg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = consumer.Run(ctx)
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(lg))
	e.Use(middleware.Recover(lg))

	general := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg)
	write := middleware.NewTokenBucket(config.LoadWriteRateLimitConfig(), rdb, lg)
	cache := middleware.NewRedisCache(cacheCfg, rdb, lg)
	e.Use(general)

	router.RegisterRoutes(e, handler.NewHealthHandler(db, rdb))
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret, write)
	router.RegisterSeats(e, handler.NewSeatHandler(svc), cfg.JWTSecret, cache, write)
	router.RegisterReservations(e, handler.NewReservationHandler(svc), cfg.JWTSecret, write)
	router.RegisterAdmin(e, handler.NewAdminHandler(svc, users), handler.NewSettingsHandler(policy, generation), cfg.JWTSecret, write)

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
}
