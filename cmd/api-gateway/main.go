package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-focus-api/api/swagger"
	"github.com/noah-isme/sma-focus-api/internal/focus"
	"github.com/noah-isme/sma-focus-api/internal/handler"
	"github.com/noah-isme/sma-focus-api/internal/repository"
	"github.com/noah-isme/sma-focus-api/internal/service"
	"github.com/noah-isme/sma-focus-api/pkg/cache"
	"github.com/noah-isme/sma-focus-api/pkg/config"
	"github.com/noah-isme/sma-focus-api/pkg/database"
	"github.com/noah-isme/sma-focus-api/pkg/logger"
)

// @title SMA Focus API
// @version 1.0.0
// @description Classroom attendance and wearable focus analytics
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analyticsLoc, err := time.LoadLocation(cfg.Analytics.Timezone)
	if err != nil {
		return fmt.Errorf("analytics timezone: %w", err)
	}
	attendanceLoc, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		return fmt.Errorf("attendance timezone: %w", err)
	}

	scorer, err := focus.NewScorer(focus.ScoringConfigFrom(cfg.Focus))
	if err != nil {
		return fmt.Errorf("focus scoring config: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	focusRepo := repository.NewFocusRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	focusSvc := service.NewFocusService(service.FocusServiceParams{
		Store:     focusRepo,
		Classes:   classRepo,
		Students:  studentRepo,
		Validator: focus.NewValidator(focus.BoundsFrom(cfg.Focus)),
		Scorer:    scorer,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr,
		Config: service.FocusServiceConfig{
			TrendThreshold: cfg.Focus.TrendThreshold,
			DefaultWindow:  cfg.Analytics.DefaultWindow,
			Location:       analyticsLoc,
		},
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, classRepo, validate, metrics, logr,
		service.AttendanceServiceConfig{HistoryLimit: cfg.Attendance.HistoryLimit, Location: attendanceLoc})
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, logr, routerDeps{
		auth:       authSvc,
		metrics:    metrics,
		students:   studentRepo,
		analytics:  handler.NewAnalyticsHandler(focusSvc, studentRepo, metrics),
		attendance: handler.NewAttendanceHandler(attendanceSvc, studentRepo),
		authH:      handler.NewAuthHandler(authSvc),
		ops: handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
			"postgres": handler.PingFunc(db.PingContext),
			"redis":    cacheRepo,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
