package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/foodscan/internal/backend"
	"github.com/example/foodscan/internal/cache"
	"github.com/example/foodscan/internal/config"
	"github.com/example/foodscan/internal/handlers"
	"github.com/example/foodscan/internal/logging"
	"github.com/example/foodscan/internal/preview"
	"github.com/example/foodscan/internal/repository"
	"github.com/example/foodscan/internal/usecase"
)

func main() {
	cfg, envLoaded := config.Load()

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.Bool("env_file", envLoaded),
		zap.String("api_url", cfg.APIBaseURL),
		zap.Duration("request_timeout", cfg.RequestTimeout),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var journal usecase.FeedbackJournal
	if cfg.DatabaseDSN != "" {
		repo := repository.NewFeedbackRepository(initDatabase(ctx, cfg.DatabaseDSN, logger), logger)
		if err := repo.AutoMigrate(ctx); err != nil {
			logger.Fatal("auto migrate failed", zap.Error(err))
		}
		journal = repo
	} else {
		logger.Info("DATABASE_DSN not set, feedback journal disabled")
	}

	var labelCache cache.Cache
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		client, err := cache.Dial(redisCtx, cfg.RedisAddr)
		redisCancel()
		if err != nil {
			logger.Warn("redis unavailable, label cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer client.Close()
			labelCache = cache.NewRedisCache(client)
		}
	}

	client, err := backend.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, logger)
	if err != nil {
		logger.Fatal("invalid backend configuration", zap.Error(err))
	}
	if err := client.Health(ctx); err != nil {
		logger.Warn("classification service not reachable", zap.String("api_url", cfg.APIBaseURL), zap.Error(err))
	}

	uc := usecase.NewSessionUseCase(client, preview.NewRenderer(cfg.PreviewWidth), labelCache, journal, usecase.Settings{
		RequestTimeout: cfg.RequestTimeout,
		LabelCacheTTL:  cfg.LabelCacheTTL,
	}, logger)
	uc.Start(ctx)

	r := newRouter(uc, cfg.MaxUploadBytes, cfg.AllowedOrigins, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	logger.Info("foodscan listening", zap.String("addr", cfg.ListenAddr))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newRouter(uc *usecase.SessionUseCase, maxUploadBytes int64, allowedOrigins []string, logger *zap.Logger) *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = maxUploadBytes
	hub := handlers.NewEventHub(uc.State(), allowedOrigins, logger)
	handlers.RegisterRoutes(r, uc, hub, handlers.Options{MaxUploadBytes: maxUploadBytes})
	return r
}

func initDatabase(ctx context.Context, dsn string, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
