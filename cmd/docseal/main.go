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

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/docseal/api/pkg/auth"
	"github.com/docseal/api/pkg/cache"
	"github.com/docseal/api/pkg/config"
	"github.com/docseal/api/pkg/database"
	"github.com/docseal/api/pkg/logging"
	"github.com/docseal/api/pkg/routes"
	"github.com/docseal/api/pkg/signatures"
	"github.com/docseal/api/pkg/stamp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr(),
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr()), zap.Error(err))
	}

	provider := auth.NewProvider(store, auth.NewRedisSessionStore(redisClient), cfg.AdminEmails, logger)
	engine := stamp.NewEngine(stamp.Options{
		Origin:   cfg.PublicOrigin,
		Locale:   cfg.StampLocale,
		Location: cfg.StampLocation,
	})

	r := routes.NewRouter(routes.Deps{
		Logger:         logger,
		Provider:       provider,
		Store:          store,
		Signatures:     signatures.NewRepository(store),
		Engine:         engine,
		Cache:          cache.NewVerificationCache(redisClient),
		MaxUploadBytes: cfg.MaxUploadBytes,
		SignRateLimit:  cfg.SignRateLimit,
		SignRateWindow: cfg.SignRateWindow,
		SecureCookies:  cfg.Production(),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down cleanly", zap.Error(err))
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (database.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using the in-memory store, records are lost on restart")
		return database.NewMemoryStore(), nil
	}

	db, err := database.Connect(cfg.Postgres.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return database.NewGormStore(db), nil
}
