package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"videohub/api/internal/cache"
	"videohub/api/internal/config"
	"videohub/api/internal/database"
	"videohub/api/internal/handlers"
	"videohub/api/internal/jobs"
	"videohub/api/internal/log"
	"videohub/api/internal/repository"
	"videohub/api/internal/security"
	"videohub/api/internal/server"
	"videohub/api/internal/service"
	"videohub/api/internal/storage"
)

type videoBackend interface {
	service.VideoStore
	Check(ctx context.Context) error
	String() string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	mongoClient, err := database.NewMongoClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect mongo")
	}
	db := mongoClient.Database(cfg.Mongo.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("failed to create indexes")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	if redisClient == nil {
		logger.Info().Msg("redis disabled, upload events and sweep locking are off")
	}

	store, err := newVideoBackend(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init upload storage")
	}
	logger.Info().Str("backend", store.String()).Msg("upload storage ready")

	tokens := security.NewTokenSigner(security.TokenConfig{
		AccessSecret:      cfg.JWT.AccessSecret,
		RefreshSecret:     cfg.JWT.RefreshSecret,
		AccessExpiration:  cfg.JWT.AccessExpiration,
		RefreshExpiration: cfg.JWT.RefreshExpiration,
	})

	users := service.NewUserService(repository.NewUserRepository(db))
	sessions := service.NewSessionService(repository.NewSessionRepository(db))
	auth := service.NewAuthService(users, sessions, tokens, logger)
	videos := service.NewVideoService(store, redisClient, cfg.Uploads.MaxBytes, logger)

	checks := handlers.HealthChecks{
		Database: func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) },
		Storage:  store.Check,
	}
	if redisClient != nil {
		checks.Cache = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, handlers.Services{
		Auth:   auth,
		Users:  users,
		Videos: videos,
		Tokens: tokens,
	}, checks)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(sessions, redisClient, cfg.Jobs.SessionSweep, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, mongoClient, redisClient)
}

func newVideoBackend(ctx context.Context, cfg *config.AppConfig) (videoBackend, error) {
	if cfg.Uploads.Backend == config.UploadBackendS3 {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			return nil, err
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return objectStore, nil
	}

	diskStore, err := storage.NewDiskStore(cfg.Uploads.Folder)
	if err != nil {
		return nil, err
	}
	return diskStore, nil
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, mongoClient *mongo.Client, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("mongo disconnect error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
