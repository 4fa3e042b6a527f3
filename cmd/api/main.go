package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"thumbnailer/internal/adapter/repo"
	"thumbnailer/internal/http/handlers"
	"thumbnailer/internal/http/httpapi"
	"thumbnailer/internal/infra"
	"thumbnailer/internal/orchestrator"
	"thumbnailer/internal/provider"
	"thumbnailer/internal/ratelimit"
	"thumbnailer/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := infra.EnsureSchema(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure schema")
	}

	thumbRepo := repo.NewThumbnailRepository(dbpool)

	var publisher storage.Publisher
	var staticDir string
	switch cfg.StorageBackend {
	case "s3":
		publisher, err = storage.NewS3Store(ctx, storage.S3Options{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			UseSSL:        cfg.S3UseSSL,
			PublicBaseURL: cfg.S3PublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure object storage")
		}
	default:
		publisher, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure storage")
		}
		staticDir = cfg.StoragePath
	}

	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(redisOpts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer rdb.Close()
		limiter = ratelimit.NewRedis(rdb, cfg.RateLimit, cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewMemory(cfg.RateLimit, cfg.RateLimitWindow)
	}

	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	adapters := provider.Chain(provider.ChainConfig{
		Order: cfg.ProviderOrder,
		OpenAI: provider.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		},
		HuggingFace: provider.HuggingFaceConfig{
			APIToken: cfg.HuggingFaceToken,
			BaseURL:  cfg.HuggingFaceBaseURL,
			Model:    cfg.HuggingFaceModel,
		},
		Pollinations: provider.PollinationsConfig{
			BaseURL: cfg.PollinationsBaseURL,
		},
	}, provider.Options{HTTPClient: httpClient, Timeout: cfg.ProviderTimeout, Logger: logger})
	if len(adapters) == 0 {
		logger.Warn().Msg("no provider adapters configured, all generations will fail")
	}

	orch := orchestrator.New(thumbRepo, publisher, adapters, cfg.ProviderTimeout, logger)
	dispatcher := orchestrator.NewDispatcher(orch, cfg.DispatchWorkers, cfg.DispatchQueue, logger)

	app := handlers.NewApp(thumbRepo, orch, dispatcher, logger)
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Limiter:        limiter,
		StaticDir:      staticDir,
		Logger:         logger,
	})

	server := infra.NewHTTPServer(cfg, router)
	// Let in-flight generations commit their terminal status before exit.
	server.OnShutdown(dispatcher.Close)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), orch.Deadline())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
