package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"thumbnailer/internal/adapter/repo"
	"thumbnailer/internal/domain"
	"thumbnailer/internal/infra"
	"thumbnailer/internal/orchestrator"
	"thumbnailer/internal/provider"
	"thumbnailer/internal/storage"
)

// The worker drains jobs the API could not process in-process: requests that
// overflowed the dispatch queue and jobs stranded pending by a crashed api
// instance.
type jobWorker struct {
	repo    domain.ThumbnailRepository
	orch    *orchestrator.Orchestrator
	logger  zerolog.Logger
	poll    time.Duration
	minAge  time.Duration
	timeout time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	if err := infra.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to ensure schema")
	}

	thumbRepo := repo.NewThumbnailRepository(pool)

	var publisher storage.Publisher
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
			logger.Fatal().Err(err).Msg("worker: failed to configure object storage")
		}
	default:
		publisher, err = storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("worker: failed to configure storage")
		}
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

	orch := orchestrator.New(thumbRepo, publisher, adapters, cfg.ProviderTimeout, logger)

	w := &jobWorker{
		repo:    thumbRepo,
		orch:    orch,
		logger:  logger,
		poll:    cfg.WorkerPoll,
		minAge:  cfg.WorkerClaimAge,
		timeout: orch.Deadline(),
	}

	if err := w.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *jobWorker) run(ctx context.Context) error {
	w.logger.Info().Dur("poll", w.poll).Msg("worker: started")
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		// Drain every claimable job before going back to sleep.
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			claimed, err := w.claimAndProcess(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: claim failed")
				break
			}
			if !claimed {
				break
			}
		}
	}
}

func (w *jobWorker) claimAndProcess(ctx context.Context) (bool, error) {
	t, err := w.repo.ClaimPending(ctx, w.minAge)
	if err != nil {
		if errors.Is(err, domain.ErrNoJobPending) {
			return false, nil
		}
		return false, err
	}

	w.logger.Info().Str("job_id", t.ID).Msg("worker: picked job")

	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// ClaimPending already flipped the row to generating, so Prepare runs
	// only to compose and persist the prompt.
	started := time.Now()
	if err := w.orch.Run(jobCtx, t); err != nil {
		w.logger.Warn().Str("job_id", t.ID).Err(err).Dur("elapsed", time.Since(started)).Msg("worker: job finished with failure")
		return true, nil
	}
	w.logger.Info().Str("job_id", t.ID).Str("provider", t.Provider).Dur("elapsed", time.Since(started)).Msg("worker: job completed")
	return true, nil
}
