// Package bootstrap provides dependency initialization for the videoprep service.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/maauso/videoprep/internal/audio"
	"github.com/maauso/videoprep/internal/config"
	"github.com/maauso/videoprep/internal/convex"
	"github.com/maauso/videoprep/internal/ffmpeg"
	"github.com/maauso/videoprep/internal/job"
	"github.com/maauso/videoprep/internal/media"
	"github.com/maauso/videoprep/internal/prep"
	"github.com/maauso/videoprep/internal/queue"
	"github.com/maauso/videoprep/internal/storage"
)

// Dependencies holds all initialized dependencies for the server.
type Dependencies struct {
	VideoService *job.ProcessVideoService
	// Consumer is nil when no queue is configured.
	Consumer *queue.Consumer

	redis *redis.Client
}

// Close releases connections opened by NewDependencies.
func (d *Dependencies) Close() error {
	if d.redis != nil {
		return d.redis.Close()
	}
	return nil
}

// Tools holds the media tooling shared by the server and the CLI.
type Tools struct {
	Runner     *ffmpeg.Runner
	Transcoder *media.FFmpegTranscoder
	Audio      *audio.FFmpegProcessor
}

// NewTools creates the ffmpeg-backed processors and checks that the
// binaries can be executed.
func NewTools(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Tools, error) {
	runner := ffmpeg.NewRunner(cfg.FFmpegPath, cfg.FFprobePath, logger)
	if err := runner.Check(ctx); err != nil {
		return nil, fmt.Errorf("check ffmpeg: %w", err)
	}
	return &Tools{
		Runner:     runner,
		Transcoder: media.NewFFmpegTranscoder(runner, logger),
		Audio:      audio.NewFFmpegProcessor(runner),
	}, nil
}

// NewPreparer creates the preparation processor using cfg's tunables.
func NewPreparer(tools *Tools, cfg *config.Config, logger *slog.Logger) (*prep.Processor, error) {
	if err := os.MkdirAll(cfg.TempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	p, err := prep.NewProcessor(tools.Transcoder, tools.Audio, cfg.Processing(), logger, prep.WithTempDir(cfg.TempDir))
	if err != nil {
		return nil, fmt.Errorf("create processor: %w", err)
	}
	return p, nil
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	tools, err := NewTools(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	preparer, err := NewPreparer(tools, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reporter, err := initReporter(cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := job.NewProcessVideoService(
		job.NewMemoryRepository(),
		store,
		preparer,
		reporter,
		cfg.TempDir,
		logger,
	)
	svc.SetRunTimeout(cfg.RunTimeout)

	deps := &Dependencies{VideoService: svc}

	if cfg.QueueEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		deps.redis = client
		deps.Consumer = queue.NewConsumer(
			client,
			cfg.RedisQueue,
			cfg.RedisFailedQueue,
			ProcessMessage(svc),
			logger,
			queue.WithWorkers(cfg.QueueWorkers),
		)
		logger.Info("queue consumer configured",
			slog.String("addr", cfg.RedisAddr),
			slog.String("queue", cfg.RedisQueue),
			slog.String("failed_queue", cfg.RedisFailedQueue),
		)
	}

	return deps, nil
}

// ProcessMessage returns a queue handler that runs one job per message.
func ProcessMessage(svc *job.ProcessVideoService) queue.Handler {
	return func(ctx context.Context, m queue.Message) error {
		_, err := svc.Process(ctx, job.ProcessVideoInput{
			DocID:      m.DocID,
			VersionID:  m.VersionID,
			SourceKey:  m.S3Key,
			ChapterKey: m.ChapterFile,
		})
		return err
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			SourceBucket:    cfg.SourceBucket,
			DestBucket:      cfg.DestBucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("source_bucket", cfg.SourceBucket),
			slog.String("dest_bucket", cfg.DestBucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.LocalStorageDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("root", localStore.Root()),
	)
	return localStore, nil
}

// initReporter returns the Convex client, or a no-op reporter when no
// deployment is configured.
func initReporter(cfg *config.Config, logger *slog.Logger) (convex.Reporter, error) {
	if !cfg.ReportingEnabled() {
		logger.Info("status reporting disabled")
		return convex.NopReporter{}, nil
	}
	client, err := convex.NewClient(cfg.ConvexURL)
	if err != nil {
		return nil, fmt.Errorf("create convex client: %w", err)
	}
	logger.Info("status reporting configured", slog.String("convex_url", cfg.ConvexURL))
	return client, nil
}
