// Package bootstrap provides dependency initialization for the SnipX API.
package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/snipx/snipx-api/internal/audio"
	"github.com/snipx/snipx-api/internal/auth"
	"github.com/snipx/snipx-api/internal/config"
	"github.com/snipx/snipx-api/internal/media"
	"github.com/snipx/snipx-api/internal/storage"
	"github.com/snipx/snipx-api/internal/transcribe"
	"github.com/snipx/snipx-api/internal/video"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	VideoService *video.Service
	AuthManager  *auth.Manager
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize media tooling
	processor := media.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
	editor := audio.NewFFmpegEditor(cfg.FFmpegPath)

	// Initialize transcription and summarization
	transcriber := transcribe.NewScriptTranscriber()
	summarizer := transcribe.NewLeadSummarizer(0)

	// Initialize video repository
	repo := video.NewMemoryRepository()

	svc := video.NewService(
		repo,
		store,
		processor,
		editor,
		logger,
		video.WithTranscriber(transcriber),
		video.WithSummarizer(summarizer),
		video.WithSubtitleLanguage(transcriber.Language()),
		video.WithFatalSteps(cfg.FatalSteps),
	)

	authMgr := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer,
		time.Duration(cfg.JWTExpireHours)*time.Hour)

	return &Dependencies{
		VideoService: svc,
		AuthManager:  authMgr,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Store(cfg.UploadDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirroring configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("upload_dir", cfg.UploadDir),
	)
	return localStore, nil
}
