package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/SamuelHein26/ai-speech-accent-practice/internal/auth"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/coach"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/config"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/media"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/server"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/session"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/storage"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/streaming"
	"github.com/SamuelHein26/ai-speech-accent-practice/internal/transcribe"
)

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		log.Fatalw("config load failed", "error", err)
	}
	for _, warning := range warnings {
		log.Warn(warning)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalw("storage init failed", "error", err)
	}
	defer func() { _ = store.Close() }()

	objects, err := buildObjectStore(cfg, log)
	if err != nil {
		log.Fatalw("object store init failed", "error", err)
	}

	transcriber := buildTranscriber(cfg)
	transcoder := media.NewTranscoderWithBins(cfg.FfmpegBin, cfg.FfprobeBin)

	manager := session.NewManager(store, objects, transcoder, transcriber, cfg.WorkDir, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sweeper := session.NewSweeper(manager, cfg.ParsedSweepInterval(), cfg.ParsedSessionMaxAge(), log)
	go sweeper.Run(ctx)

	speechCoach := buildCoach(cfg, log)

	srv := server.New(server.Deps{
		Sessions:       manager,
		Attempts:       store,
		Objects:        objects,
		Auth:           auth.NewService(store, cfg.JWTSecret, auth.DefaultTokenTTL),
		Coach:          speechCoach,
		Stream:         streaming.NewProxy(cfg.AssemblyAIAPIKey, log),
		Log:            log,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
	})

	if err := srv.Serve(ctx, cfg.HTTPAddr); err != nil {
		log.Fatalw("http server failed", "error", err)
	}
	log.Info("shutdown complete")
}

func buildObjectStore(cfg config.Config, log *zap.SugaredLogger) (storage.ObjectStore, error) {
	if cfg.MinioConfigured() {
		minioStore, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.Minio.Bucket,
			Region:    cfg.Minio.Region,
			Prefix:    cfg.Minio.Prefix,
			UseSSL:    cfg.Minio.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		log.Infow("audio archive on s3-compatible store", "endpoint", cfg.Minio.Endpoint, "bucket", cfg.Minio.Bucket)
		return minioStore, nil
	}

	if cfg.GDriveConfigured() {
		driveStore, err := storage.NewDriveStore(context.Background(), cfg.GDrive.CredentialsFile, cfg.GDrive.FolderID)
		if err != nil {
			return nil, err
		}
		log.Infow("audio archive on google drive", "folder", cfg.GDrive.FolderID)
		return driveStore, nil
	}

	log.Infow("audio archive on local disk", "dir", cfg.ArchiveDir)
	return storage.NewLocalStore(cfg.ArchiveDir), nil
}

func buildCoach(cfg config.Config, log *zap.SugaredLogger) server.Coach {
	provider, model, err := cfg.CoachSpec()
	if err != nil {
		return nil
	}
	key := cfg.CoachAPIKey(provider)
	if key == "" {
		return nil
	}

	backend, err := coach.NewBackend(provider, model, key)
	if err != nil {
		log.Warnw("coach disabled", "error", err)
		return nil
	}
	log.Infow("coach enabled", "provider", provider, "model", model)
	return coach.New(backend)
}

func buildTranscriber(cfg config.Config) transcribe.Transcriber {
	if cfg.TranscribeBackend == "assemblyai" {
		return transcribe.NewAssemblyAI(cfg.AssemblyAIAPIKey)
	}
	return transcribe.NewDeepgram(cfg.DeepgramAPIKey, cfg.DeepgramModel)
}
