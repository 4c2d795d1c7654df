package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/codebuildervaibhav/meeting-summarizer/internal/audio"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/cleanup"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/config"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/executor"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/handlers"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/logging"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/metrics"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/pipeline"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/storage"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/summarizer"
	"github.com/codebuildervaibhav/meeting-summarizer/internal/transcription"
)

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Logger with an in-memory tail served at /api/logs
	logBuffer := logging.NewBuffer(logging.DefaultBufferLines)
	logger, err := logging.New(cfg.Logging, logBuffer)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// Ensure directories exist
	if err := cleanup.EnsureDir(cfg.Storage.TempDir); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Info("Initializing components...")

	m := metrics.New()
	exec := executor.New()

	normalizer := audio.NewNormalizer(exec, cfg.Storage.TempDir, logger)

	// Speech model loads on first use
	model := transcription.NewModel(transcription.NewWhisperLoader(cfg.Whisper, exec, cfg.Storage.TempDir, logger))
	defer model.Close()
	transcriber := transcription.NewTranscriber(model, logger)

	llm, err := summarizer.NewClient(cfg.LLM, cfg.LLMTimeout(), logger)
	if err != nil {
		return err
	}

	var opts []pipeline.Option
	var store *storage.MeetingStore
	if cfg.Storage.Enabled {
		store, err = storage.NewMeetingStore(cfg.Storage.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()
		opts = append(opts, pipeline.WithStore(store))
	} else {
		logger.Info("Persistence disabled")
	}

	if cfg.Storage.ArchiveDir != "" {
		if err := os.MkdirAll(cfg.Storage.ArchiveDir, 0755); err != nil {
			return fmt.Errorf("failed to create archive directory: %w", err)
		}
		opts = append(opts, pipeline.WithArchive(storage.NewArchive(cfg.Storage.ArchiveDir)))
		logger.Info("Archive enabled", zap.String("dir", cfg.Storage.ArchiveDir))
	}

	processor := pipeline.NewProcessor(normalizer, transcriber, llm, cfg.Workers.Count, m, logger, opts...)

	// Cleanup scheduler
	sweeper := cleanup.NewScheduler(cfg.Storage.TempDir, cfg.CleanupInterval(), cfg.CleanupMaxAge(), m, logger)
	sweeper.Start()
	defer sweeper.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:             int(cfg.MaxUploadBytes()) + multipartOverhead,
		ErrorHandler:          handlers.NewErrorHandler(logger),
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{Output: io.MultiWriter(os.Stdout, logBuffer)}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	routes := handlers.Routes{
		Transcribe: handlers.NewTranscribeHandler(processor, cfg.Storage.TempDir, cfg.MaxUploadBytes(), logger),
		Logs:       handlers.NewLogsHandler(logBuffer),
	}
	if store != nil {
		routes.Meetings = handlers.NewMeetingsHandler(store, m, logger)
		routes.Health = handlers.NewHealthHandler(model, llm.Endpoint(), store, logger)
	} else {
		routes.Health = handlers.NewHealthHandler(model, llm.Endpoint(), nil, logger)
	}
	if cfg.Metrics.Enabled {
		routes.Metrics = m.Handler()
	}
	handlers.Register(app, routes)

	addr := cfg.Addr()
	logger.Info("Server starting",
		zap.String("addr", addr),
		zap.String("llm_endpoint", llm.Endpoint()),
		zap.Bool("persistence", store != nil),
		zap.Int("workers", cfg.Workers.Count))

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout()); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
	}
	return nil
}
