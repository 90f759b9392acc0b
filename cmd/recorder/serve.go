package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/exphon/speech-recording-app/internal/download"
	"github.com/exphon/speech-recording-app/internal/metrics"
	"github.com/exphon/speech-recording-app/internal/server"
	"github.com/exphon/speech-recording-app/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recording wizard HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	logger.Info("Service starting",
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)
	logger.Info("Configuration loaded",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
		slog.String("ffmpeg_path", cfg.Audio.FFmpegPath),
		slog.Float64("decode_timeout", cfg.Audio.DecodeTimeout),
		slog.Int("max_sessions", cfg.Session.MaxSessions),
		slog.String("archive_compression", cfg.Archive.Compression),
		slog.String("output_dir", cfg.Archive.OutputDir),
		slog.String("log_level", cfg.Logging.Level),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics(registry)

	normalizer := newNormalizer(cfg, logger, appMetrics)
	assembler, err := newAssembler(cfg, logger, appMetrics)
	if err != nil {
		return fmt.Errorf("invalid archive configuration: %w", err)
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}

	sessions := session.NewManager(logger, session.ManagerConfig{
		Timeout:         cfg.Session.GetTimeoutDuration(),
		CleanupInterval: cfg.Session.GetCleanupIntervalDuration(),
		MaxSessions:     cfg.Session.MaxSessions,
		Analyzer:        analyzer,
	}, normalizer, assembler)
	sessions.SetObserver(appMetrics)
	defer sessions.Stop()

	saver := download.NewDirSaver(cfg.Archive.OutputDir)
	httpServer := server.NewHTTPServer(cfg, logger, sessions, saver, appMetrics, registry)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Service started successfully, waiting for signals...")
	<-ctx.Done()
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeoutDuration())
	defer cancel()
	if err := httpServer.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped", slog.Int("open_sessions", sessions.Count()))
	return nil
}
