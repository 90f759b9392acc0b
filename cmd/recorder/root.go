package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/exphon/speech-recording-app/internal/audio"
	"github.com/exphon/speech-recording-app/internal/bundle"
	"github.com/exphon/speech-recording-app/internal/config"
	"github.com/exphon/speech-recording-app/internal/metrics"
	"github.com/exphon/speech-recording-app/internal/recording"
	"github.com/exphon/speech-recording-app/internal/vad"
)

const (
	serviceName    = "speech-recording-app"
	serviceVersion = "1.0.0"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "recorder",
	Short: "Speech recording wizard engine",
	Long: `recorder normalizes spoken captures to 16-bit PCM WAV and packages a
participant's words, sentences and paragraph recordings with their metadata
into a single zip bundle.

Run "recorder serve" for the HTTP API, or use the normalize, bundle and
inspect commands offline.`,
	Version:       serviceVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (defaults are used when empty)")
}

// loadConfig reads the configuration named by --config and builds the logger from it
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, initLogger(cfg.Logging), nil
}

// newNormalizer wires the configured decoder backends; m may be nil
func newNormalizer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *audio.Normalizer {
	n := audio.NewNormalizer(logger, audio.NormalizerConfig{
		DecodeTimeout:        cfg.Audio.GetDecodeTimeoutDuration(),
		MaxConcurrentDecodes: cfg.Audio.MaxConcurrentDecodes,
	}, audio.DefaultDecoders(cfg.Audio.FFmpegPath, cfg.Audio.TempDir)...)
	if m != nil {
		n.SetObserver(m)
	}
	return n
}

// newAnalyzer returns the voice activity analyzer, or nil when disabled
func newAnalyzer(cfg *config.Config) (recording.Analyzer, error) {
	if cfg.Audio.SpeechThreshold == 0 {
		return nil, nil
	}
	p, err := vad.NewProcessor(vad.Config{
		Threshold:         cfg.Audio.SpeechThreshold,
		MinSpeechDuration: cfg.Audio.GetMinSpeechDuration(),
	})
	if err != nil {
		return nil, fmt.Errorf("invalid voice activity configuration: %w", err)
	}
	return p, nil
}

func newAssembler(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*bundle.Assembler, error) {
	a, err := bundle.NewAssembler(bundle.Config{
		RootFolder:  cfg.Archive.RootFolder,
		Compression: cfg.Archive.Compression,
		Level:       cfg.Archive.Level,
	}, logger)
	if err != nil {
		return nil, err
	}
	if m != nil {
		a.SetObserver(m)
	}
	return a, nil
}

// initLogger creates the structured logger described by the logging section
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler).With(slog.String("service", serviceName))
}
