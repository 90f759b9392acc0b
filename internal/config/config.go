package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Audio   AudioConfig   `yaml:"audio"`
	Session SessionConfig `yaml:"session"`
	Archive ArchiveConfig `yaml:"archive"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port            int    `yaml:"port"`
	Address         string `yaml:"address"`
	ReadTimeout     int    `yaml:"read_timeout"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
	MaxUploadBytes  int64  `yaml:"max_upload_bytes"`
}

// AudioConfig contains normalization parameters
type AudioConfig struct {
	DecodeTimeout        float64 `yaml:"decode_timeout"` // seconds, 0 disables the bound
	MaxConcurrentDecodes int     `yaml:"max_concurrent_decodes"`
	FFmpegPath           string  `yaml:"ffmpeg_path"` // empty disables the ffmpeg decoder
	TempDir              string  `yaml:"temp_dir"`
	SpeechThreshold      float32 `yaml:"speech_threshold"`    // voice activity level, 0 disables analysis
	MinSpeechDuration    float64 `yaml:"min_speech_duration"` // seconds
}

// SessionConfig contains wizard session lifecycle parameters
type SessionConfig struct {
	Timeout         int `yaml:"timeout"`          // seconds of inactivity
	CleanupInterval int `yaml:"cleanup_interval"` // seconds
	MaxSessions     int `yaml:"max_sessions"`     // 0 means unlimited
}

// ArchiveConfig contains bundle layout and output settings
type ArchiveConfig struct {
	RootFolder  string `yaml:"root_folder"`
	Compression string `yaml:"compression"`
	Level       int    `yaml:"level"`
	OutputDir   string `yaml:"output_dir"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8765,
			Address:         "127.0.0.1",
			ReadTimeout:     30,
			WriteTimeout:    60,
			ShutdownTimeout: 10,
			MaxUploadBytes:  64 << 20,
		},
		Audio: AudioConfig{
			DecodeTimeout:        30,
			MaxConcurrentDecodes: 2,
			FFmpegPath:           "ffmpeg",
			SpeechThreshold:      0.02,
			MinSpeechDuration:    0.1,
		},
		Session: SessionConfig{
			Timeout:         3600,
			CleanupInterval: 30,
			MaxSessions:     100,
		},
		Archive: ArchiveConfig{
			RootFolder:  "recordings",
			Compression: "deflate",
			Level:       6,
			OutputDir:   "./output",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load reads the configuration file over the defaults, applies .env and
// RECORDER_* environment overrides, and validates the result. An empty
// path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := LoadEnvFile(".env"); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// LoadEnvFile loads variables from an env file into the process
// environment. A missing file is not an error; variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from RECORDER_* environment variables
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv("RECORDER_HTTP_ADDRESS"); ok {
		c.HTTP.Address = v
	}
	if err := envInt("RECORDER_HTTP_PORT", &c.HTTP.Port); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("RECORDER_MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("RECORDER_MAX_UPLOAD_BYTES: %w", err)
		}
		c.HTTP.MaxUploadBytes = n
	}
	if v, ok := os.LookupEnv("RECORDER_DECODE_TIMEOUT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RECORDER_DECODE_TIMEOUT: %w", err)
		}
		c.Audio.DecodeTimeout = f
	}
	if v, ok := os.LookupEnv("RECORDER_FFMPEG_PATH"); ok {
		c.Audio.FFmpegPath = v
	}
	if err := envInt("RECORDER_MAX_SESSIONS", &c.Session.MaxSessions); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("RECORDER_ARCHIVE_COMPRESSION"); ok {
		c.Archive.Compression = v
	}
	if v, ok := os.LookupEnv("RECORDER_OUTPUT_DIR"); ok {
		c.Archive.OutputDir = v
	}
	if v, ok := os.LookupEnv("RECORDER_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := os.LookupEnv("RECORDER_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("http address cannot be empty")
	}

	if h.ReadTimeout < 0 || h.WriteTimeout < 0 || h.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}

	if h.MaxUploadBytes < 1024 {
		return fmt.Errorf("max_upload_bytes must be at least 1024, got %d", h.MaxUploadBytes)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.DecodeTimeout < 0 {
		return fmt.Errorf("decode_timeout cannot be negative, got %f", a.DecodeTimeout)
	}

	if a.MaxConcurrentDecodes < 1 {
		return fmt.Errorf("max_concurrent_decodes must be at least 1, got %d", a.MaxConcurrentDecodes)
	}

	if a.SpeechThreshold < 0 || a.SpeechThreshold > 1 {
		return fmt.Errorf("speech_threshold must be between 0 and 1, got %f", a.SpeechThreshold)
	}

	if a.MinSpeechDuration < 0 {
		return fmt.Errorf("min_speech_duration cannot be negative, got %f", a.MinSpeechDuration)
	}

	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if s.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", s.Timeout)
	}

	if s.CleanupInterval < 1 {
		return fmt.Errorf("cleanup_interval must be at least 1 second, got %d", s.CleanupInterval)
	}

	if s.MaxSessions < 0 {
		return fmt.Errorf("max_sessions cannot be negative, got %d", s.MaxSessions)
	}

	return nil
}

// Validate validates archive configuration
func (a *ArchiveConfig) Validate() error {
	switch a.Compression {
	case "deflate":
		if a.Level < 1 || a.Level > 9 {
			return fmt.Errorf("level must be between 1 and 9 for deflate, got %d", a.Level)
		}
	case "store":
	default:
		return fmt.Errorf("compression must be 'deflate' or 'store', got '%s'", a.Compression)
	}

	if a.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetMinSpeechDuration returns the minimum speech segment as a time.Duration
func (a *AudioConfig) GetMinSpeechDuration() time.Duration {
	return time.Duration(a.MinSpeechDuration * float64(time.Second))
}

// GetDecodeTimeoutDuration returns the decode timeout as a time.Duration
func (a *AudioConfig) GetDecodeTimeoutDuration() time.Duration {
	return time.Duration(a.DecodeTimeout * float64(time.Second))
}

// GetTimeoutDuration returns the session idle timeout as a time.Duration
func (s *SessionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// GetCleanupIntervalDuration returns the cleanup interval as a time.Duration
func (s *SessionConfig) GetCleanupIntervalDuration() time.Duration {
	return time.Duration(s.CleanupInterval) * time.Second
}

// GetReadTimeoutDuration returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetShutdownTimeoutDuration returns the graceful shutdown bound as a time.Duration
func (h *HTTPConfig) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(h.ShutdownTimeout) * time.Second
}
