// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/videoprep/internal/prep"
)

// Static errors for configuration validation.
var (
	// ErrDestBucketRequired is returned when SOURCE_BUCKET is set without DEST_BUCKET.
	ErrDestBucketRequired = errors.New("config: DEST_BUCKET is required when SOURCE_BUCKET is set")
	// ErrSourceBucketRequired is returned when DEST_BUCKET is set without SOURCE_BUCKET.
	ErrSourceBucketRequired = errors.New("config: SOURCE_BUCKET is required when DEST_BUCKET is set")
	// ErrS3RegionRequired is returned when buckets are configured without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required for S3 storage")
	// ErrInvalidProcessing is returned when a processing tunable is out of range.
	ErrInvalidProcessing = errors.New("config: invalid processing settings")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port               int      `env:"PORT, default=8080" json:"port"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"cors_allowed_origins"`

	// Work directories
	TempDir         string `env:"TEMP_DIR, default=/tmp/videoprep" json:"temp_dir"`
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR" json:"local_storage_dir,omitempty"`

	// Tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path"`

	// Processing settings
	ThumbnailWidth       int           `env:"THUMBNAIL_WIDTH, default=30" json:"thumbnail_width"`
	JPEGQuality          int           `env:"JPEG_QUALITY, default=85" json:"jpeg_quality"`
	BlurSigma            float64       `env:"BLUR_SIGMA, default=0.5" json:"blur_sigma"`
	BlankAudioDuration   float64       `env:"BLANK_AUDIO_DURATION, default=5.0" json:"blank_audio_duration"`
	PaddingBufferSeconds int           `env:"PADDING_BUFFER_SECONDS, default=1" json:"padding_buffer_seconds"`
	WebCRF               int           `env:"WEB_CRF, default=18" json:"web_crf"`
	RunTimeout           time.Duration `env:"RUN_TIMEOUT, default=0s" json:"run_timeout"`

	// Optional S3 settings
	SourceBucket       string `env:"SOURCE_BUCKET" json:"source_bucket,omitempty"`
	DestBucket         string `env:"DEST_BUCKET" json:"dest_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Status reporting
	ConvexURL string `env:"CONVEX_URL" json:"convex_url,omitempty"`

	// Optional queue settings
	RedisAddr        string `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword    string `env:"REDIS_PASSWORD" json:"-"`
	RedisQueue       string `env:"REDIS_QUEUE, default=videoprep:jobs" json:"redis_queue"`
	RedisFailedQueue string `env:"REDIS_FAILED_QUEUE, default=videoprep:failed" json:"redis_failed_queue"`
	QueueWorkers     int    `env:"QUEUE_WORKERS, default=1" json:"queue_workers"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if both buckets and the region are configured.
func (c *Config) S3Enabled() bool {
	return c.SourceBucket != "" && c.DestBucket != "" && c.S3Region != ""
}

// QueueEnabled returns true if a Redis address is configured.
func (c *Config) QueueEnabled() bool {
	return c.RedisAddr != ""
}

// ReportingEnabled returns true if a Convex deployment is configured.
func (c *Config) ReportingEnabled() bool {
	return c.ConvexURL != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates it.
func Load() (*Config, error) {
	return load(envconfig.OsLookuper())
}

func load(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that related settings are consistent.
func (c *Config) Validate() error {
	switch {
	case c.SourceBucket != "" && c.DestBucket == "":
		return ErrDestBucketRequired
	case c.DestBucket != "" && c.SourceBucket == "":
		return ErrSourceBucketRequired
	case c.SourceBucket != "" && c.S3Region == "":
		return ErrS3RegionRequired
	}
	if err := c.Processing().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProcessing, err)
	}
	return nil
}

// Processing returns the processing tunables.
func (c *Config) Processing() prep.Options {
	return prep.Options{
		ThumbnailWidth:     c.ThumbnailWidth,
		JPEGQuality:        c.JPEGQuality,
		BlurSigma:          c.BlurSigma,
		BlankAudioDuration: c.BlankAudioDuration,
		PaddingBuffer:      c.PaddingBufferSeconds,
		WebCRF:             c.WebCRF,
	}
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, FFmpegPath: %s, SourceBucket: %s, DestBucket: %s, S3Region: %s, AWSAccessKeyID: %s, ConvexURL: %s, RedisAddr: %s, RedisQueue: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.FFmpegPath,
		c.SourceBucket,
		c.DestBucket,
		c.S3Region,
		mask(c.AWSAccessKeyID),
		c.ConvexURL,
		c.RedisAddr,
		c.RedisQueue,
		c.LogFormat,
		c.LogLevel,
	)
}

// mask keeps the last four characters of a secret.
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
