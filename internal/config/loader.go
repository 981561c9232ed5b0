// Package config loads runtime configuration from environment variables and
// an optional config file, with defaults applied via viper.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	AWS           AWSConfig           `mapstructure:"aws"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Export        ExportConfig        `mapstructure:"export"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// AWSConfig selects the AWS account surface.
type AWSConfig struct {
	// Region hosting the log groups and the queue.
	Region string `mapstructure:"region"`

	// Profile is an optional shared-config profile.
	Profile string `mapstructure:"profile"`
}

// ArchiveConfig tunes the discovery pipeline.
type ArchiveConfig struct {
	// QueueURL is the export-job queue (required for evaluate/worker).
	QueueURL string `mapstructure:"queue_url"`

	// IncludePatterns/ExcludePatterns select log groups by name glob.
	IncludePatterns []string `mapstructure:"include_patterns"`
	ExcludePatterns []string `mapstructure:"exclude_patterns"`

	// BatchSize is the log-group listing page size.
	BatchSize int `mapstructure:"batch_size"`

	// SQSBatchSize is the queue flush threshold (max 10).
	SQSBatchSize int `mapstructure:"sqs_batch_size"`

	// MaxRetries bounds per-stage retry loops.
	MaxRetries int `mapstructure:"max_retries"`

	// MaxBackoffDelay caps listing retry backoff.
	MaxBackoffDelay time.Duration `mapstructure:"max_backoff_delay"`

	// ChannelBuffer is the bounded-channel capacity between stages.
	ChannelBuffer int `mapstructure:"channel_buffer"`

	// RateLimit tunes the shared token bucket.
	RateMaxTokens  float64 `mapstructure:"rate_max_tokens"`
	RateRefillRate float64 `mapstructure:"rate_refill_rate"`

	// DryRun skips the actual queue send.
	DryRun bool `mapstructure:"dry_run"`

	// Preflight verifies the destination bucket and store before a run.
	Preflight bool `mapstructure:"preflight"`
}

// ExportConfig tunes the export executor.
type ExportConfig struct {
	// Bucket is the destination bucket (required for export/worker).
	Bucket string `mapstructure:"bucket"`

	// Concurrency caps in-flight store calls per execution.
	Concurrency int `mapstructure:"concurrency"`

	// PollRate paces worker queue receives, in receives per second.
	PollRate float64 `mapstructure:"poll_rate"`
}

// ServerConfig configures the worker status server.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`

	// Format is "json" or "console".
	Format string `mapstructure:"format"`
}

// NotificationsConfig configures error webhooks.
type NotificationsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// setDefaults registers defaults on the given viper instance.
func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need one registered so
	// AutomaticEnv surfaces their environment values during Unmarshal.
	v.SetDefault("archive.queue_url", "")
	v.SetDefault("archive.include_patterns", []string{})
	v.SetDefault("archive.exclude_patterns", []string{})
	v.SetDefault("export.bucket", "")
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.webhook_url", "")

	v.SetDefault("archive.batch_size", 5)
	v.SetDefault("archive.sqs_batch_size", 10)
	v.SetDefault("archive.max_retries", 5)
	v.SetDefault("archive.max_backoff_delay", "2s")
	v.SetDefault("archive.channel_buffer", 16)
	v.SetDefault("archive.rate_max_tokens", 10)
	v.SetDefault("archive.rate_refill_rate", 5)
	v.SetDefault("archive.dry_run", false)
	v.SetDefault("archive.preflight", true)

	v.SetDefault("export.concurrency", 2)
	v.SetDefault("export.poll_rate", 1)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configuration from the environment and an optional config file
// path. Environment variables use the LOGVAULT_ prefix with underscores
// (e.g. LOGVAULT_ARCHIVE_QUEUE_URL); AWS_REGION is honored directly.
func Load(_ context.Context, configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LOGVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional AWS variables take effect without the prefix.
	_ = v.BindEnv("aws.region", "LOGVAULT_AWS_REGION", "AWS_REGION")
	_ = v.BindEnv("aws.profile", "LOGVAULT_AWS_PROFILE", "AWS_PROFILE")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// ValidateEvaluate checks the fields the discovery pipeline requires.
func (c *Config) ValidateEvaluate() error {
	if c.AWS.Region == "" {
		return errors.New("AWS region is required (AWS_REGION)")
	}
	if c.Archive.QueueURL == "" {
		return errors.New("job queue URL is required (LOGVAULT_ARCHIVE_QUEUE_URL)")
	}
	return nil
}

// ValidateExport checks the fields the export executor requires.
func (c *Config) ValidateExport() error {
	if c.AWS.Region == "" {
		return errors.New("AWS region is required (AWS_REGION)")
	}
	if c.Export.Bucket == "" {
		return errors.New("export bucket is required (LOGVAULT_EXPORT_BUCKET)")
	}
	if c.Notifications.Enabled && c.Notifications.WebhookURL == "" {
		return errors.New("webhook URL is required when notifications are enabled (LOGVAULT_NOTIFICATIONS_WEBHOOK_URL)")
	}
	return nil
}
