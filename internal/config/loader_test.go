package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 5, cfg.Archive.BatchSize)
	assert.Equal(t, 10, cfg.Archive.SQSBatchSize)
	assert.Equal(t, 5, cfg.Archive.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Archive.MaxBackoffDelay)
	assert.Equal(t, 16, cfg.Archive.ChannelBuffer)
	assert.Equal(t, float64(10), cfg.Archive.RateMaxTokens)
	assert.Equal(t, float64(5), cfg.Archive.RateRefillRate)
	assert.False(t, cfg.Archive.DryRun)
	assert.True(t, cfg.Archive.Preflight)

	assert.Equal(t, 2, cfg.Export.Concurrency)
	assert.Equal(t, float64(1), cfg.Export.PollRate)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LOGVAULT_ARCHIVE_QUEUE_URL", "https://sqs.eu-west-1.amazonaws.com/123/jobs")
	t.Setenv("LOGVAULT_ARCHIVE_BATCH_SIZE", "25")
	t.Setenv("LOGVAULT_EXPORT_BUCKET", "archive-bucket")
	t.Setenv("LOGVAULT_LOGGING_LEVEL", "debug")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://sqs.eu-west-1.amazonaws.com/123/jobs", cfg.Archive.QueueURL)
	assert.Equal(t, 25, cfg.Archive.BatchSize)
	assert.Equal(t, "archive-bucket", cfg.Export.Bucket)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_AWSRegionFromConventionalVariable(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
}

func TestLoad_PrefixedRegionWinsOverConventional(t *testing.T) {
	t.Setenv("LOGVAULT_AWS_REGION", "us-east-2")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logvault.yaml")
	content := `
aws:
  region: eu-central-1
archive:
  queue_url: https://sqs.eu-central-1.amazonaws.com/123/jobs
  include_patterns:
    - /aws/lambda/**
  batch_size: 50
export:
  bucket: archive-bucket
  concurrency: 4
notifications:
  enabled: true
  webhook_url: https://hooks.example.com/abc
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.AWS.Region)
	assert.Equal(t, []string{"/aws/lambda/**"}, cfg.Archive.IncludePatterns)
	assert.Equal(t, 50, cfg.Archive.BatchSize)
	assert.Equal(t, 4, cfg.Export.Concurrency)
	assert.True(t, cfg.Notifications.Enabled)
	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Archive.SQSBatchSize)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestConfig_ValidateEvaluate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateEvaluate())

	cfg.AWS.Region = "eu-west-1"
	assert.Error(t, cfg.ValidateEvaluate())

	cfg.Archive.QueueURL = "https://sqs.eu-west-1.amazonaws.com/123/jobs"
	assert.NoError(t, cfg.ValidateEvaluate())
}

func TestConfig_ValidateExport(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateExport())

	cfg.AWS.Region = "eu-west-1"
	assert.Error(t, cfg.ValidateExport())

	cfg.Export.Bucket = "archive-bucket"
	assert.NoError(t, cfg.ValidateExport())

	cfg.Notifications.Enabled = true
	assert.Error(t, cfg.ValidateExport(), "enabled notifications require a webhook URL")

	cfg.Notifications.WebhookURL = "https://hooks.example.com/abc"
	assert.NoError(t, cfg.ValidateExport())
}
