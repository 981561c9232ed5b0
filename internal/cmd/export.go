package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/logvault/internal/config"
	"github.com/3leaps/logvault/internal/observability"
	"github.com/3leaps/logvault/pkg/archive"
	"github.com/3leaps/logvault/pkg/export"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/notify"
	"github.com/3leaps/logvault/pkg/queue"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Process a single export job",
	Long: `Process one export job: create the CloudWatch export task for the job's
date window and record the outcome in the log group's bookmark tags.

The job is read from --message, --message-file, or, when neither is set,
a single receive from the configured queue.

Example:
  logvault export --message '{"logGroupName":"/aws/lambda/app",...}'
  logvault export --message-file job.json
  logvault export`,
	RunE: runExport,
}

var (
	exportMessage     string
	exportMessageFile string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportMessage, "message", "", "Export job JSON (as published by evaluate)")
	exportCmd.Flags().StringVar(&exportMessageFile, "message-file", "", "Path to a file holding the export job JSON")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := observability.Logger

	if err := cfg.ValidateExport(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to load AWS configuration", err)
	}
	store := buildStore(awsCfg)

	proc, err := newJobProcessor(cfg, logger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid export configuration", err)
	}

	body, receiptHandle, q, err := readJobBody(ctx, awsCfg)
	if err != nil {
		return err
	}
	if body == "" {
		logger.Info("no export jobs available")
		return nil
	}

	job, err := archive.UnmarshalJob([]byte(body))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid export job message", err)
	}

	outcome, execErr := proc.process(ctx, store, job)
	if execErr != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Export job failed", execErr)
	}

	// The job is acknowledged on every terminal outcome, including the
	// warning downgrade: the failed run is bookmarked and redelivery would
	// only replay the same invalid window.
	if receiptHandle != "" {
		if err := q.Delete(ctx, receiptHandle); err != nil {
			logger.Error("failed to delete queue message", zap.Error(err))
		}
	}

	logger.Info("export job finished",
		zap.String("log_group", job.Params.LogGroupName),
		zap.String("outcome", outcome))
	return nil
}

// readJobBody resolves the job source: flag, file, or one queue receive.
func readJobBody(ctx context.Context, awsCfg aws.Config) (body, receiptHandle string, q queue.Consumer, err error) {
	switch {
	case exportMessage != "":
		return exportMessage, "", nil, nil
	case exportMessageFile != "":
		data, err := os.ReadFile(exportMessageFile)
		if err != nil {
			return "", "", nil, exitError(foundry.ExitInvalidArgument, "Failed to read message file", err)
		}
		return string(data), "", nil, nil
	default:
		if cfg.Archive.QueueURL == "" {
			return "", "", nil, exitError(foundry.ExitInvalidArgument, "No job source",
				errors.New("set --message, --message-file, or LOGVAULT_ARCHIVE_QUEUE_URL"))
		}
		client := buildQueue(awsCfg, cfg.Archive.QueueURL)
		msgs, err := client.Receive(ctx, 1)
		if err != nil {
			return "", "", nil, exitError(foundry.ExitExternalServiceUnavailable, "Failed to receive from queue", err)
		}
		if len(msgs) == 0 {
			return "", "", nil, nil
		}
		return msgs[0].Body, msgs[0].ReceiptHandle, client, nil
	}
}

// jobProcessor runs one export job and classifies the outcome, notifying on
// critical failures when a webhook is configured.
type jobProcessor struct {
	cfg      *config.Config
	notifier *notify.Notifier
	logger   *zap.Logger
}

func newJobProcessor(cfg *config.Config, logger *zap.Logger) (*jobProcessor, error) {
	p := &jobProcessor{cfg: cfg, logger: logger}
	if cfg.Notifications.Enabled {
		n, err := notify.New(cfg.Notifications.WebhookURL)
		if err != nil {
			return nil, err
		}
		p.notifier = n
	}
	return p, nil
}

// process executes one job with a fresh executor so breaker and queue state
// never leak across jobs. It returns the outcome label and, for critical
// failures only, the error; warning-severity failures are terminal and
// reported as a clean outcome.
func (p *jobProcessor) process(ctx context.Context, store logstore.Store, job archive.Job) (string, error) {
	exec, err := export.New(store, export.Config{
		Bucket:      p.cfg.Export.Bucket,
		Concurrency: p.cfg.Export.Concurrency,
	}, p.logger)
	if err != nil {
		return "", err
	}

	skip := job.Params.SkipExport
	execErr := exec.Execute(ctx, job)
	switch {
	case execErr == nil && skip:
		return "skipped", nil
	case execErr == nil:
		return "success", nil
	case export.IsWarning(execErr):
		p.logger.Warn("export job finished with warning",
			zap.String("log_group", job.Params.LogGroupName),
			zap.Error(execErr))
		return "warned", nil
	default:
		p.notify(ctx, job, execErr)
		return "failed", fmt.Errorf("exporting %s: %w", job.Params.LogGroupName, execErr)
	}
}

func (p *jobProcessor) notify(ctx context.Context, job archive.Job, execErr error) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyExportFailure(ctx, job, execErr); err != nil {
		p.logger.Error("failed to send failure notification", zap.Error(err))
	}
}
