package cmd

import (
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/logvault/internal/observability"
	"github.com/3leaps/logvault/pkg/archive"
	"github.com/3leaps/logvault/pkg/preflight"
	"github.com/3leaps/logvault/pkg/throttle"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Discover log groups and publish export jobs",
	Long: `Run the discovery pipeline once: list log groups, enrich each with its
resource tags and next export window, and publish export jobs to the
configured SQS queue in batches.

Example:
  logvault evaluate
  logvault evaluate --dry-run
  logvault evaluate --include '/aws/lambda/**'`,
	RunE: runEvaluate,
}

var (
	evalDryRun   bool
	evalIncludes []string
	evalExcludes []string
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().BoolVar(&evalDryRun, "dry-run", false, "Run the pipeline without sending to the queue")
	evaluateCmd.Flags().StringSliceVar(&evalIncludes, "include", nil, "Log group name glob to include (repeatable)")
	evaluateCmd.Flags().StringSliceVar(&evalExcludes, "exclude", nil, "Log group name glob to exclude (repeatable)")
}

// evaluateResponse is the process result printed on stdout.
type evaluateResponse struct {
	StatusCode int              `json:"statusCode"`
	Message    string           `json:"message"`
	RunID      string           `json:"runId"`
	Metrics    archive.Snapshot `json:"metrics"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := uuid.NewString()
	logger := observability.Logger.With(zap.String("run_id", runID))

	if err := cfg.ValidateEvaluate(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if evalDryRun {
		cfg.Archive.DryRun = true
	}
	includes := append(cfg.Archive.IncludePatterns, evalIncludes...)
	excludes := append(cfg.Archive.ExcludePatterns, evalExcludes...)

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to load AWS configuration", err)
	}
	store := buildStore(awsCfg)
	q := buildQueue(awsCfg, cfg.Archive.QueueURL)

	if cfg.Archive.Preflight {
		if _, err := preflight.SourceList(ctx, store); err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Preflight failed", err)
		}
		if cfg.Export.Bucket != "" {
			s3c := s3.NewFromConfig(awsCfg)
			if _, err := preflight.Destination(ctx, s3c, cfg.Export.Bucket); err != nil {
				return exitError(foundry.ExitExternalServiceUnavailable, "Preflight failed", err)
			}
		}
	}

	filter, err := archive.NewGroupFilter(includes, excludes)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid log group patterns", err)
	}

	metrics := archive.NewRunMetrics()
	limiter := throttle.New(throttle.Config{
		MaxTokens:  cfg.Archive.RateMaxTokens,
		RefillRate: cfg.Archive.RateRefillRate,
	}, logger)

	source := archive.NewSource(store, limiter, filter, metrics, archive.SourceConfig{
		BatchSize:       int32(cfg.Archive.BatchSize),
		MaxRetries:      cfg.Archive.MaxRetries,
		MaxBackoffDelay: cfg.Archive.MaxBackoffDelay,
	}, logger)
	tags := archive.NewTagEnricher(store, limiter, metrics, archive.TagConfig{}, logger)
	window := archive.NewWindowEnricher(store, limiter, metrics, logger)
	publisher, err := archive.NewPublisher(q, limiter, metrics, archive.PublisherConfig{
		BatchSize:  cfg.Archive.SQSBatchSize,
		MaxRetries: cfg.Archive.MaxRetries,
		DryRun:     cfg.Archive.DryRun,
	}, logger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid publisher configuration", err)
	}

	pipeline := archive.NewPipeline(source, tags, window, publisher, metrics, cfg.Archive.ChannelBuffer, logger)

	start := time.Now()
	result, err := pipeline.Run(ctx)
	if err != nil {
		logger.Error("pipeline execution failed",
			zap.Error(err),
			zap.Duration("elapsed", time.Since(start)),
			zap.Any("failures", metrics.Failures()))
		return exitError(foundry.ExitExternalServiceUnavailable, "Pipeline execution failed", err)
	}

	resp := evaluateResponse{
		StatusCode: 200,
		Message:    "Pipeline execution completed",
		RunID:      runID,
		Metrics:    result.Metrics,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
