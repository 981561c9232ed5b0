package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/logvault/internal/observability"
	"github.com/3leaps/logvault/internal/server"
	"github.com/3leaps/logvault/internal/server/handlers"
	"github.com/3leaps/logvault/pkg/archive"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/queue"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume export jobs from the queue until interrupted",
	Long: `Run the export worker: receive export jobs from the configured queue one
at a time and process each with the export executor. A small status server
exposes /healthz and /status while the worker runs.

The worker stops cleanly on SIGINT or SIGTERM, finishing the in-flight job
first.

Example:
  logvault worker
  logvault worker --poll-rate 0.5`,
	RunE: runWorker,
}

var workerPollRate float64

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().Float64Var(&workerPollRate, "poll-rate", 0, "Queue receives per second (overrides config)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	logger := observability.Logger

	if err := cfg.ValidateExport(); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if cfg.Archive.QueueURL == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration",
			errors.New("job queue URL is required (LOGVAULT_ARCHIVE_QUEUE_URL)"))
	}
	pollRate := cfg.Export.PollRate
	if workerPollRate > 0 {
		pollRate = workerPollRate
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to load AWS configuration", err)
	}
	store := buildStore(awsCfg)
	q := buildQueue(awsCfg, cfg.Archive.QueueURL)

	proc, err := newJobProcessor(cfg, logger)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid export configuration", err)
	}

	var srv *server.Server
	srvErr := make(chan error, 1)
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Host, cfg.Server.Port)
		srv.Health.RegisterChecker("queue", handlers.HealthCheckerFunc(func(ctx context.Context) error {
			// The worker loop is the real liveness signal; the check only
			// confirms the process is still configured to poll.
			return nil
		}))
		go func() {
			logger.Info("status server listening",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", srv.Port()))
			srvErr <- srv.Start()
		}()
	}

	logger.Info("worker started",
		zap.String("queue_url", cfg.Archive.QueueURL),
		zap.Float64("poll_rate", pollRate))

	loopErr := workerLoop(ctx, store, q, proc, srv, pollRate, logger)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown failed", zap.Error(err))
		}
		if err := <-srvErr; err != nil {
			logger.Error("status server failed", zap.Error(err))
		}
	}

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return exitError(foundry.ExitExternalServiceUnavailable, "Worker failed", loopErr)
	}
	logger.Info("worker stopped")
	return nil
}

// workerLoop receives and processes jobs one at a time until ctx is done.
// Receive pacing is governed by a token-bucket limiter on top of the
// transport's long polling, so an empty queue does not spin.
func workerLoop(ctx context.Context, store logstore.Store, q queue.Consumer, proc *jobProcessor, srv *server.Server, pollRate float64, logger *zap.Logger) error {
	if pollRate <= 0 {
		pollRate = 1
	}
	limiter := rate.NewLimiter(rate.Limit(pollRate), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		msgs, err := q.Receive(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("queue receive failed", zap.Error(err))
			if !queue.IsRetryable(err) {
				return err
			}
			continue
		}
		if len(msgs) == 0 {
			continue
		}

		for _, msg := range msgs {
			outcome := processMessage(ctx, store, q, proc, msg, logger)
			if srv != nil {
				srv.Tracker.RecordJob(outcome.logGroup, outcome.label)
			}
		}
	}
}

type jobOutcome struct {
	logGroup string
	label    string
}

// processMessage handles one queue message end to end. Terminal outcomes
// acknowledge the message; critical failures leave it for redelivery after
// the visibility timeout.
func processMessage(ctx context.Context, store logstore.Store, q queue.Consumer, proc *jobProcessor, msg queue.Message, logger *zap.Logger) jobOutcome {
	job, err := archive.UnmarshalJob([]byte(msg.Body))
	if err != nil {
		// A malformed message can never succeed; drop it instead of letting
		// it bounce through redelivery forever.
		logger.Error("dropping malformed job message", zap.Error(err))
		if delErr := q.Delete(ctx, msg.ReceiptHandle); delErr != nil {
			logger.Error("failed to delete malformed message", zap.Error(delErr))
		}
		return jobOutcome{label: handlers.OutcomeFailed}
	}

	start := time.Now()
	outcome, execErr := proc.process(ctx, store, job)
	if execErr != nil {
		logger.Error("export job failed",
			zap.String("log_group", job.Params.LogGroupName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(execErr))
		return jobOutcome{logGroup: job.Params.LogGroupName, label: handlers.OutcomeFailed}
	}

	if err := q.Delete(ctx, msg.ReceiptHandle); err != nil {
		logger.Error("failed to delete queue message", zap.Error(err))
	}
	logger.Info("export job finished",
		zap.String("log_group", job.Params.LogGroupName),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
	return jobOutcome{logGroup: job.Params.LogGroupName, label: outcome}
}
