// Package export implements the consumer half of the archival system: it
// takes one export job from the queue and drives the external export task,
// bookmarking the outcome in the log group's resource tags.
package export

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/archive"
	"github.com/3leaps/logvault/pkg/backoff"
	"github.com/3leaps/logvault/pkg/breaker"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/requestq"
)

// Config tunes one executor instance.
type Config struct {
	// Bucket is the destination object-store bucket (required).
	Bucket string

	// Concurrency caps in-flight store calls from this executor. Default: 2
	Concurrency int

	// BreakerTimeout and BreakerThreshold configure this executor's
	// circuit breaker. Defaults: 60s, 5.
	BreakerTimeout   time.Duration
	BreakerThreshold int

	// MaxPollAttempts bounds the running-task pre-check poll. Default: 15
	MaxPollAttempts int

	// PollBaseDelay is the starting poll backoff, doubled per attempt up
	// to PollMaxDelay. Defaults: 100ms, 60s.
	PollBaseDelay time.Duration
	PollMaxDelay  time.Duration

	// CallJitterMax is the random sleep applied before each store call to
	// spread concurrent executors. Default: 500ms
	CallJitterMax time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:      2,
		BreakerTimeout:   60 * time.Second,
		BreakerThreshold: 5,
		MaxPollAttempts:  15,
		PollBaseDelay:    100 * time.Millisecond,
		PollMaxDelay:     60 * time.Second,
		CallJitterMax:    500 * time.Millisecond,
	}
}

// Executor processes one export job per Execute call.
//
// All outbound store calls funnel through the executor's own bounded
// request queue guarded by its own circuit breaker, bounding in-flight
// calls from a single execution and failing fast once the store is clearly
// unhealthy. Executors are not shared across concurrent jobs; the transport
// bounds that fan-out.
type Executor struct {
	store  logstore.Store
	cfg    Config
	rq     *requestq.Queue
	cb     *breaker.Breaker
	logger *zap.Logger

	// Injectable for tests.
	now    func() time.Time
	jitter func() time.Duration
	sleep  func(context.Context, time.Duration) error
}

// New creates an executor. The destination bucket must be configured.
func New(store logstore.Store, cfg Config, logger *zap.Logger) (*Executor, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: destination bucket is required", ErrValidation)
	}
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = def.BreakerThreshold
	}
	if cfg.MaxPollAttempts <= 0 {
		cfg.MaxPollAttempts = def.MaxPollAttempts
	}
	if cfg.PollBaseDelay <= 0 {
		cfg.PollBaseDelay = def.PollBaseDelay
	}
	if cfg.PollMaxDelay <= 0 {
		cfg.PollMaxDelay = def.PollMaxDelay
	}
	if cfg.CallJitterMax <= 0 {
		cfg.CallJitterMax = def.CallJitterMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Executor{
		store:  store,
		cfg:    cfg,
		rq:     requestq.New(cfg.Concurrency, logger),
		cb:     breaker.New(cfg.BreakerTimeout, cfg.BreakerThreshold, logger),
		logger: logger,
		now:    time.Now,
		sleep:  backoff.Sleep,
	}
	e.jitter = func() time.Duration {
		return time.Duration(rand.Int63n(int64(cfg.CallJitterMax)))
	}
	return e, nil
}

// Execute runs the state machine for one job:
// validate, skip or export, then bookmark.
//
// A validation-class store error is downgraded: bookmark tags record the
// failed run and a warning-severity ExportError is returned, which the
// caller may treat as a clean terminal state. Any other failure is wrapped
// critical and leaves the bookmarks unchanged so the transport's redelivery
// retries the same window.
func (e *Executor) Execute(ctx context.Context, job archive.Job) error {
	params, err := validate(job)
	if err != nil {
		return err
	}

	if params.SkipExport {
		e.logger.Info("export job skipped",
			zap.String("log_group", params.LogGroupName))
		if err := e.updateBookmarks(ctx, job, "skipped", "No logs to export for this date range"); err != nil {
			return e.wrapFailure(ctx, job, err)
		}
		return nil
	}

	taskID, err := e.runExport(ctx, params)
	if err != nil {
		return e.wrapFailure(ctx, job, err)
	}

	if err := e.updateBookmarks(ctx, job, "success",
		fmt.Sprintf("Export task completed with taskID: %s", taskID)); err != nil {
		return e.wrapFailure(ctx, job, err)
	}
	return nil
}

// validate extracts and checks the export parameters.
func validate(job archive.Job) (archive.ExportParams, error) {
	p := job.Params
	if p.LogGroupName == "" || p.ExportFromDate == 0 || p.ExportToDate == 0 {
		return p, fmt.Errorf("%w: missing required export parameters", ErrValidation)
	}
	if p.ExportFromDate >= p.ExportToDate {
		return p, fmt.Errorf("%w: exportFromDate must be before exportToDate", ErrValidation)
	}
	if job.ARN == "" {
		return p, fmt.Errorf("%w: missing log group ARN", ErrValidation)
	}
	return p, nil
}

// runExport creates the export task, guarding against overlapping tasks
// before and after submission.
func (e *Executor) runExport(ctx context.Context, params archive.ExportParams) (string, error) {
	if err := e.checkForRunningTasks(ctx, params.LogGroupName); err != nil {
		return "", err
	}

	var taskID string
	err := e.call(ctx, func() error {
		var err error
		taskID, err = e.store.CreateExportTask(ctx, e.taskInput(params))
		return err
	})
	if err != nil {
		return "", err
	}

	// Export tasks cannot overlap: re-check to avoid racing a second trigger.
	if err := e.checkForRunningTasks(ctx, params.LogGroupName); err != nil {
		return "", err
	}

	e.logger.Info("export task created",
		zap.String("log_group", params.LogGroupName),
		zap.String("task_id", taskID))
	return taskID, nil
}

// checkForRunningTasks polls until no export task is running, with
// exponential backoff. Exhausting the budget returns ErrTaskStillRunning so
// the transport redelivers the job later.
func (e *Executor) checkForRunningTasks(ctx context.Context, logGroupName string) error {
	for attempt := 0; attempt < e.cfg.MaxPollAttempts; attempt++ {
		e.logger.Info("checking export task completion",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", e.cfg.MaxPollAttempts))

		var running []logstore.ExportTask
		err := e.call(ctx, func() error {
			var err error
			running, err = e.store.ListRunningExportTasks(ctx)
			return err
		})
		if err == nil && len(running) == 0 {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("failed to check running export tasks",
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}

		delay := backoff.Exponential(e.cfg.PollBaseDelay, attempt, e.cfg.PollMaxDelay)
		e.logger.Info("waiting before next completion check",
			zap.Duration("delay", delay))
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	e.logger.Warn("task completion check exhausted",
		zap.Int("max_attempts", e.cfg.MaxPollAttempts),
		zap.String("log_group", logGroupName))
	return fmt.Errorf("%w: export job %s will be redelivered", ErrTaskStillRunning, logGroupName)
}

// call funnels one store operation through the bounded request queue and
// circuit breaker, preceded by a small random jitter sleep.
func (e *Executor) call(ctx context.Context, op func() error) error {
	return e.rq.Do(ctx, func() error {
		return e.cb.Execute(func() error {
			if err := e.sleep(ctx, e.jitter()); err != nil {
				return err
			}
			return op()
		})
	})
}

// taskInput builds the export-task request. The destination prefix encodes
// the log group and the exported range for humans browsing the bucket.
func (e *Executor) taskInput(params archive.ExportParams) logstore.CreateExportTaskInput {
	trimmed := strings.Replace(params.LogGroupName, "/", "", 1)
	from := logstore.MillisToTime(params.ExportFromDate).Format("02-01-2006")
	to := logstore.MillisToTime(params.ExportToDate).Format("02-01-2006")

	return logstore.CreateExportTaskInput{
		LogGroupName:      params.LogGroupName,
		From:              params.ExportFromDate,
		To:                params.ExportToDate,
		Destination:       e.cfg.Bucket,
		DestinationPrefix: fmt.Sprintf("%s/%s -> %s", trimmed, from, to),
		TaskName:          fmt.Sprintf("%s-%d-export", trimmed, e.now().UnixMilli()),
	}
}

// updateBookmarks merges the run outcome onto the log group's tags. The
// merge is never destructive: existing tags ride along unchanged.
func (e *Executor) updateBookmarks(ctx context.Context, job archive.Job, status, reason string) error {
	tags := make(map[string]string, len(job.Tags)+5)
	for k, v := range job.Tags {
		tags[k] = v
	}
	tags[archive.TagLastRunStatus] = status
	tags[archive.TagLastRunStatusReason] = reason
	tags[archive.TagLastUpdateTimestamp] = e.now().UTC().Format(time.RFC3339)
	tags[archive.TagPreviousExportFromDate] = strconv.FormatInt(job.Params.ExportFromDate, 10)
	tags[archive.TagPreviousExportToDate] = strconv.FormatInt(job.Params.ExportToDate, 10)

	if err := e.store.UpdateTags(ctx, job.ARN, tags); err != nil {
		e.logger.Error("failed to update log group tags",
			zap.String("log_group", job.Name),
			zap.Error(err))
		return err
	}
	e.logger.Info("log group tags updated",
		zap.String("log_group", job.Name),
		zap.String("status", status))
	return nil
}

// wrapFailure classifies an export failure. Validation-class store errors
// (typically a window with no log data) record a failed bookmark and
// downgrade to a warning; everything else escalates as critical with the
// bookmarks untouched.
func (e *Executor) wrapFailure(ctx context.Context, job archive.Job, err error) error {
	if !logstore.IsInvalidParameter(err) {
		return &ExportError{
			Severity: SeverityCritical,
			LogGroup: job.Name,
			Msg:      "critical error during log export",
			Err:      err,
		}
	}

	if tagErr := e.updateBookmarks(ctx, job, "failed", "invalid parameter"); tagErr != nil {
		e.logger.Error("failed to record failed run in tags", zap.Error(tagErr))
	}
	return &ExportError{
		Severity: SeverityWarning,
		LogGroup: job.Name,
		Msg:      "export task failed due to invalid parameters",
		Err:      err,
	}
}
