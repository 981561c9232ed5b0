package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/throttle"
)

// NextWindow computes the next export window for a log group.
//
// The window starts at the previous export bookmark, or the log-group
// creation time when no bookmark exists, aligned down to midnight UTC, and
// spans exactly one calendar day: [midnight(from), midnight(from)+1d).
func NextWindow(g logstore.LogGroup) ExportParams {
	fromMs, ok := ParseBookmark(g.Tags, TagPreviousExportToDate)
	if !ok {
		fromMs = g.CreationTime
	}

	from := logstore.MillisToTime(fromMs)
	zeroed := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)

	return ExportParams{
		LogGroupName:   g.Name,
		ExportFromDate: zeroed.UnixMilli(),
		ExportToDate:   zeroed.AddDate(0, 0, 1).UnixMilli(),
	}
}

// WindowEnricher turns tag-enriched log groups into export jobs, probing
// the store for events so empty windows are marked for skipping instead of
// wasting export-task quota.
type WindowEnricher struct {
	store   logstore.Store
	limiter *throttle.TokenBucket
	metrics *RunMetrics
	logger  *zap.Logger
}

// NewWindowEnricher creates the export-window stage.
func NewWindowEnricher(store logstore.Store, limiter *throttle.TokenBucket, metrics *RunMetrics, logger *zap.Logger) *WindowEnricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowEnricher{
		store:   store,
		limiter: limiter,
		metrics: metrics,
		logger:  logger,
	}
}

// Run consumes log groups from in and emits export jobs to out, preserving
// order. A probe failure is recorded under the ExportJobEnrichment category
// and returned, aborting the pipeline.
func (w *WindowEnricher) Run(ctx context.Context, in <-chan logstore.LogGroup, out chan<- Job) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case g, ok := <-in:
			if !ok {
				return nil
			}
			job, err := w.enrich(ctx, g)
			if err != nil {
				w.metrics.AddFailure(CategoryWindowEnrichment, err)
				w.logger.Error("failed to enrich log group with export job",
					zap.String("log_group", g.Name),
					zap.Error(err))
				return err
			}
			select {
			case out <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// enrich computes the window and probes it for log events.
func (w *WindowEnricher) enrich(ctx context.Context, g logstore.LogGroup) (Job, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return Job{}, err
	}

	params := NextWindow(g)

	found, err := w.store.ProbeEvents(ctx, params.LogGroupName, params.ExportFromDate, params.ExportToDate)
	if err != nil {
		return Job{}, fmt.Errorf("probing export window for %s: %w", params.LogGroupName, err)
	}
	if !found {
		params.SkipExport = true
		w.logger.Warn("no logs found for requested export range, export will be skipped",
			zap.String("log_group", params.LogGroupName),
			zap.Int64("from", params.ExportFromDate),
			zap.Int64("to", params.ExportToDate))
	}

	return Job{LogGroup: g, Params: params}, nil
}
