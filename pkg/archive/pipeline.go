package archive

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/logvault/pkg/logstore"
)

// DefaultChannelBuffer is the bounded-channel capacity between stages.
// Larger buffers reduce blocking but weaken backpressure.
const DefaultChannelBuffer = 16

// Result is the outcome of one pipeline run.
type Result struct {
	Metrics Snapshot
	Elapsed time.Duration
}

// Pipeline wires source → tag enrichment → window enrichment → publisher
// into one streaming run.
//
// Stages run concurrently, connected by bounded channels: a slow consumer
// pauses the producer. The first stage error cancels the rest and the run
// unwinds; a single run has no partial-success semantics.
//
// A Pipeline is safe for single use only.
type Pipeline struct {
	source    *Source
	tags      *TagEnricher
	window    *WindowEnricher
	publisher *Publisher
	metrics   *RunMetrics
	logger    *zap.Logger
	buffer    int
}

// NewPipeline assembles a pipeline from its stages. A non-positive buffer
// selects DefaultChannelBuffer.
func NewPipeline(source *Source, tags *TagEnricher, window *WindowEnricher, publisher *Publisher, metrics *RunMetrics, buffer int, logger *zap.Logger) *Pipeline {
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		source:    source,
		tags:      tags,
		window:    window,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		buffer:    buffer,
	}
}

// Run executes the pipeline to completion and returns aggregated metrics.
// On stage failure the pipeline unwinds and the first error is returned
// alongside the metrics collected so far.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	p.metrics.Start()

	pipeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	groupCh := make(chan logstore.LogGroup, p.buffer)
	taggedCh := make(chan logstore.LogGroup, p.buffer)
	jobCh := make(chan Job, p.buffer)

	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(groupCh)
		if err := p.source.Run(pipeCtx, groupCh); err != nil {
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(taggedCh)
		if err := p.tags.Run(pipeCtx, groupCh, taggedCh); err != nil {
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(jobCh)
		if err := p.window.Run(pipeCtx, taggedCh, jobCh); err != nil {
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.publisher.Run(pipeCtx, jobCh); err != nil {
			fail(err)
		}
	}()

	wg.Wait()

	result := &Result{
		Metrics: p.metrics.Snapshot(),
		Elapsed: time.Since(start),
	}

	select {
	case err := <-errCh:
		p.logger.Error("pipeline run failed", zap.Error(err))
		return result, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	p.logger.Info("pipeline run completed",
		zap.Duration("elapsed", result.Elapsed),
		zap.Int64("log_groups_processed", p.metrics.Processed()),
		zap.Int64("retries", p.metrics.Retries()))
	return result, nil
}
