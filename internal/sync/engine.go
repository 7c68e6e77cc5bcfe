package sync

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

const (
	otelScope       = "bookmarkrelay/sync"
	spanDrain       = "queue.drain"
	metricQueued    = "bookmarkrelay.events.queued"
	metricApplied   = "bookmarkrelay.changes.applied"
	metricPasses    = "bookmarkrelay.sync.passes"
	metricReordered = "bookmarkrelay.containers.reordered"
	metricErrors    = "bookmarkrelay.errors"
)

// Engine feeds native events into a [Processor] and drains it whenever events
// arrive. Create one with [NewEngine], register [Engine.HandleEvent] as the
// native listener and start it with [Engine.Run].
type Engine struct {
	proc *Processor
	log  *slog.Logger

	// OTel instruments; no-op when telemetry is disabled.
	tracer       trace.Tracer
	cntQueued    metric.Int64Counter
	cntApplied   metric.Int64Counter
	cntPasses    metric.Int64Counter
	cntReordered metric.Int64Counter
	cntErrors    metric.Int64Counter
}

// NewEngine creates an Engine around proc.
func NewEngine(proc *Processor, logger *slog.Logger) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Engine{
		proc: proc,
		log:  logger,

		tracer:       tracer,
		cntQueued:    mustCounter(metricQueued, "Number of native bookmark events queued"),
		cntApplied:   mustCounter(metricApplied, "Number of bookmark changes synced"),
		cntPasses:    mustCounter(metricPasses, "Number of sync passes run"),
		cntReordered: mustCounter(metricReordered, "Number of emulated container folders moved"),
		cntErrors:    mustCounter(metricErrors, "Number of failed drain cycles"),
	}
}

// HandleEvent queues a native event. It is safe to call from any goroutine.
func (e *Engine) HandleEvent(ev model.NativeEvent) {
	if _, ok := e.proc.Enqueue(ev); ok {
		e.cntQueued.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("change.type", ev.Type.String())))
	}
}

// Drain runs one drain of the processor, recording a span and metrics.
func (e *Engine) Drain(ctx context.Context) (CycleStats, error) {
	ctx, span := e.tracer.Start(ctx, spanDrain)
	defer span.End()

	stats, err := e.proc.Drain(ctx)

	if stats.Changes > 0 {
		e.cntApplied.Add(ctx, int64(stats.Changes))
	}
	if stats.Syncs > 0 {
		e.cntPasses.Add(ctx, int64(stats.Syncs))
	}
	if stats.Reordered > 0 {
		e.cntReordered.Add(ctx, int64(stats.Reordered))
	}

	span.SetAttributes(
		attribute.Int("queue.events", stats.Events),
		attribute.Int("sync.changes", stats.Changes),
		attribute.Int("sync.passes", stats.Syncs),
		attribute.Int("containers.reordered", stats.Reordered),
		attribute.Bool("tree.restored", stats.Restored),
	)
	if err != nil {
		e.cntErrors.Add(ctx, 1)
		span.RecordError(err)
	}
	return stats, err
}

// Run drains the queue each time an event arrives. It blocks until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-e.proc.Wake():
			stats, err := e.Drain(ctx)
			if err != nil {
				e.log.Error("drain failed", "error", err)
				continue
			}
			if stats.Events > 0 {
				e.log.Info("drain complete", "events", stats.Events, "changes", stats.Changes, "restored", stats.Restored)
			}
		}
	}
}
