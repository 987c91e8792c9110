package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StageInstruments publishes metrics and traces for bootstrap stages.
type StageInstruments struct {
	meterEnabled bool
	traceEnabled bool

	counterStages   metric.Int64Counter
	counterFailures metric.Int64Counter
	histDuration    metric.Int64Histogram

	tracer trace.Tracer
}

// StageHandle tracks one stage execution from start to end.
type StageHandle struct {
	ctx   context.Context
	span  trace.Span
	start time.Time
	name  string
	inst  *StageInstruments
}

func newStageInstruments(p *Provider) *StageInstruments {
	if p == nil {
		return nil
	}

	inst := &StageInstruments{
		meterEnabled: p.meterProvider != nil,
		traceEnabled: p.tracerProvider != nil,
		tracer:       p.tracer,
	}

	if inst.meterEnabled {
		inst.counterStages, _ = p.meter.Int64Counter("devsetup.stage.runs",
			metric.WithDescription("Number of bootstrap stage executions"))
		inst.counterFailures, _ = p.meter.Int64Counter("devsetup.stage.failures",
			metric.WithDescription("Number of failed bootstrap stages"))
		inst.histDuration, _ = p.meter.Int64Histogram("devsetup.stage.duration_ms",
			metric.WithDescription("Bootstrap stage duration in milliseconds"),
			metric.WithUnit("ms"))
	}

	return inst
}

// StageStarted opens a span for the named stage and returns a handle that
// must be ended exactly once. Disabled instruments yield an inert handle.
func (s *StageInstruments) StageStarted(ctx context.Context, name string) *StageHandle {
	h := &StageHandle{ctx: ctx, start: time.Now(), name: name, inst: s}
	if s == nil || !s.traceEnabled || s.tracer == nil {
		return h
	}
	h.ctx, h.span = s.tracer.Start(ctx, "stage."+name,
		trace.WithAttributes(attribute.String("devsetup.stage", name)))
	return h
}

// Context returns the context carrying the stage span, or the original
// context when tracing is disabled.
func (h *StageHandle) Context() context.Context {
	if h == nil {
		return context.Background()
	}
	return h.ctx
}

// End records the stage outcome on the span and the counters.
func (h *StageHandle) End(err error) {
	if h == nil {
		return
	}
	if h.span != nil {
		if err != nil {
			h.span.RecordError(err)
			h.span.SetStatus(codes.Error, err.Error())
		} else {
			h.span.SetStatus(codes.Ok, "")
		}
		h.span.End()
	}

	inst := h.inst
	if inst == nil || !inst.meterEnabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("devsetup.stage", h.name))
	if inst.counterStages != nil {
		inst.counterStages.Add(h.ctx, 1, attrs)
	}
	if err != nil && inst.counterFailures != nil {
		inst.counterFailures.Add(h.ctx, 1, attrs)
	}
	if inst.histDuration != nil {
		inst.histDuration.Record(h.ctx, time.Since(h.start).Milliseconds(), attrs)
	}
}
