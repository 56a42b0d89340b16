// Package otel adapts bearing's statistics sink and per-request tracing
// onto OpenTelemetry: each CalculateRoute submission becomes a span, and
// every statistics record lands on it as nav.* attributes.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-kratos/bearing"
)

const scope = "github.com/go-kratos/bearing/contrib/otel"

// Option configures a Sink.
type Option func(*Sink)

// WithTracerProvider installs a custom TracerProvider; the default is
// otel.GetTracerProvider().
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Sink) { s.tracer = tp.Tracer(scope) }
}

// Sink is a bearing.StatsSink that records each StatsRecord as span
// attributes on the span started by StartRequest. It is meant to be
// installed with Dispatcher.SetStatsSink / bearing.WithStatsSink.
type Sink struct {
	tracer trace.Tracer

	mu   sync.Mutex
	span trace.Span
}

// NewSink constructs an OpenTelemetry-backed statistics sink.
func NewSink(opts ...Option) *Sink {
	s := &Sink{tracer: otel.GetTracerProvider().Tracer(scope)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Record implements bearing.StatsSink. bearing.StatsSink.Record carries
// no context, so Sink tracks the span started by the most recent
// StartRequest itself; this is safe because the dispatcher
// guarantees at most one request's terminal callback runs at a time, so
// Record always corresponds to the span StartRequest most recently opened.
func (s *Sink) Record(rec bearing.StatsRecord) {
	s.mu.Lock()
	span := s.span
	s.mu.Unlock()
	if span == nil || !span.SpanContext().IsValid() {
		return
	}
	recordAttributes(span, rec)
}

// StartRequest begins a span covering one CalculateRoute submission
// through its terminal callback. Callers keep the returned
// context.Context and pass it through to their own request plumbing; End
// must be called once the terminal callback fires.
func (s *Sink) StartRequest(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "bearing.calculate_route", trace.WithAttributes(
		attribute.String("nav.router.name", name),
	))
	s.mu.Lock()
	s.span = span
	s.mu.Unlock()
	return ctx, span
}

// End finalizes a span started by StartRequest, recording the final
// outcome and, for an exception outcome, marking the span as errored. It
// also clears the span Record reads, so a stale completed span is never
// attributed to the next request.
func (s *Sink) End(span trace.Span, rec bearing.StatsRecord) {
	s.mu.Lock()
	if s.span == span {
		s.span = nil
	}
	s.mu.Unlock()
	End(span, rec)
}

// End is the Sink-free form: it finalizes span directly, for callers that
// don't route completion through a Sink.
func End(span trace.Span, rec bearing.StatsRecord) {
	defer span.End()
	recordAttributes(span, rec)
	if rec.HasException {
		span.SetStatus(codes.Error, rec.Exception)
		return
	}
	if rec.Result != bearing.NoError && rec.Result != bearing.NeedMoreMaps {
		span.SetStatus(codes.Error, rec.Result.String())
		return
	}
	span.SetStatus(codes.Ok, "")
}

func recordAttributes(span trace.Span, rec bearing.StatsRecord) {
	attrs := []attribute.KeyValue{
		attribute.String("nav.router.name", rec.RouterName),
		attribute.Float64("nav.start.lon", rec.StartLon),
		attribute.Float64("nav.start.lat", rec.StartLat),
		attribute.Float64("nav.final.lon", rec.FinalLon),
		attribute.Float64("nav.final.lat", rec.FinalLat),
	}
	if rec.HasException {
		attrs = append(attrs, attribute.String("nav.exception", rec.Exception))
		span.SetAttributes(attrs...)
		return
	}
	attrs = append(attrs,
		attribute.String("nav.result", rec.Result.String()),
		attribute.Float64("nav.elapsed_seconds", rec.ElapsedSeconds),
	)
	if rec.HasDistance {
		attrs = append(attrs, attribute.Float64("nav.distance_meters", rec.Distance))
	}
	span.SetAttributes(attrs...)
}
