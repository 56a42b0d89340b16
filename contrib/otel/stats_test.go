package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/go-kratos/bearing"
)

func newTestSink(t *testing.T) (*Sink, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	return NewSink(WithTracerProvider(tp)), exporter
}

func TestSink_RecordWithoutActiveSpanIsNoop(t *testing.T) {
	sink, _ := newTestSink(t)
	// Must not panic when Record fires with no StartRequest having run yet.
	sink.Record(bearing.StatsRecord{RouterName: "r"})
}

func TestSink_StartRequestThenRecordThenEnd(t *testing.T) {
	sink, exporter := newTestSink(t)

	_, span := sink.StartRequest(context.Background(), "test-router")
	sink.Record(bearing.StatsRecord{
		RouterName:  "test-router",
		Result:      bearing.NoError,
		Distance:    42,
		HasDistance: true,
	})
	sink.End(span, bearing.StatsRecord{
		RouterName: "test-router",
		Result:     bearing.NoError,
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}

	var sawDistance bool
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "nav.distance_meters" {
			sawDistance = true
		}
	}
	if !sawDistance {
		t.Error("span is missing nav.distance_meters attribute set by Record before End")
	}

	// A Record call after End must not touch the now-finished span.
	sink.Record(bearing.StatsRecord{RouterName: "test-router"})
}

func TestSink_EndMarksExceptionAsError(t *testing.T) {
	sink, exporter := newTestSink(t)
	_, span := sink.StartRequest(context.Background(), "test-router")
	sink.End(span, bearing.StatsRecord{
		RouterName:   "test-router",
		HasException: true,
		Exception:    "boom",
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("exported %d spans, want 1", len(spans))
	}
	if spans[0].Status.Description != "boom" {
		t.Errorf("status description = %q, want boom", spans[0].Status.Description)
	}
}
