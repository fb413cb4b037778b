package tracing

import (
	"context"
	"fmt"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tr, err := New(context.Background(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if tr.Enabled() {
		t.Error("disabled tracer reports enabled")
	}

	ctx, span := tr.Start(context.Background(), "pipeline.planner")
	span.End()

	if TraceID(ctx) != "" {
		t.Errorf("noop span produced a trace id: %q", TraceID(ctx))
	}
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSpanExportAndStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tr := &Tracer{tracer: provider.Tracer("copyforge"), provider: provider, enabled: true}

	ctx, span := tr.Start(context.Background(), "pipeline.reviewer")
	if TraceID(ctx) == "" {
		t.Error("active span has no trace id")
	}
	SetStatus(span, fmt.Errorf("no matching edge"))
	span.End()

	_, ok := tr.Start(ctx, "pipeline.analyst")
	SetStatus(ok, nil)
	ok.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("exported spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "pipeline.reviewer" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].Status.Description != "no matching edge" {
		t.Errorf("error status not recorded: %+v", spans[0].Status)
	}

	// The analyst span nests under the reviewer's trace.
	if spans[1].SpanContext.TraceID() != spans[0].SpanContext.TraceID() {
		t.Error("child span left the parent trace")
	}
}
