package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/visitforge/visitforge/internal/config"
	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

func setupRecordingTracer(t *testing.T) (*tracetest.InMemoryExporter, *VisitTracer) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
	})
	return exporter, &VisitTracer{tracer: tp.Tracer("test"), propagate: true}
}

func samplePlan() *visit.Plan {
	return &visit.Plan{
		Events: []visit.Event{
			{Kind: visit.KindPageview, URL: "https://shop.example.com/"},
			{Kind: visit.KindOutlink, URL: "https://github.com/x", Referrer: "https://shop.example.com/"},
		},
		Category:    "products",
		Subcategory: "widgets",
	}
}

func TestInitDisabledByDefault(t *testing.T) {
	p, err := Init(context.Background(), config.TracingConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if p.ShouldPropagate() {
		t.Error("ShouldPropagate() = true, want false when tracing disabled")
	}

	// The no-op tracer must be usable without panicking.
	vt := NewVisitTracer(p)
	ctx, finishVisit := vt.StartVisit(context.Background(), samplePlan(), tracker.VisitContext{VisitID: "v"})
	_, headers, finishEvent := vt.StartEvent(ctx, samplePlan().Events[0], 0)
	if headers != nil {
		t.Error("headers injected while propagation disabled")
	}
	finishEvent(nil)
	finishVisit(nil)
}

func TestInitUnsupportedProtocol(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Endpoint: "localhost:4317",
		Protocol: "thrift",
		Insecure: true,
	})
	if err == nil {
		t.Fatal("Init accepted an unsupported protocol")
	}
}

func TestInitRejectsSampleRateOutOfRange(t *testing.T) {
	_, err := Init(context.Background(), config.TracingConfig{
		Endpoint:   "localhost:4317",
		Protocol:   "grpc",
		SampleRate: 1.5,
		Insecure:   true,
	})
	if err == nil {
		t.Fatal("Init accepted sample rate 1.5")
	}
}

func TestVisitTracerSpans(t *testing.T) {
	exporter, vt := setupRecordingTracer(t)

	plan := samplePlan()
	vc := tracker.VisitContext{VisitID: "01ARZ", VisitorID: "0123456789abcdef"}

	ctx, finishVisit := vt.StartVisit(context.Background(), plan, vc)
	_, headers, finishEvent := vt.StartEvent(ctx, plan.Events[1], 1)
	finishEvent(errors.New("status 500"))
	finishVisit(nil)

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}

	// Children end before parents, so the hit span comes first.
	hit, visitSpan := spans[0], spans[1]
	if hit.Name != "hit outlink" {
		t.Errorf("hit span name = %q", hit.Name)
	}
	if hit.Status.Code != codes.Error {
		t.Errorf("hit span status = %v, want error", hit.Status.Code)
	}
	if hit.Parent.SpanID() != visitSpan.SpanContext.SpanID() {
		t.Error("hit span is not a child of the visit span")
	}
	if visitSpan.Name != "visit" {
		t.Errorf("visit span name = %q", visitSpan.Name)
	}
	if visitSpan.Status.Code != codes.Ok {
		t.Errorf("visit span status = %v, want ok", visitSpan.Status.Code)
	}

	if headers.Get("Traceparent") == "" {
		t.Error("no traceparent header injected despite propagation")
	}
}
