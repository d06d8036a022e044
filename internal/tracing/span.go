package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

// VisitTracer instruments visits and their events. It satisfies the engine's
// tracer hook: one span per visit, one client span per tracking hit.
type VisitTracer struct {
	tracer    trace.Tracer
	propagate bool
}

func NewVisitTracer(provider *Provider) *VisitTracer {
	return &VisitTracer{
		tracer:    provider.Tracer(),
		propagate: provider.ShouldPropagate(),
	}
}

// StartVisit opens the visit span. The returned finish function records the
// visit's last delivery error, if any, and ends the span.
func (t *VisitTracer) StartVisit(ctx context.Context, plan *visit.Plan, vc tracker.VisitContext) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, "visit",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("visit.id", vc.VisitID),
		attribute.String("visit.visitor_id", vc.VisitorID),
		attribute.String("visit.category", plan.Category),
		attribute.String("visit.subcategory", plan.Subcategory),
		attribute.Int("visit.events", len(plan.Events)),
		attribute.Int("visit.pageviews", plan.Pageviews()),
	)
	return ctx, func(err error) { endSpan(span, err) }
}

// StartEvent opens a client span for one tracking hit. When propagation is
// enabled the returned headers carry W3C trace context for the request.
func (t *VisitTracer) StartEvent(ctx context.Context, evt visit.Event, index int) (context.Context, http.Header, func(error)) {
	ctx, span := t.tracer.Start(ctx, "hit "+string(evt.Kind),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("hit.kind", string(evt.Kind)),
		attribute.String("hit.url", evt.URL),
		attribute.Int("hit.index", index),
	)

	var headers http.Header
	if t.propagate {
		headers = http.Header{}
		InjectHTTPHeaders(ctx, headers)
	}
	return ctx, headers, func(err error) { endSpan(span, err) }
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
