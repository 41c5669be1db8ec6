package instrument

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracingObserver opens one span per retry attempt and records one event
// per circuit breaker transition.
type TracingObserver struct {
	tracer trace.Tracer
}

// NewTracingObserver builds a TracingObserver from tracer.
func NewTracingObserver(tracer trace.Tracer) *TracingObserver {
	return &TracingObserver{tracer: tracer}
}

// WrapOperation wraps op so that every invocation opens its own span named
// "<name>.attempt", closing it with the operation's error. Go methods can't
// be generic, so this is a free function parameterized over the retry
// orchestrator's result type.
func WrapOperation[T any](o *TracingObserver, name string, op func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		ctx, span := o.tracer.Start(ctx, name+".attempt")
		defer span.End()

		result, err := op(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return result, err
	}
}

// BreakerHooks returns OnOpen/OnClose/OnHalfOpen callbacks that add an event
// to the span found in ctx (if any) naming the transition. Wire the results
// into breaker.Config.OnOpen/OnClose/OnHalfOpen.
func (o *TracingObserver) BreakerHooks(ctx context.Context, circuitName string) (onOpen, onClose, onHalfOpen func()) {
	span := trace.SpanFromContext(ctx)

	event := func(transition string) func() {
		return func() {
			span.AddEvent(fmt.Sprintf("circuit_breaker.%s", transition),
				trace.WithAttributes(attribute.String("circuit", circuitName)))
		}
	}

	return event("open"), event("close"), event("half_open")
}

// MeterObserver records retry and breaker events as OTel metric instruments,
// for applications exporting through an OTel metrics pipeline instead of
// (or alongside) Prometheus. Prefer PrometheusObserver when the app already
// scrapes Prometheus; the two are independent adapters over the same
// breaker/retry observer callback signatures.
type MeterObserver struct {
	name string

	retryAttempts metric.Int64Counter
	transitions   metric.Int64Counter
}

// NewMeterObserver builds a MeterObserver from meter, labeling every
// recorded instrument with name.
func NewMeterObserver(name string, meter metric.Meter) (*MeterObserver, error) {
	retryAttempts, err := meter.Int64Counter(
		"resilient_http.retry.attempts",
		metric.WithDescription("Number of retry attempts that failed and triggered another attempt."),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"resilient_http.breaker.transitions",
		metric.WithDescription("Number of circuit breaker state transitions, labeled by target state."),
	)
	if err != nil {
		return nil, err
	}

	return &MeterObserver{name: name, retryAttempts: retryAttempts, transitions: transitions}, nil
}

// OnRetry matches retry.Config.OnRetry's signature.
func (o *MeterObserver) OnRetry(_ error, _ int, _ time.Duration) {
	o.retryAttempts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("operation", o.name)))
}

// OnOpen matches breaker.Config.OnOpen's signature.
func (o *MeterObserver) OnOpen() { o.recordTransition("open") }

// OnClose matches breaker.Config.OnClose's signature.
func (o *MeterObserver) OnClose() { o.recordTransition("closed") }

// OnHalfOpen matches breaker.Config.OnHalfOpen's signature.
func (o *MeterObserver) OnHalfOpen() { o.recordTransition("halfOpen") }

func (o *MeterObserver) recordTransition(state string) {
	o.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("circuit", o.name),
		attribute.String("state", state),
	))
}
