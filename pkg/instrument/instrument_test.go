package instrument

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestPrometheusObserver_RecordsRetryAndBreakerEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewPrometheusObserver("svc", reg)

	o.OnRetry(errors.New("boom"), 1, 5*time.Millisecond)
	o.OnFailure(errors.New("boom"), 3)
	o.OnOpen()
	o.OnClose()
	o.OnHalfOpen()

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	byName := map[string]*dto.MetricFamily{}
	for _, mf := range metricFamilies {
		byName[mf.GetName()] = mf
	}

	require.Contains(t, byName, "resilient_http_retry_attempts_total")
	require.Contains(t, byName, "resilient_http_breaker_opens_total")
	assert.Equal(t, float64(1), byName["resilient_http_breaker_opens_total"].Metric[0].Counter.GetValue())
}

func TestTracingObserver_WrapOperationRecordsResult(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	o := NewTracingObserver(tracer)

	wrapped := WrapOperation(o, "do-thing", func(ctx context.Context) (int, error) {
		return 42, nil
	})

	result, err := wrapped(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestMeterObserver_RecordsRetryAndBreakerEvents(t *testing.T) {
	meter := noopmetric.NewMeterProvider().Meter("test")
	o, err := NewMeterObserver("svc", meter)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		o.OnRetry(errors.New("boom"), 1, 5*time.Millisecond)
		o.OnOpen()
		o.OnClose()
		o.OnHalfOpen()
	})
}

func TestTracingObserver_BreakerHooksDoNotPanicWithoutSpan(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")
	o := NewTracingObserver(tracer)

	onOpen, onClose, onHalfOpen := o.BreakerHooks(context.Background(), "svc")
	assert.NotPanics(t, func() {
		onOpen()
		onClose()
		onHalfOpen()
	})
}
