package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "trustmesh", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.Meter())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTrackOperationDisabled(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)

	ctx, done := p.TrackOperation(context.Background(), "issue", AttrFarmID.String("F-001"), AttrCrop.String("Tomato"))
	require.NotNil(t, ctx)
	done(errors.New("boom"))

	_, done = p.TrackOperation(context.Background(), "issue")
	done(nil)

	p.RecordIssued(context.Background(), "Grade A", 90)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	_, done := p.TrackOperation(context.Background(), "noop")
	done(nil)
	p.RecordIssued(context.Background(), "Grade B", 80)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewWithProviders_RecordsSpansAndMetrics(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	p, err := NewWithProviders(tp, mp)
	require.NoError(t, err)
	require.True(t, p.Enabled())

	ctx := context.Background()
	_, done := p.TrackOperation(ctx, "engine.mint", AttrStage.String("mint"))
	done(errors.New("boom"))
	p.RecordIssued(ctx, "Grade A", 90)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "engine.mint", spans[0].Name())
	require.Contains(t, spans[0].Attributes(), AttrStage.String("mint"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	require.True(t, names["trustmesh.errors.total"])
	require.True(t, names["trustmesh.certificates.issued"])
}
