package observability

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func testObsLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	})
	require.NoError(t, err)
	require.NotNil(t, mp)
	require.NotNil(t, mp.provider)
	require.NotNil(t, mp.exporter)
	require.NotNil(t, mp.Exporter())

	assert.NoError(t, mp.Shutdown(context.Background(), testObsLogger()))
}

func TestInitMetrics(t *testing.T) {
	mp, err := InitMeterProvider(Config{
		ServiceName:    "test-service",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	})
	require.NoError(t, err)
	defer mp.Shutdown(context.Background(), testObsLogger())

	metrics, err := InitMetrics(testObsLogger())
	require.NoError(t, err)
	require.NotNil(t, metrics)

	require.NotNil(t, metrics.requestDuration)
	require.NotNil(t, metrics.requestCounter)
	require.NotNil(t, metrics.errorCounter)
	require.NotNil(t, metrics.activeRequests)
}

func TestParseOTLPProtocol(t *testing.T) {
	for _, value := range []string{"", "grpc", "GRPC", " grpc "} {
		got, err := parseOTLPProtocol(value)
		require.NoError(t, err, "value %q", value)
		assert.Equal(t, otlpProtocolGRPC, got)
	}
	for _, value := range []string{"http", "http/protobuf"} {
		got, err := parseOTLPProtocol(value)
		require.NoError(t, err, "value %q", value)
		assert.Equal(t, otlpProtocolHTTP, got)
	}

	_, err := parseOTLPProtocol("thrift")
	require.Error(t, err)
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	_, err := buildTLSConfig(OTLPExporterConfig{
		TLSCertFile: "/nonexistent/ca.pem",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	_, err := buildTLSConfig(OTLPExporterConfig{TLSCertFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestBuildTLSConfig_MissingClientKeyPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.crt")
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0600))

	// A client cert without its key is a configuration error, not mTLS.
	_, err := buildTLSConfig(OTLPExporterConfig{TLSClientCertFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OTLP TLS client cert and key must both be set")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	never := traceSamplerForRatio(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{1},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.Drop, never)

	always := traceSamplerForRatio(1).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       trace.TraceID{2},
		Name:          "test",
	}).Decision
	assert.Equal(t, sdktrace.RecordAndSample, always)
}

func TestTraceSamplerForRatio_ParentAwareMidRange(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)

	parentSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{3},
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))
	assert.Equal(t, sdktrace.RecordAndSample, sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentSampled,
		TraceID:       trace.TraceID{4},
		Name:          "child",
	}).Decision)

	parentNotSampled := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{5},
		SpanID:  trace.SpanID{2},
		Remote:  true,
	}))
	assert.Equal(t, sdktrace.Drop, sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: parentNotSampled,
		TraceID:       trace.TraceID{6},
		Name:          "child",
	}).Decision)
}
