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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestInitMeterProvider(t *testing.T) {
	mp, err := InitMeterProvider(Config{ServiceName: "warehouse-graphql-test", ServiceVersion: "1.0.0", Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, mp.Exporter())
	assert.NoError(t, mp.Shutdown(context.Background(), testLogger()))
}

func TestInitMetrics(t *testing.T) {
	mp, err := InitMeterProvider(Config{ServiceName: "warehouse-graphql-test"})
	require.NoError(t, err)
	defer func() { _ = mp.Shutdown(context.Background(), testLogger()) }()

	m, err := InitMetrics(testLogger())
	require.NoError(t, err)
	require.NotNil(t, m.requestDuration)
	require.NotNil(t, m.mutationCounter)
	require.NotNil(t, m.loaderBatchKeys)
}

func TestParseOTLPProtocol(t *testing.T) {
	for in, want := range map[string]otlpProtocol{
		"":              otlpProtocolGRPC,
		"GRPC":          otlpProtocolGRPC,
		"http":          otlpProtocolHTTP,
		"http/protobuf": otlpProtocolHTTP,
	} {
		got, err := parseOTLPProtocol(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseOTLPProtocol("thrift")
	assert.Error(t, err)
}

func TestResolveExporterSettings(t *testing.T) {
	s, err := resolveExporterSettings(OTLPExporterConfig{
		Endpoint:         "https://collector:4318",
		Protocol:         "http/protobuf",
		Compression:      "gzip",
		RetryEnabled:     true,
		RetryMaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.True(t, s.endpointURL)
	assert.True(t, s.gzip)
	assert.True(t, s.retry)
	require.NotNil(t, s.tls)

	s, err = resolveExporterSettings(OTLPExporterConfig{Endpoint: "collector:4317", Insecure: true, RetryEnabled: true})
	require.NoError(t, err)
	assert.False(t, s.endpointURL)
	assert.Nil(t, s.tls)
	assert.False(t, s.retry, "retry needs a positive attempt budget")
}

func TestBuildTLSConfig_FileNotFound(t *testing.T) {
	_, err := buildTLSConfig(OTLPExporterConfig{TLSCertFile: "/nonexistent/ca.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read OTLP TLS CA file")
}

func TestBuildTLSConfig_InvalidCertFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not-a-cert"), 0o600))

	_, err := buildTLSConfig(OTLPExporterConfig{TLSCertFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse OTLP TLS CA file")
}

func TestTraceSamplerForRatio_Boundaries(t *testing.T) {
	params := func(id byte) sdktrace.SamplingParameters {
		return sdktrace.SamplingParameters{ParentContext: context.Background(), TraceID: trace.TraceID{id}, Name: "test"}
	}
	assert.Equal(t, sdktrace.Drop, traceSamplerForRatio(0).ShouldSample(params(1)).Decision)
	assert.Equal(t, sdktrace.RecordAndSample, traceSamplerForRatio(1).ShouldSample(params(2)).Decision)
}

func TestTraceSamplerForRatio_FollowsParent(t *testing.T) {
	sampler := traceSamplerForRatio(0.5)
	child := func(flags trace.TraceFlags, id byte) sdktrace.SamplingDecision {
		parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{id},
			SpanID:     trace.SpanID{1},
			TraceFlags: flags,
			Remote:     true,
		}))
		return sampler.ShouldSample(sdktrace.SamplingParameters{ParentContext: parent, TraceID: trace.TraceID{id}, Name: "child"}).Decision
	}
	assert.Equal(t, sdktrace.RecordAndSample, child(trace.FlagsSampled, 3))
	assert.Equal(t, sdktrace.Drop, child(0, 4))
}
