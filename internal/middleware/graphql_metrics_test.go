package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"warehouse-graphql/internal/observability"
)

func TestGraphQLMetricsMiddleware_OperationTypeMutation(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"createWarehouse":{"warehouse":{"id":"V2FyZWhvdXNlOjE="},"errors":[]}}}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(createWarehouseBody))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.requests.total", "mutation", boolPtr(false)))
	assert.Equal(t, int64(0), sumInt64Value(rm, "graphql.errors.total", "mutation", nil))
}

func TestGraphQLMetricsMiddleware_PayloadErrorsAreNotRequestErrors(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"createWarehouse":{"warehouse":null,"errors":[{"field":"name","code":"UNIQUE"}]}}}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(createWarehouseBody))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.requests.total", "mutation", boolPtr(false)))
}

func TestGraphQLMetricsMiddleware_HTTP200WithGraphQLErrors(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom"}]}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(`{"query":"query { warehouses { totalCount } }"}`))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.requests.total", "query", boolPtr(true)))
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.errors.total", "query", nil))
}

func TestGraphQLMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphQLError(w, http.StatusInternalServerError, "failed to start transaction", "INTERNAL_SERVER_ERROR")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(createWarehouseBody))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.requests.total", "mutation", boolPtr(true)))
}

func TestGraphQLMetricsMiddleware_FallbackToUnknownOperationType(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Syntax Error"}]}`))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(`{"query":"{ warehouses {"}`))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumInt64Value(rm, "graphql.requests.total", "unknown", boolPtr(true)))
}

func TestGraphQLMetricsMiddleware_SkipsNonPost(t *testing.T) {
	handler, reader := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, observability.GraphQLMetricsFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(0), sumInt64Value(rm, "graphql.requests.total", "unknown", nil))
}

func TestGraphQLMetricsMiddleware_ExposesMetricsToResolvers(t *testing.T) {
	handler, _ := setupGraphQLMetricsMiddleware(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, observability.GraphQLMetricsFromContext(r.Context()))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), newGraphQLRequest(`{"query":"{ warehouses { totalCount } }"}`))
}

func TestResponseHasGraphQLErrors(t *testing.T) {
	assert.True(t, responseHasGraphQLErrors([]byte(`{"errors":[{"message":"x"}]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"data":{"a":1},"errors":[]}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`{"data":{"createStock":{"errors":[{"code":"INVALID"}]}}}`)))
	assert.False(t, responseHasGraphQLErrors([]byte(`not json`)))
}

func setupGraphQLMetricsMiddleware(t *testing.T, next http.Handler) (http.Handler, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})

	metrics, err := observability.InitGraphQLMetrics()
	require.NoError(t, err)
	return GraphQLMetricsMiddleware(metrics)(next), reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func sumInt64Value(rm metricdata.ResourceMetrics, metricName, operationType string, hasErrors *bool) int64 {
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != metricName {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				if !matchAttr(point.Attributes, "operation_type", attribute.StringValue(operationType)) {
					continue
				}
				if hasErrors != nil && !matchAttr(point.Attributes, "has_errors", attribute.BoolValue(*hasErrors)) {
					continue
				}
				total += point.Value
			}
		}
	}
	return total
}

func matchAttr(attrs attribute.Set, key string, want attribute.Value) bool {
	v, ok := attrs.Value(attribute.Key(key))
	return ok && v.Emit() == want.Emit()
}

func boolPtr(v bool) *bool {
	return &v
}
