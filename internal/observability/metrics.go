package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "warehouse-graphql"

// GraphQLMetrics records request, mutation, pagination and batching metrics.
// A nil *GraphQLMetrics records nothing.
type GraphQLMetrics struct {
	requestDuration  metric.Float64Histogram
	requestCounter   metric.Int64Counter
	errorCounter     metric.Int64Counter
	activeRequests   metric.Int64UpDownCounter
	queryDepth       metric.Int64Histogram
	mutationCounter  metric.Int64Counter
	connectionSize   metric.Int64Histogram
	loaderBatchKeys  metric.Int64Histogram
	loaderBatchRows  metric.Int64Histogram
	loaderBatchError metric.Int64Counter
}

// InitGraphQLMetrics registers the GraphQL instruments on the global meter provider.
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter(meterName)
	m := &GraphQLMetrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram("graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}
	if m.requestCounter, err = meter.Int64Counter("graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	if m.errorCounter, err = meter.Int64Counter("graphql.errors.total",
		metric.WithDescription("Total number of GraphQL requests that returned errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}
	if m.activeRequests, err = meter.Int64UpDownCounter("graphql.requests.active",
		metric.WithDescription("Number of in-flight GraphQL requests"),
	); err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}
	if m.queryDepth, err = meter.Int64Histogram("graphql.query.depth",
		metric.WithDescription("Selection depth of GraphQL operations"),
	); err != nil {
		return nil, fmt.Errorf("failed to create query depth histogram: %w", err)
	}
	if m.mutationCounter, err = meter.Int64Counter("warehouse.mutations.total",
		metric.WithDescription("Warehouse mutations by name and outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create mutation counter: %w", err)
	}
	if m.connectionSize, err = meter.Int64Histogram("warehouse.connection.page_size",
		metric.WithDescription("Number of edges returned per connection page"),
	); err != nil {
		return nil, fmt.Errorf("failed to create connection page size histogram: %w", err)
	}
	if m.loaderBatchKeys, err = meter.Int64Histogram("warehouse.loader.batch_keys",
		metric.WithDescription("Number of keys dispatched in one loader batch"),
	); err != nil {
		return nil, fmt.Errorf("failed to create loader batch keys histogram: %w", err)
	}
	if m.loaderBatchRows, err = meter.Int64Histogram("warehouse.loader.batch_rows",
		metric.WithDescription("Number of rows returned by one loader batch"),
	); err != nil {
		return nil, fmt.Errorf("failed to create loader batch rows histogram: %w", err)
	}
	if m.loaderBatchError, err = meter.Int64Counter("warehouse.loader.batch_errors",
		metric.WithDescription("Number of loader batches that failed"),
	); err != nil {
		return nil, fmt.Errorf("failed to create loader batch error counter: %w", err)
	}
	return m, nil
}

// InitMetrics registers the GraphQL instruments and logs once they are ready.
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, error) {
	m, err := InitGraphQLMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	logger.Info("custom GraphQL metrics initialized")
	return m, nil
}

// RecordRequest records one GraphQL request.
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.requestCounter.Add(ctx, 1, attrs)
	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation_type", operationType)))
	}
}

// RecordQueryDepth records the selection depth of an operation.
func (m *GraphQLMetrics) RecordQueryDepth(ctx context.Context, depth int64, operationType string) {
	if m == nil {
		return
	}
	m.queryDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("operation_type", operationType)))
}

// RecordMutation counts a mutation by name and result class (ok, field_error, error).
func (m *GraphQLMetrics) RecordMutation(ctx context.Context, name, class string) {
	if m == nil {
		return
	}
	m.mutationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mutation", name),
		attribute.String("result", class),
	))
}

// RecordConnectionPage records the number of edges a connection returned.
func (m *GraphQLMetrics) RecordConnectionPage(ctx context.Context, typeName string, edges int) {
	if m == nil {
		return
	}
	m.connectionSize.Record(ctx, int64(edges), metric.WithAttributes(attribute.String("type", typeName)))
}

// RecordLoaderBatch records one dispatched loader batch.
func (m *GraphQLMetrics) RecordLoaderBatch(ctx context.Context, loader string, keys, rows int, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("loader", loader))
	m.loaderBatchKeys.Record(ctx, int64(keys), attrs)
	if err != nil {
		m.loaderBatchError.Add(ctx, 1, attrs)
		return
	}
	m.loaderBatchRows.Record(ctx, int64(rows), attrs)
}

// IncrementActiveRequests marks a request as started.
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests marks a request as finished.
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

type graphQLMetricsContextKey struct{}

// ContextWithGraphQLMetrics stores metrics in ctx for resolvers and loaders.
func ContextWithGraphQLMetrics(ctx context.Context, metrics *GraphQLMetrics) context.Context {
	return context.WithValue(ctx, graphQLMetricsContextKey{}, metrics)
}

// GraphQLMetricsFromContext returns the request's metrics, or nil.
func GraphQLMetricsFromContext(ctx context.Context) *GraphQLMetrics {
	metrics, _ := ctx.Value(graphQLMetricsContextKey{}).(*GraphQLMetrics)
	return metrics
}
