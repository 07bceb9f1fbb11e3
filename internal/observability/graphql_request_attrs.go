package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"warehouse-graphql/internal/gqlrequest"
)

// GraphQLSpanAttributes describes an analyzed request as span attributes.
func GraphQLSpanAttributes(analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 12)
	if analysis != nil {
		if analysis.RequestedOperationName != "" {
			attrs = append(attrs, attribute.String("graphql.operation.requested_name", analysis.RequestedOperationName))
		}
		if analysis.OperationName != "" {
			attrs = append(attrs, attribute.String("graphql.operation.name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			attrs = append(attrs, attribute.String("graphql.operation.type", analysis.OperationType))
		}
		if analysis.OperationHash != "" {
			attrs = append(attrs, attribute.String("graphql.operation.hash", analysis.OperationHash))
		}
		if len(analysis.RootFields) > 0 {
			attrs = append(attrs, attribute.StringSlice("graphql.operation.root_fields", analysis.RootFields))
		}
		if analysis.Envelope.DocumentSizeBytes > 0 {
			attrs = append(attrs, attribute.Int("graphql.document.size_bytes", analysis.Envelope.DocumentSizeBytes))
		}
		if analysis.Operation != nil {
			attrs = append(attrs,
				attribute.Int("graphql.query.field_count", analysis.FieldCount),
				attribute.Int("graphql.query.depth", analysis.SelectionDepth),
				attribute.Int("graphql.query.variable_count", analysis.VariableCount),
			)
		}
	}
	if meta.AuthMethod != "" {
		attrs = append(attrs, attribute.String("auth.method", meta.AuthMethod))
	}
	if meta.Subject != "" {
		attrs = append(attrs, attribute.String("auth.subject", meta.Subject))
	}
	if len(meta.Permissions) > 0 {
		attrs = append(attrs, attribute.StringSlice("auth.permissions", meta.Permissions))
	}
	return attrs
}

// GraphQLLogFields describes an analyzed request as slog fields.
func GraphQLLogFields(ctx context.Context, analysis *gqlrequest.Analysis, meta gqlrequest.ExecMeta) []any {
	fields := make([]any, 0, 8)
	if analysis != nil {
		if analysis.OperationName != "" {
			fields = append(fields, slog.String("operation_name", analysis.OperationName))
		}
		if analysis.OperationType != "" {
			fields = append(fields, slog.String("operation_type", analysis.OperationType))
		}
		if analysis.OperationHash != "" {
			fields = append(fields, slog.String("operation_hash", analysis.OperationHash))
		}
		if len(analysis.RootFields) > 0 {
			fields = append(fields, slog.Any("root_fields", analysis.RootFields))
		}
	}
	if meta.Subject != "" {
		fields = append(fields, slog.String("subject", meta.Subject))
	}
	if meta.AuthMethod != "" {
		fields = append(fields, slog.String("auth_method", meta.AuthMethod))
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields, slog.String("trace_id", spanCtx.TraceID().String()))
	}
	return fields
}
