package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "warehouse-graphql/resolver"

// resolverSpan wraps the span of one root field resolution.
type resolverSpan struct {
	trace.Span
}

// startResolverSpan opens a span named after the kind of work, tagged with the
// table it reads or writes and the GraphQL field being resolved.
func startResolverSpan(ctx context.Context, name, table, field string) (context.Context, resolverSpan) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
		attribute.String("db.table", table),
		attribute.String("graphql.field.name", field),
	))
	return ctx, resolverSpan{Span: span}
}

// mutationResult records the payload class ("ok", "field_error" or "error")
// and the first WarehouseError code.
func (s resolverSpan) mutationResult(class, code string) {
	if code == "" {
		code = "none"
	}
	s.SetAttributes(
		attribute.String("graphql.mutation.result.class", class),
		attribute.String("graphql.mutation.result.code", code),
	)
}

// end records the outcome and closes the span.
func (s resolverSpan) end(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	}
	s.SetAttributes(attribute.String("graphql.resolver.outcome", outcome))
	s.End()
}
