package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"warehouse-graphql/internal/gqlrequest"
	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/observability"
	"warehouse-graphql/internal/permission"
)

// GraphQLRequestAnalysisMiddleware parses the GraphQL payload once and stores
// the analysis and request summary on the context for the middleware after
// it. Oversized bodies and operations nested deeper than maxDepth are
// rejected before execution.
func GraphQLRequestAnalysisMiddleware(maxDepth int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			analysis := gqlrequest.AnalyzeRequest(r)
			if errors.Is(analysis.DecodeError, gqlrequest.ErrBodyTooLarge) {
				writeGraphQLError(w, http.StatusRequestEntityTooLarge, analysis.DecodeError.Error(), "PAYLOAD_TOO_LARGE")
				return
			}
			if err := analysis.CheckDepth(maxDepth); err != nil {
				logging.FromContext(r.Context()).Warn("graphql operation rejected",
					slog.String("error", err.Error()),
					slog.String("operation_name", analysis.OperationName),
				)
				writeGraphQLError(w, http.StatusBadRequest, err.Error(), "QUERY_TOO_DEEP")
				return
			}

			ctx := gqlrequest.WithAnalysis(r.Context(), analysis)
			meta := gqlrequest.ExecMeta{
				OperationName: analysis.OperationName,
				OperationType: analysis.OperationType,
				OperationHash: analysis.OperationHash,
			}
			if auth, ok := AuthFromContext(ctx); ok {
				meta.Subject = auth.Subject
				meta.AuthMethod = auth.Method
			}
			for _, c := range permission.Granted(ctx).List() {
				meta.Permissions = append(meta.Permissions, string(c))
			}
			ctx = gqlrequest.WithExecMeta(ctx, meta)

			if fields := observability.GraphQLLogFields(ctx, analysis, meta); len(fields) > 0 {
				ctx = logging.WithLogger(ctx, logging.FromContext(ctx).WithFields(fields...))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
