package middleware

import (
	"log/slog"
	"net/http"

	"warehouse-graphql/internal/dbexec"
	"warehouse-graphql/internal/gqlrequest"
	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/resolver"
)

// MutationTransactionMiddleware runs every mutation operation in one
// transaction. The transaction commits unless a resolver marked an error, and
// rolls back if the handler panics.
func MutationTransactionMiddleware(executor dbexec.TxBeginner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if executor == nil {
				next.ServeHTTP(w, r)
				return
			}
			analysis := gqlrequest.AnalysisFromContext(r.Context())
			if analysis == nil {
				analysis = gqlrequest.AnalyzeRequest(r)
			}
			if !analysis.IsMutation() {
				next.ServeHTTP(w, r)
				return
			}

			logger := logging.FromContext(r.Context())
			tx, err := executor.BeginTx(r.Context())
			if err != nil {
				logger.Error("failed to start mutation transaction", slog.String("error", err.Error()))
				writeGraphQLError(w, http.StatusInternalServerError, "failed to start transaction", "INTERNAL_SERVER_ERROR")
				return
			}

			mc := resolver.NewMutationContext(tx)
			ctx := resolver.WithMutationContext(r.Context(), mc)
			defer func() {
				if rec := recover(); rec != nil {
					mc.MarkError()
					_ = mc.Finalize()
					panic(rec)
				}
				if err := mc.Finalize(); err != nil {
					logger.Error("failed to finalize mutation transaction", slog.String("error", err.Error()))
				}
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
