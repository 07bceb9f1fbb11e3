package middleware

import (
	"net/http"

	"warehouse-graphql/internal/loaders"
)

// LoadersMiddleware gives each request its own batch loaders, so cached
// lookups never leak between callers.
func LoadersMiddleware(newLoaders func() *loaders.Loaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), newLoaders())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
