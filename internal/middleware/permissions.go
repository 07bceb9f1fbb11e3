package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/permission"
)

const defaultPermissionsClaim = "permissions"

// PermissionsConfig controls how capabilities are derived for a caller.
type PermissionsConfig struct {
	// Claim names the token claim listing capabilities.
	Claim string
	// RequireAuth rejects requests that reached this middleware without a
	// verified caller.
	RequireAuth bool
	// Anonymous is granted to unauthenticated callers when auth is not required.
	Anonymous permission.Set
}

// PermissionsMiddleware grants capabilities to the request. The admin token
// grants every capability, bearer tokens grant what their claim lists and
// anonymous callers receive cfg.Anonymous.
func PermissionsMiddleware(cfg PermissionsConfig) func(http.Handler) http.Handler {
	claim := cfg.Claim
	if claim == "" {
		claim = defaultPermissionsClaim
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, authenticated := AuthFromContext(r.Context())
			var granted permission.Set
			switch {
			case authenticated && auth.Method == AuthMethodAdminToken:
				granted = permission.NewSet(permission.All...)
			case authenticated:
				granted = permission.FromClaim(auth.Claims[claim])
			case cfg.RequireAuth:
				writeUnauthorized(w, "missing authentication")
				return
			default:
				granted = cfg.Anonymous
			}

			logging.FromContext(r.Context()).Debug("permissions granted",
				slog.Any("permissions", granted.List()),
				slog.Bool("authenticated", authenticated),
			)
			next.ServeHTTP(w, r.WithContext(permission.WithGranted(r.Context(), granted)))
		})
	}
}

// writeGraphQLError writes a request-level GraphQL error response.
func writeGraphQLError(w http.ResponseWriter, status int, message string, code string) {
	payload := map[string]any{
		"errors": []map[string]any{
			{
				"message":    message,
				"extensions": map[string]any{"code": code},
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
