package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/observability"
)

const defaultAdminTokenHeader = "X-Admin-Token"

// AdminTokenAuthConfig configures shared-token authentication.
type AdminTokenAuthConfig struct {
	Token      string
	HeaderName string
}

// AdminTokenAuthMiddleware accepts requests carrying the shared admin token.
// The admin caller is later granted every capability.
func AdminTokenAuthMiddleware(cfg AdminTokenAuthConfig) (func(http.Handler) http.Handler, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("admin auth token is required")
	}
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = defaultAdminTokenHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			metrics := observability.SecurityMetricsFromContext(ctx)
			if !constantTimeTokenMatch(strings.TrimSpace(r.Header.Get(headerName)), token) {
				metrics.RecordAuthFailure(ctx, r.URL.Path, "invalid_admin_token")
				logging.FromContext(ctx).Warn("admin token rejected",
					slog.String("endpoint", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				writeUnauthorized(w, "invalid admin token")
				return
			}
			metrics.RecordAuthSuccess(ctx, r.URL.Path, AuthMethodAdminToken)
			ctx = WithAuthContext(ctx, AuthContext{
				Method:  AuthMethodAdminToken,
				Subject: AuthMethodAdminToken,
				Issuer:  AuthMethodAdminToken,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

// constantTimeTokenMatch compares digests so timing does not leak the token length.
func constantTimeTokenMatch(provided, expected string) bool {
	p := sha256.Sum256([]byte(provided))
	e := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(p[:], e[:]) == 1
}
