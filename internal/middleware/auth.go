package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/observability"
)

// Authentication methods recorded on AuthContext.Method.
const (
	AuthMethodOIDC       = "oidc"
	AuthMethodJWT        = "jwt"
	AuthMethodAdminToken = "admin_token"
)

type authContextKey struct{}

// AuthContext carries the verified caller.
type AuthContext struct {
	Method   string
	Subject  string
	Issuer   string
	Audience []string
	Claims   map[string]interface{}
}

// WithAuthContext attaches a verified caller to ctx.
func WithAuthContext(ctx context.Context, auth AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthFromContext returns the verified caller, if any.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	auth, ok := ctx.Value(authContextKey{}).(AuthContext)
	return auth, ok
}

// TokenVerifier validates a bearer token and returns the caller it names.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (AuthContext, error)
}

// AuthConfig selects the credentials AuthMiddleware accepts.
type AuthConfig struct {
	// Verifier checks bearer tokens. Nil disables bearer authentication, in
	// which case requests without an admin token pass through anonymously.
	Verifier TokenVerifier
	// AdminToken, when set, is accepted in AdminHeader and grants every capability.
	AdminToken  string
	AdminHeader string
}

// AuthMiddleware authenticates the caller by admin token or bearer token.
// Rejected requests get a 401 before reaching the GraphQL handler.
func AuthMiddleware(cfg AuthConfig, metrics *observability.SecurityMetrics) (func(http.Handler) http.Handler, error) {
	var admin func(http.Handler) http.Handler
	if strings.TrimSpace(cfg.AdminToken) != "" {
		var err error
		admin, err = AdminTokenAuthMiddleware(AdminTokenAuthConfig{Token: cfg.AdminToken, HeaderName: cfg.AdminHeader})
		if err != nil {
			return nil, err
		}
	}
	adminHeader := strings.TrimSpace(cfg.AdminHeader)
	if adminHeader == "" {
		adminHeader = defaultAdminTokenHeader
	}

	return func(next http.Handler) http.Handler {
		bearer := bearerAuthHandler(cfg.Verifier, metrics, next)
		var adminHandler http.Handler
		if admin != nil {
			adminHandler = admin(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.ContextWithSecurityMetrics(r.Context(), metrics)
			r = r.WithContext(ctx)
			if adminHandler != nil && r.Header.Get(adminHeader) != "" {
				metrics.RecordAuthAttempt(ctx, r.URL.Path)
				adminHandler.ServeHTTP(w, r)
				return
			}
			if cfg.Verifier == nil {
				next.ServeHTTP(w, r)
				return
			}
			bearer.ServeHTTP(w, r)
		})
	}, nil
}

func bearerAuthHandler(verifier TokenVerifier, metrics *observability.SecurityMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		endpoint := r.URL.Path
		metrics.RecordAuthAttempt(ctx, endpoint)
		logger := logging.FromContext(ctx)

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			metrics.RecordAuthFailure(ctx, endpoint, "missing_token")
			logger.Warn("authentication failed: missing bearer token",
				slog.String("endpoint", endpoint),
				slog.String("remote_addr", r.RemoteAddr),
			)
			writeUnauthorized(w, "missing bearer token")
			return
		}

		auth, err := verifier.Verify(ctx, token)
		if err != nil {
			metrics.RecordAuthFailure(ctx, endpoint, "invalid_token")
			metrics.RecordTokenValidationError(ctx, tokenErrorType(err))
			logger.Warn("bearer token rejected",
				slog.String("error", err.Error()),
				slog.String("endpoint", endpoint),
				slog.String("remote_addr", r.RemoteAddr),
			)
			writeUnauthorized(w, "invalid token")
			return
		}

		metrics.RecordAuthSuccess(ctx, endpoint, auth.Method)
		logger.Debug("authentication successful",
			slog.String("subject", auth.Subject),
			slog.String("method", auth.Method),
		)
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("auth.subject", auth.Subject),
				attribute.String("auth.method", auth.Method),
				attribute.Bool("auth.authenticated", true),
			)
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, auth)))
	})
}

// tokenError classifies verification failures for metrics.
type tokenError struct {
	kind string
	err  error
}

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func newTokenError(kind string, err error) error {
	return &tokenError{kind: kind, err: err}
}

func tokenErrorType(err error) string {
	var te *tokenError
	if errors.As(err, &te) {
		return te.kind
	}
	return "verification_failed"
}

func bearerToken(value string) string {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeGraphQLError(w, http.StatusUnauthorized, message, "UNAUTHENTICATED")
}

func extractAudience(claims map[string]interface{}) []string {
	switch val := claims["aud"].(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func stringClaim(claims map[string]interface{}, name string) string {
	s, _ := claims[name].(string)
	return s
}
