package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics counts authentication outcomes and permission denials.
// A nil *SecurityMetrics records nothing.
type SecurityMetrics struct {
	authAttempts          metric.Int64Counter
	authFailures          metric.Int64Counter
	authSuccesses         metric.Int64Counter
	permissionDenials     metric.Int64Counter
	tokenValidationErrors metric.Int64Counter
}

// InitSecurityMetrics registers the security instruments.
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter(meterName + "/security")
	m := &SecurityMetrics{}
	var err error

	if m.authAttempts, err = meter.Int64Counter("security.auth.attempts.total",
		metric.WithDescription("Total number of authentication attempts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth attempts counter: %w", err)
	}
	if m.authFailures, err = meter.Int64Counter("security.auth.failures.total",
		metric.WithDescription("Total number of authentication failures"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth failures counter: %w", err)
	}
	if m.authSuccesses, err = meter.Int64Counter("security.auth.successes.total",
		metric.WithDescription("Total number of successful authentications"),
	); err != nil {
		return nil, fmt.Errorf("failed to create auth successes counter: %w", err)
	}
	if m.permissionDenials, err = meter.Int64Counter("security.permission.denied.total",
		metric.WithDescription("Operations rejected for a missing capability"),
	); err != nil {
		return nil, fmt.Errorf("failed to create permission denied counter: %w", err)
	}
	if m.tokenValidationErrors, err = meter.Int64Counter("security.token.validation_errors.total",
		metric.WithDescription("Total number of token validation errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create token validation errors counter: %w", err)
	}
	return m, nil
}

// RecordAuthAttempt counts a request that presented, or should have presented, credentials.
func (m *SecurityMetrics) RecordAuthAttempt(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
}

// RecordAuthFailure counts a rejected request.
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.authFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordAuthSuccess counts an accepted credential by method (oidc, jwt, admin_token).
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, method string) {
	if m == nil {
		return
	}
	m.authSuccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", method),
	))
}

// RecordTokenValidationError counts a bearer token that failed verification.
func (m *SecurityMetrics) RecordTokenValidationError(ctx context.Context, errorType string) {
	if m == nil {
		return
	}
	m.tokenValidationErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType)))
}

// RecordPermissionDenied counts an operation refused for a missing capability.
func (m *SecurityMetrics) RecordPermissionDenied(ctx context.Context, capability string) {
	if m == nil {
		return
	}
	m.permissionDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("capability", capability)))
}

type securityMetricsContextKey struct{}

// ContextWithSecurityMetrics stores m in ctx.
func ContextWithSecurityMetrics(ctx context.Context, m *SecurityMetrics) context.Context {
	return context.WithValue(ctx, securityMetricsContextKey{}, m)
}

// SecurityMetricsFromContext returns the request's security metrics, or nil.
func SecurityMetricsFromContext(ctx context.Context) *SecurityMetrics {
	m, _ := ctx.Value(securityMetricsContextKey{}).(*SecurityMetrics)
	return m
}
