package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration and returns fatal errors and non-fatal warnings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Server.validate(result)
	c.Pagination.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(d.Host) == "" {
		result.addError("database.host", "host cannot be empty", "")
	}
	if d.Port < 1 || d.Port > 65535 {
		result.addError("database.port", fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port), "")
	}
	if strings.TrimSpace(d.User) == "" {
		result.addError("database.user", "user cannot be empty", "")
	}
	if strings.TrimSpace(d.Database) == "" {
		result.addError("database.database", "database name cannot be empty", "")
	}
	if d.Pool.MaxOpen < 0 || d.Pool.MaxIdle < 0 {
		result.addError("database.pool", "pool sizes cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.addWarning("database.pool.max_idle",
			fmt.Sprintf("max_idle (%d) exceeds max_open (%d)", d.Pool.MaxIdle, d.Pool.MaxOpen),
			"the driver caps idle connections at max_open")
	}
	switch d.TLS.Mode {
	case "", "off", "skip-verify", "verify-full":
	default:
		result.addError("database.tls.mode", fmt.Sprintf("invalid TLS mode %q", d.TLS.Mode),
			"valid values are: off, skip-verify, verify-full")
	}
	if d.TLS.Mode == "skip-verify" {
		result.addWarning("database.tls.mode", "server certificate verification is disabled",
			"use verify-full outside development")
	}
	if d.TLS.CAFile != "" && d.TLS.Mode != "verify-full" {
		result.addWarning("database.tls.ca_file", "ca_file is ignored unless mode is verify-full", "")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port), "")
	}
	if s.GraphQLMaxDepth < 0 {
		result.addError("server.graphql_max_depth", "graphql_max_depth cannot be negative", "")
	}

	if s.RateLimit.Enabled {
		if s.RateLimit.RPS <= 0 {
			result.addError("server.rate_limit.rps", "rps must be greater than 0 when rate limiting is enabled", "")
		}
		if s.RateLimit.Burst <= 0 {
			result.addError("server.rate_limit.burst", "burst must be greater than 0 when rate limiting is enabled", "")
		}
	} else if s.RateLimit.RPS > 0 || s.RateLimit.Burst > 0 {
		result.addWarning("server.rate_limit.enabled", "rate limit values are set but rate limiting is disabled",
			"enable server.rate_limit.enabled to apply rate limits")
	}

	if s.CORS.Enabled {
		if len(s.CORS.AllowedOrigins) == 0 {
			result.addError("server.cors.allowed_origins", "CORS enabled but no allowed origins configured",
				"set allowed_origins or disable CORS")
		}
		for _, origin := range s.CORS.AllowedOrigins {
			if strings.TrimSpace(origin) != "*" {
				continue
			}
			if s.CORS.AllowCredentials {
				result.addError("server.cors.allowed_origins", "wildcard origin (*) cannot be used with credentials",
					"use specific origins with credentials, or wildcard without credentials")
			} else {
				result.addWarning("server.cors.allowed_origins", "CORS wildcard origin enabled",
					"use specific origins in production")
			}
			break
		}
	}

	s.Auth.validate(result)

	if s.ShutdownTimeout <= 0 {
		result.addError("server.shutdown_timeout", "shutdown_timeout must be positive", "")
	}
}

func (a *AuthConfig) validate(result *ValidationResult) {
	if a.OIDCEnabled {
		if a.OIDCIssuerURL == "" {
			result.addError("server.auth.oidc_issuer_url", "issuer URL is required when OIDC is enabled", "")
		} else if u, err := url.Parse(a.OIDCIssuerURL); err != nil || u.Scheme != "https" {
			result.addError("server.auth.oidc_issuer_url", "issuer URL must be an https URL", "")
		}
		if a.OIDCAudience == "" {
			result.addError("server.auth.oidc_audience", "audience is required when OIDC is enabled", "")
		}
		if a.OIDCSkipTLSVerify {
			result.addWarning("server.auth.oidc_skip_tls_verify", "OIDC TLS verification is disabled", "dev only")
		}
		if a.JWTSecret != "" {
			result.addError("server.auth.jwt_secret", "jwt_secret cannot be combined with OIDC",
				"choose either OIDC or a shared secret")
		}
	}
	if a.JWTSecret != "" && len(a.JWTSecret) < 32 {
		result.addError("server.auth.jwt_secret", "jwt_secret must be at least 32 bytes", "")
	}
	if strings.TrimSpace(a.PermissionsClaim) == "" {
		result.addError("server.auth.permissions_claim", "permissions_claim cannot be empty", "")
	}
	if a.Enabled() && len(a.AnonymousPermissions) > 0 {
		result.addWarning("server.auth.anonymous_permissions", "anonymous permissions are ignored while authentication is enabled", "")
	}
	if !a.Enabled() && a.AdminToken == "" {
		result.addWarning("server.auth", "authentication is disabled",
			"requests receive only anonymous_permissions")
	}
}

func (p *PaginationConfig) validate(result *ValidationResult) {
	if p.DefaultLimit <= 0 {
		result.addError("pagination.default_limit", "default_limit must be positive", "")
	}
	if p.MaxLimit <= 0 {
		result.addError("pagination.max_limit", "max_limit must be positive", "")
	}
	if p.DefaultLimit > p.MaxLimit && p.MaxLimit > 0 {
		result.addError("pagination.default_limit",
			fmt.Sprintf("default_limit (%d) exceeds max_limit (%d)", p.DefaultLimit, p.MaxLimit), "")
	}
	if p.BatchWait < 0 {
		result.addError("pagination.batch_wait", "batch_wait cannot be negative", "")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level),
			"valid values are: debug, info, warn, error")
	}
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format),
			"valid values are: json, text")
	}
	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio", "trace_sample_ratio must be between 0.0 and 1.0", "")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			"valid values are: grpc, http/protobuf")
	}
	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
			"use host:port or a full URL")
	}
	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			"valid values are: none, gzip")
	}
	if o.RetryMaxAttempts < 0 {
		result.addError(prefix+".retry_max_attempts", "retry_max_attempts cannot be negative", "")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
