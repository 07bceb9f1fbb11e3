// Package permission models the capabilities a caller holds and the
// interceptor that guards GraphQL operations with them.
package permission

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/graphql-go/graphql"

	"warehouse-graphql/internal/observability"
)

// Capability is a named permission granted to a caller.
type Capability string

const (
	ManageProducts Capability = "MANAGE_PRODUCTS"
	ManageShipping Capability = "MANAGE_SHIPPING"
)

// All lists every known capability.
var All = []Capability{ManageProducts, ManageShipping}

// Parse maps a claim value to a capability, case-insensitively.
func Parse(name string) (Capability, bool) {
	upper := Capability(strings.ToUpper(strings.TrimSpace(name)))
	for _, c := range All {
		if c == upper {
			return c, true
		}
	}
	return "", false
}

// Set is a set of granted capabilities.
type Set map[Capability]struct{}

// NewSet builds a set from capabilities.
func NewSet(caps ...Capability) Set {
	s := make(Set, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// ParseNames builds a set from capability names. Unknown names are returned
// separately.
func ParseNames(names []string) (Set, []string) {
	s := make(Set, len(names))
	var unknown []string
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		c, ok := Parse(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		s[c] = struct{}{}
	}
	return s, unknown
}

// FromClaim reads capabilities from a token claim holding either a JSON
// array of strings or a space-separated string.
func FromClaim(raw interface{}) Set {
	var names []string
	switch v := raw.(type) {
	case string:
		names = strings.Fields(v)
	case []string:
		names = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}
	s, _ := ParseNames(names)
	return s
}

// Has reports whether c is in the set.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the capabilities in name order.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type grantedKey struct{}

// WithGranted attaches the caller's capabilities to ctx.
func WithGranted(ctx context.Context, s Set) context.Context {
	return context.WithValue(ctx, grantedKey{}, s)
}

// Granted returns the caller's capabilities. A context without a grant has none.
func Granted(ctx context.Context) Set {
	s, _ := ctx.Value(grantedKey{}).(Set)
	return s
}

// AuthorizationError reports a missing capability.
type AuthorizationError struct {
	Required Capability
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("You need one of the following permissions: %s", e.Required)
}

// Extensions exposes a GraphQL error code and the missing permission.
func (e *AuthorizationError) Extensions() map[string]interface{} {
	return map[string]interface{}{
		"code":        "PERMISSION_DENIED",
		"permissions": []string{string(e.Required)},
	}
}

// Check returns an AuthorizationError unless ctx grants c.
func Check(ctx context.Context, c Capability) error {
	if Granted(ctx).Has(c) {
		return nil
	}
	observability.SecurityMetricsFromContext(ctx).RecordPermissionDenied(ctx, string(c))
	return &AuthorizationError{Required: c}
}

// RequirePermission guards a resolver. The check runs before fn, so a denied
// caller never reaches argument parsing or query construction.
func RequirePermission(c Capability, fn graphql.FieldResolveFn) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		if err := Check(p.Context, c); err != nil {
			return nil, err
		}
		return fn(p)
	}
}
