package permission

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromClaim(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want []Capability
	}{
		{name: "array", raw: []interface{}{"MANAGE_PRODUCTS", "bogus", 7}, want: []Capability{ManageProducts}},
		{name: "string slice", raw: []string{"manage_shipping"}, want: []Capability{ManageShipping}},
		{name: "space separated", raw: "MANAGE_SHIPPING  MANAGE_PRODUCTS", want: []Capability{ManageProducts, ManageShipping}},
		{name: "missing", raw: nil, want: []Capability{}},
		{name: "wrong type", raw: 3.5, want: []Capability{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromClaim(tt.raw).List())
		})
	}
}

func TestParseNames(t *testing.T) {
	set, unknown := ParseNames([]string{"MANAGE_PRODUCTS", "", "MANAGE_ORDERS"})
	assert.True(t, set.Has(ManageProducts))
	assert.False(t, set.Has(ManageShipping))
	assert.Equal(t, []string{"MANAGE_ORDERS"}, unknown)
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	err := Check(ctx, ManageProducts)
	var authErr *AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, ManageProducts, authErr.Required)
	assert.Equal(t, "PERMISSION_DENIED", authErr.Extensions()["code"])

	ctx = WithGranted(ctx, NewSet(ManageProducts))
	assert.NoError(t, Check(ctx, ManageProducts))
	assert.Error(t, Check(ctx, ManageShipping))
}

func TestRequirePermission_DeniedNeverCallsResolver(t *testing.T) {
	called := false
	guarded := RequirePermission(ManageProducts, func(p graphql.ResolveParams) (interface{}, error) {
		called = true
		return "ok", nil
	})

	out, err := guarded(graphql.ResolveParams{Context: context.Background()})
	assert.Nil(t, out)
	assert.Error(t, err)
	assert.False(t, called)

	out, err = guarded(graphql.ResolveParams{Context: WithGranted(context.Background(), NewSet(All...))})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.True(t, called)
}
