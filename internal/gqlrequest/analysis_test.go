package gqlrequest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeEnvelope_Metadata(t *testing.T) {
	tests := []struct {
		name             string
		query            string
		operationName    string
		wantType         string
		wantFields       int
		wantDepth        int
		wantVars         int
		wantRoots        []string
		wantParseErr     bool
		wantSelectionErr bool
		wantName         string
	}{
		{
			name:       "anonymous query",
			query:      `{ warehouses(first: 2) { edges { node { id name } } } }`,
			wantType:   "query",
			wantFields: 5,
			wantDepth:  4,
			wantRoots:  []string{"warehouses"},
			wantName:   "<anonymous>",
		},
		{
			name: "named query with variables",
			query: `query Stock($id: ID!, $zones: Boolean) {
				stock(id: $id) { id quantity warehouse { name } }
			}`,
			operationName: "Stock",
			wantType:      "query",
			wantFields:    5,
			wantDepth:     3,
			wantVars:      2,
			wantRoots:     []string{"stock"},
			wantName:      "Stock",
		},
		{
			name: "mutation",
			query: `mutation Create($input: WarehouseCreateInput!) {
				createWarehouse(input: $input) { warehouse { id } errors { field code } }
			}`,
			operationName: "Create",
			wantType:      "mutation",
			wantFields:    6,
			wantDepth:     3,
			wantVars:      1,
			wantRoots:     []string{"createWarehouse"},
			wantName:      "Create",
		},
		{
			name: "multiple operations without a name",
			query: `
				query A { warehouses { totalCount } }
				query B { stocks { totalCount } }
			`,
			wantSelectionErr: true,
		},
		{
			name:         "malformed",
			query:        `query { warehouses { `,
			wantParseErr: true,
		},
		{
			name:  "empty",
			query: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeEnvelope(Envelope{Query: tt.query, OperationName: tt.operationName})
			assert.Equal(t, tt.wantParseErr, a.ParseError != nil, "parse error: %v", a.ParseError)
			assert.Equal(t, tt.wantSelectionErr, a.SelectionError != nil, "selection error: %v", a.SelectionError)
			if tt.wantParseErr || tt.wantSelectionErr || tt.query == "" {
				return
			}
			assert.Equal(t, tt.wantType, a.OperationType)
			assert.Equal(t, tt.wantFields, a.FieldCount)
			assert.Equal(t, tt.wantDepth, a.SelectionDepth)
			assert.Equal(t, tt.wantVars, a.VariableCount)
			assert.Equal(t, tt.wantRoots, a.RootFields)
			assert.Equal(t, tt.wantName, a.OperationName)
			assert.NotEmpty(t, a.OperationHash)
		})
	}
}

func TestAnalyzeEnvelope_FragmentCycleTerminates(t *testing.T) {
	query := `
		fragment A on Warehouse { id ...B }
		fragment B on Warehouse { name ...A }
		query { warehouse(id: "x") { ...A } }
	`
	a := AnalyzeEnvelope(Envelope{Query: query})
	require.NoError(t, a.ParseError)
	require.NoError(t, a.SelectionError)
	assert.Equal(t, 3, a.FieldCount)
}

func TestAnalyzeEnvelope_RootFieldsThroughFragments(t *testing.T) {
	query := `
		fragment Roots on Mutation { deleteWarehouse(id: "a") { warehouse { id } } }
		mutation { ...Roots assignWarehouseShippingZone(id: "a", shippingZoneIds: []) { errors { code } } }
	`
	a := AnalyzeEnvelope(Envelope{Query: query})
	require.NoError(t, a.SelectionError)
	assert.True(t, a.IsMutation())
	assert.Equal(t, []string{"deleteWarehouse", "assignWarehouseShippingZone"}, a.RootFields)
}

func TestAnalysis_CheckDepth(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: `{ stocks { edges { node { warehouse { shippingZones { name } } } } } }`})
	require.Equal(t, 6, a.SelectionDepth)

	assert.NoError(t, a.CheckDepth(0))
	assert.NoError(t, a.CheckDepth(6))

	err := a.CheckDepth(5)
	var depthErr *DepthError
	require.True(t, errors.As(err, &depthErr))
	assert.Equal(t, 6, depthErr.Depth)
	assert.Equal(t, 5, depthErr.Max)
}

func TestOperationHash_IgnoresWhitespaceAndComments(t *testing.T) {
	a := AnalyzeEnvelope(Envelope{Query: "query W {\n  warehouses { totalCount }\n}", OperationName: "W"})
	b := AnalyzeEnvelope(Envelope{Query: "# list\nquery W { warehouses { totalCount } }", OperationName: "W"})
	require.NotEmpty(t, a.OperationHash)
	assert.Equal(t, a.OperationHash, b.OperationHash)
}

func TestOperationHash_DependsOnSelectedOperation(t *testing.T) {
	query := `
		query A { warehouses { totalCount } }
		query B { stocks { totalCount } }
	`
	a := AnalyzeEnvelope(Envelope{Query: query, OperationName: "A"})
	b := AnalyzeEnvelope(Envelope{Query: query, OperationName: "B"})
	require.NotEmpty(t, a.OperationHash)
	assert.NotEqual(t, a.OperationHash, b.OperationHash)
}

func TestFramedSHA256_DisambiguatesBoundaries(t *testing.T) {
	assert.NotEqual(t, framedSHA256("ab", "c"), framedSHA256("a", "bc"))
}
