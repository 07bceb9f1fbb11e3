package resolver

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-graphql/internal/dbexec"
	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/loaders"
	"warehouse-graphql/internal/nodeid"
	"warehouse-graphql/internal/permission"
	"warehouse-graphql/internal/planner"
)

const warehouseSelect = "SELECT `warehouse`.`id`, `warehouse`.`name`, `warehouse`.`company_name`, `warehouse`.`email`, " +
	"`warehouse`.`street_address_1`, `warehouse`.`street_address_2`, `warehouse`.`city`, `warehouse`.`city_area`, " +
	"`warehouse`.`postal_code`, `warehouse`.`country`, `warehouse`.`country_area`, `warehouse`.`phone`, " +
	"`warehouse`.`created_at` FROM `warehouse`"

const stockSelect = "SELECT `stock`.`id`, `stock`.`warehouse_id`, `stock`.`product_variant_id`, `stock`.`quantity`, " +
	"`stock`.`quantity_allocated` FROM `stock`"

var (
	created          = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	warehouseColumns = []string{"id", "name", "company_name", "email", "street_address_1", "street_address_2",
		"city", "city_area", "postal_code", "country", "country_area", "phone", "created_at"}
)

type testEnv struct {
	r      *Resolver
	schema graphql.Schema
	db     *sql.DB
	mock   sqlmock.Sqlmock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r := NewResolver(dbexec.NewStandardExecutor(db), planner.Limits{Default: 25, Max: 100}, time.Millisecond)
	r.now = func() time.Time { return created }
	r.newID = func() string { return "w-new" }
	schema, err := r.BuildGraphQLSchema()
	require.NoError(t, err)
	return &testEnv{r: r, schema: schema, db: db, mock: mock}
}

func granted() context.Context {
	return permission.WithGranted(context.Background(), permission.NewSet(permission.All...))
}

func (e *testEnv) do(ctx context.Context, query string, vars map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         e.schema,
		RequestString:  query,
		VariableValues: vars,
		Context:        ctx,
	})
}

// mutationContext opens a transaction the way the mutation middleware does.
func (e *testEnv) mutationContext(t *testing.T) (context.Context, *MutationContext) {
	t.Helper()
	e.mock.ExpectBegin()
	tx, err := dbexec.NewStandardExecutor(e.db).BeginTx(context.Background())
	require.NoError(t, err)
	mc := NewMutationContext(tx)
	return WithMutationContext(granted(), mc), mc
}

func decodeData(t *testing.T, res *graphql.Result, out interface{}) {
	t.Helper()
	require.Empty(t, res.Errors)
	raw, err := json.Marshal(res.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func warehouseRows() *sqlmock.Rows {
	return sqlmock.NewRows(warehouseColumns)
}

func addWarehouse(rows *sqlmock.Rows, id, name string) *sqlmock.Rows {
	return rows.AddRow(id, name, "Acme", "ops@acme.io", "1 Main St", "", "Berlin", "", "10115", "DE", "", "+49", created)
}

func warehouseID(pk string) string { return nodeid.Encode(inventory.TypeWarehouse, pk) }

func TestBuildGraphQLSchema_Surface(t *testing.T) {
	env := newTestEnv(t)

	queryFields := env.schema.QueryType().Fields()
	for _, name := range []string{"node", "warehouse", "warehouses", "stock", "stocks"} {
		assert.Contains(t, queryFields, name)
	}
	mutationFields := env.schema.MutationType().Fields()
	for _, name := range []string{"createWarehouse", "updateWarehouse", "deleteWarehouse",
		"assignWarehouseShippingZone", "unassignWarehouseShippingZone"} {
		assert.Contains(t, mutationFields, name)
	}

	enumNames := func(typeName string) []string {
		enum, ok := env.schema.Type(typeName).(*graphql.Enum)
		require.True(t, ok, "%s is not an enum", typeName)
		var names []string
		for _, v := range enum.Values() {
			names = append(names, v.Name)
		}
		return names
	}
	assert.ElementsMatch(t, []string{"NAME", "COMPANY_NAME", "EMAIL", "CREATED_AT"}, enumNames("WarehouseSortField"))
	assert.ElementsMatch(t, []string{"QUANTITY", "QUANTITY_ALLOCATED"}, enumNames("StockSortField"))
	assert.ElementsMatch(t, []string{"ASC", "DESC"}, enumNames("OrderDirection"))
	assert.ElementsMatch(t, []string{"ALREADY_EXISTS", "GRAPHQL_ERROR", "INVALID", "NOT_FOUND", "REQUIRED", "UNIQUE"},
		enumNames("WarehouseErrorCode"))

	assert.NotNil(t, env.schema.Type("WarehouseCountableConnection"))
	assert.NotNil(t, env.schema.Type("StockCountableEdge"))
}

func TestWarehouses_PermissionDeniedRunsNoSQL(t *testing.T) {
	env := newTestEnv(t)

	res := env.do(context.Background(), `{ warehouses(sortBy: {field: NAME, direction: ASC}) { totalCount } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "You need one of the following permissions: MANAGE_PRODUCTS", res.Errors[0].Message)
	assert.Equal(t, "PERMISSION_DENIED", res.Errors[0].Extensions["code"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarehouses_DefaultOrderFirstPage(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(warehouseSelect + " ORDER BY `warehouse`.`name` ASC, `warehouse`.`id` ASC LIMIT 2").
		WillReturnRows(addWarehouse(addWarehouse(warehouseRows(), "w-1", "Alpha"), "w-2", "Beta"))
	env.mock.ExpectQuery("SELECT COUNT(*) FROM `warehouse`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	res := env.do(granted(), `{
		warehouses(first: 1) {
			totalCount
			edges { cursor node { id name address { city country } } }
			pageInfo { hasNextPage hasPreviousPage startCursor endCursor }
		}
	}`, nil)

	var out struct {
		Warehouses struct {
			TotalCount int `json:"totalCount"`
			Edges      []struct {
				Cursor string `json:"cursor"`
				Node   struct {
					ID      string `json:"id"`
					Name    string `json:"name"`
					Address struct {
						City    string `json:"city"`
						Country string `json:"country"`
					} `json:"address"`
				} `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage     bool    `json:"hasNextPage"`
				HasPreviousPage bool    `json:"hasPreviousPage"`
				StartCursor     *string `json:"startCursor"`
				EndCursor       *string `json:"endCursor"`
			} `json:"pageInfo"`
		} `json:"warehouses"`
	}
	decodeData(t, res, &out)

	conn := out.Warehouses
	assert.Equal(t, 5, conn.TotalCount)
	require.Len(t, conn.Edges, 1)
	assert.Equal(t, "Alpha", conn.Edges[0].Node.Name)
	assert.Equal(t, warehouseID("w-1"), conn.Edges[0].Node.ID)
	assert.Equal(t, "Berlin", conn.Edges[0].Node.Address.City)
	assert.True(t, conn.PageInfo.HasNextPage)
	assert.False(t, conn.PageInfo.HasPreviousPage)
	require.NotNil(t, conn.PageInfo.EndCursor)
	assert.Equal(t, conn.Edges[0].Cursor, *conn.PageInfo.EndCursor)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarehouses_CursorBoundToSortKey(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(warehouseSelect + " ORDER BY `warehouse`.`created_at` DESC, `warehouse`.`id` ASC LIMIT 2").
		WillReturnRows(addWarehouse(addWarehouse(warehouseRows(), "w-2", "Beta"), "w-1", "Alpha"))

	const pageQuery = `query Page($after: String) {
		warehouses(first: 1, after: $after, sortBy: {field: CREATED_AT, direction: DESC}) {
			edges { node { name } }
			pageInfo { endCursor hasNextPage hasPreviousPage }
		}
	}`
	type page struct {
		Warehouses struct {
			Edges []struct {
				Node struct {
					Name string `json:"name"`
				} `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				EndCursor       string `json:"endCursor"`
				HasNextPage     bool   `json:"hasNextPage"`
				HasPreviousPage bool   `json:"hasPreviousPage"`
			} `json:"pageInfo"`
		} `json:"warehouses"`
	}

	var first page
	decodeData(t, env.do(granted(), pageQuery, nil), &first)
	require.Len(t, first.Warehouses.Edges, 1)
	assert.Equal(t, "Beta", first.Warehouses.Edges[0].Node.Name)
	after := first.Warehouses.PageInfo.EndCursor

	env.mock.ExpectQuery(warehouseSelect+
		" WHERE (`warehouse`.`created_at` < ? OR (`warehouse`.`created_at` = ? AND `warehouse`.`id` > ?))"+
		" ORDER BY `warehouse`.`created_at` DESC, `warehouse`.`id` ASC LIMIT 2").
		WithArgs("2024-05-01 12:00:00", "2024-05-01 12:00:00", "w-2").
		WillReturnRows(addWarehouse(warehouseRows(), "w-1", "Alpha"))

	var second page
	decodeData(t, env.do(granted(), pageQuery, map[string]interface{}{"after": after}), &second)
	require.Len(t, second.Warehouses.Edges, 1)
	assert.Equal(t, "Alpha", second.Warehouses.Edges[0].Node.Name)
	assert.False(t, second.Warehouses.PageInfo.HasNextPage)
	assert.True(t, second.Warehouses.PageInfo.HasPreviousPage)

	// The same cursor under a different sort key is rejected before any SQL.
	res := env.do(granted(), `query($after: String) {
		warehouses(first: 1, after: $after, sortBy: {field: NAME, direction: DESC}) { totalCount }
	}`, map[string]interface{}{"after": after})
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "invalid cursor")
	assert.Equal(t, "BAD_USER_INPUT", res.Errors[0].Extensions["code"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarehouses_FilterByIDs(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(warehouseSelect + " WHERE `warehouse`.`id` IN (?) ORDER BY `warehouse`.`name` ASC, `warehouse`.`id` ASC LIMIT 26").
		WithArgs("w-1").
		WillReturnRows(addWarehouse(warehouseRows(), "w-1", "Alpha"))

	res := env.do(granted(), `query($ids: [ID!]) { warehouses(filter: {ids: $ids}) { edges { node { name } } } }`,
		map[string]interface{}{"ids": []interface{}{warehouseID("w-1")}})
	require.Empty(t, res.Errors)
	assert.NoError(t, env.mock.ExpectationsWereMet())

	res = env.do(granted(), `query($ids: [ID!]) { warehouses(filter: {ids: $ids}) { totalCount } }`,
		map[string]interface{}{"ids": []interface{}{nodeid.Encode(inventory.TypeStock, 3)}})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BAD_USER_INPUT", res.Errors[0].Extensions["code"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarehouses_InvalidWindow(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(granted(), `{ warehouses(first: 1, last: 1) { totalCount } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "BAD_USER_INPUT", res.Errors[0].Extensions["code"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarehouse_WrongTypeIDResolvesToNull(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(granted(), `query($id: ID!) { warehouse(id: $id) { name } }`,
		map[string]interface{}{"id": nodeid.Encode(inventory.TypeStock, 7)})

	var out struct {
		Warehouse *struct{ Name string } `json:"warehouse"`
	}
	decodeData(t, res, &out)
	assert.Nil(t, out.Warehouse)

	res = env.do(granted(), `{ warehouse(id: "not-an-id") { name } }`, nil)
	decodeData(t, res, &out)
	assert.Nil(t, out.Warehouse)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestNode_DispatchesOnType(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(warehouseSelect + " WHERE `warehouse`.`id` IN (?)").
		WithArgs("w-1").
		WillReturnRows(addWarehouse(warehouseRows(), "w-1", "Alpha"))

	res := env.do(granted(), `query($id: ID!) { node(id: $id) { id ... on Warehouse { name } } }`,
		map[string]interface{}{"id": warehouseID("w-1")})
	var out struct {
		Node struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"node"`
	}
	decodeData(t, res, &out)
	assert.Equal(t, "Alpha", out.Node.Name)
	assert.Equal(t, warehouseID("w-1"), out.Node.ID)

	// Shipping zones need MANAGE_SHIPPING.
	ctx := permission.WithGranted(context.Background(), permission.NewSet(permission.ManageProducts))
	res = env.do(ctx, `query($id: ID!) { node(id: $id) { id } }`,
		map[string]interface{}{"id": nodeid.Encode(inventory.TypeShippingZone, 1)})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "PERMISSION_DENIED", res.Errors[0].Extensions["code"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestStock_ByID(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(stockSelect + " WHERE `stock`.`id` = ?").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "warehouse_id", "product_variant_id", "quantity", "quantity_allocated"}))

	res := env.do(granted(), `query($id: ID!) { stock(id: $id) { quantity } }`,
		map[string]interface{}{"id": nodeid.Encode(inventory.TypeStock, 9)})
	var out struct {
		Stock *struct{ Quantity int } `json:"stock"`
	}
	decodeData(t, res, &out)
	assert.Nil(t, out.Stock)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestStocks_BatchesRelations(t *testing.T) {
	env := newTestEnv(t)
	env.mock.MatchExpectationsInOrder(false)
	env.mock.ExpectQuery(stockSelect + " ORDER BY `stock`.`quantity` DESC, `stock`.`id` ASC LIMIT 3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "warehouse_id", "product_variant_id", "quantity", "quantity_allocated"}).
			AddRow(int64(1), "w-1", int64(10), 8, 3).
			AddRow(int64(2), "w-1", int64(11), 5, 9))
	env.mock.ExpectQuery(warehouseSelect + " WHERE `warehouse`.`id` IN (?)").
		WithArgs("w-1").
		WillReturnRows(addWarehouse(warehouseRows(), "w-1", "Alpha"))
	env.mock.ExpectQuery("SELECT `product_variant`.`id`, `product_variant`.`sku`, `product_variant`.`name`, `product_variant`.`product_name` "+
		"FROM `product_variant` WHERE `product_variant`.`id` IN (?,?)").
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sku", "name", "product_name"}).
			AddRow(int64(10), "SKU-10", "Red", "Shirt").
			AddRow(int64(11), "SKU-11", "Blue", "Shirt"))

	ctx := loaders.WithLoaders(granted(), env.r.NewLoaders())
	res := env.do(ctx, `{
		stocks(first: 2, sortBy: {field: QUANTITY, direction: DESC}) {
			edges { node { quantity quantityAvailable warehouse { name } productVariant { sku } } }
			pageInfo { hasNextPage }
		}
	}`, nil)

	var out struct {
		Stocks struct {
			Edges []struct {
				Node struct {
					Quantity          int `json:"quantity"`
					QuantityAvailable int `json:"quantityAvailable"`
					Warehouse         struct {
						Name string `json:"name"`
					} `json:"warehouse"`
					ProductVariant struct {
						SKU string `json:"sku"`
					} `json:"productVariant"`
				} `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"stocks"`
	}
	decodeData(t, res, &out)

	edges := out.Stocks.Edges
	require.Len(t, edges, 2)
	assert.Equal(t, 5, edges[0].Node.QuantityAvailable)
	assert.Equal(t, 0, edges[1].Node.QuantityAvailable)
	assert.Equal(t, "Alpha", edges[1].Node.Warehouse.Name)
	assert.Equal(t, "SKU-11", edges[1].Node.ProductVariant.SKU)
	assert.False(t, out.Stocks.PageInfo.HasNextPage)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestConnectionResult_TotalCountIsLazyAndCached(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery("SELECT COUNT(*) FROM `warehouse`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	plan := &planner.ConnectionPlan{Count: planner.SQLQuery{SQL: "SELECT COUNT(*) FROM `warehouse`"}}
	cr := &connectionResult{plan: plan, store: env.r.StoreForContext(context.Background()), countCtx: context.Background()}

	for i := 0; i < 2; i++ {
		n, err := cr.totalCount()
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	}
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
