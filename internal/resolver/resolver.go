// Package resolver builds the warehouse GraphQL schema and resolves its
// queries and mutations against the inventory store.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/jinzhu/inflection"

	"warehouse-graphql/internal/dbexec"
	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/loaders"
	"warehouse-graphql/internal/logging"
	"warehouse-graphql/internal/nodeid"
	"warehouse-graphql/internal/permission"
	"warehouse-graphql/internal/planner"
	"warehouse-graphql/internal/sorting"
)

// Resolver handles GraphQL query execution against the inventory database.
type Resolver struct {
	executor  dbexec.QueryExecutor
	limits    planner.Limits
	batchWait time.Duration

	now   func() time.Time
	newID func() string
}

// NewResolver creates a resolver reading through executor. Mutations read and
// write through the transaction on their context instead.
func NewResolver(executor dbexec.QueryExecutor, limits planner.Limits, batchWait time.Duration) *Resolver {
	return &Resolver{
		executor:  executor,
		limits:    limits,
		batchWait: batchWait,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewLoaders creates request-scoped batch loaders reading through the
// request's executor.
func (r *Resolver) NewLoaders() *loaders.Loaders {
	return loaders.New(r.StoreForContext, r.batchWait)
}

// BuildGraphQLSchema constructs the executable schema.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	t := r.buildTypes()

	queryFields := graphql.Fields{
		"node": &graphql.Field{
			Type:        t.node,
			Description: "Fetches an object given its ID.",
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: r.resolveNode,
		},
	}
	r.addCollectionQueries(queryFields, inventory.TypeWarehouse, t.warehouse, t.warehouseConnection,
		t.warehouseFilter, t.warehouseSortInput, r.resolveWarehouse, r.resolveWarehouses)
	r.addCollectionQueries(queryFields, inventory.TypeStock, t.stock, t.stockConnection,
		t.stockFilter, t.stockSortInput, r.resolveStock, r.resolveStocks)

	idArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}
	zoneIDsArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.ID)))}
	mutationFields := graphql.Fields{
		"createWarehouse": &graphql.Field{
			Type:        t.warehouseCreate,
			Description: "Creates a new warehouse.",
			Args: graphql.FieldConfigArgument{
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(t.warehouseCreateInput)},
			},
			Resolve: r.mutation("create", r.createWarehouse),
		},
		"updateWarehouse": &graphql.Field{
			Type:        t.warehouseUpdate,
			Description: "Updates given warehouse.",
			Args: graphql.FieldConfigArgument{
				"id":    idArg,
				"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(t.warehouseUpdateInput)},
			},
			Resolve: r.mutation("update", r.updateWarehouse),
		},
		"deleteWarehouse": &graphql.Field{
			Type:        t.warehouseDelete,
			Description: "Deletes selected warehouse.",
			Args:        graphql.FieldConfigArgument{"id": idArg},
			Resolve:     r.mutation("delete", r.deleteWarehouse),
		},
		"assignWarehouseShippingZone": &graphql.Field{
			Type:        t.shippingZoneAssign,
			Description: "Add shipping zone to given warehouse.",
			Args:        graphql.FieldConfigArgument{"id": idArg, "shippingZoneIds": zoneIDsArg},
			Resolve:     r.mutation("assign_shipping_zone", r.assignShippingZones),
		},
		"unassignWarehouseShippingZone": &graphql.Field{
			Type:        t.shippingZoneUnassign,
			Description: "Remove shipping zone from given warehouse.",
			Args:        graphql.FieldConfigArgument{"id": idArg, "shippingZoneIds": zoneIDsArg},
			Resolve:     r.mutation("unassign_shipping_zone", r.unassignShippingZones),
		},
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    graphql.NewObject(graphql.ObjectConfig{Name: "Query", Fields: queryFields}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{Name: "Mutation", Fields: mutationFields}),
		Types:    []graphql.Type{t.warehouse, t.stock, t.shippingZone, t.productVariant},
	})
}

// addCollectionQueries registers the single-node and connection queries for
// an entity, e.g. warehouse and warehouses.
func (r *Resolver) addCollectionQueries(fields graphql.Fields, typeName string, node, connection *graphql.Object,
	filter, sortBy *graphql.InputObject, single, list graphql.FieldResolveFn) {
	singular := lowerFirst(typeName)
	fields[singular] = &graphql.Field{
		Type:        node,
		Description: fmt.Sprintf("Look up a %s by ID.", singular),
		Args: graphql.FieldConfigArgument{
			"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
		},
		Resolve: permission.RequirePermission(permission.ManageProducts, single),
	}
	fields[inflection.Plural(singular)] = &graphql.Field{
		Type:        connection,
		Description: fmt.Sprintf("List of %s.", inflection.Plural(singular)),
		Args: graphql.FieldConfigArgument{
			"filter": &graphql.ArgumentConfig{Type: filter},
			"sortBy": &graphql.ArgumentConfig{Type: sortBy},
			"first":  &graphql.ArgumentConfig{Type: graphql.Int},
			"last":   &graphql.ArgumentConfig{Type: graphql.Int},
			"after":  &graphql.ArgumentConfig{Type: graphql.String},
			"before": &graphql.ArgumentConfig{Type: graphql.String},
		},
		Resolve: permission.RequirePermission(permission.ManageProducts, list),
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func (r *Resolver) loadersFor(ctx context.Context) *loaders.Loaders {
	if l := loaders.FromContext(ctx); l != nil {
		return l
	}
	return r.NewLoaders()
}

func (r *Resolver) resolveWarehouse(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	pk, err := nodeid.StringPK(id, inventory.TypeWarehouse)
	if err != nil {
		return nil, nil
	}
	w, err := r.loadersFor(p.Context).Warehouse(p.Context, pk)
	if err != nil || w == nil {
		return nil, err
	}
	return w, nil
}

func (r *Resolver) resolveStock(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	pk, err := nodeid.IntPK(id, inventory.TypeStock)
	if err != nil {
		return nil, nil
	}
	st, err := r.StoreForContext(p.Context).Stock(p.Context, pk)
	if errors.Is(err, inventory.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// nodeCapabilities lists the capability each node type requires.
var nodeCapabilities = map[string]permission.Capability{
	inventory.TypeWarehouse:      permission.ManageProducts,
	inventory.TypeStock:          permission.ManageProducts,
	inventory.TypeProductVariant: permission.ManageProducts,
	inventory.TypeShippingZone:   permission.ManageShipping,
}

// resolveNode dispatches on the type name encoded in the ID. Unknown types,
// malformed IDs and missing rows resolve to null.
func (r *Resolver) resolveNode(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	typeName, _, err := nodeid.Decode(id)
	if err != nil {
		return nil, nil
	}
	capability, ok := nodeCapabilities[typeName]
	if !ok {
		return nil, nil
	}
	if err := permission.Check(p.Context, capability); err != nil {
		return nil, err
	}

	ctx := p.Context
	switch typeName {
	case inventory.TypeWarehouse:
		return r.resolveWarehouse(p)
	case inventory.TypeStock:
		return r.resolveStock(p)
	case inventory.TypeProductVariant:
		pk, err := nodeid.IntPK(id, typeName)
		if err != nil {
			return nil, nil
		}
		v, err := r.loadersFor(ctx).ProductVariant(ctx, pk)
		if err != nil || v == nil {
			return nil, err
		}
		return v, nil
	case inventory.TypeShippingZone:
		pk, err := nodeid.IntPK(id, typeName)
		if err != nil {
			return nil, nil
		}
		zones, err := r.StoreForContext(ctx).ShippingZonesByIDs(ctx, []int64{pk})
		if err != nil || len(zones) == 0 {
			return nil, err
		}
		return &zones[0], nil
	}
	return nil, nil
}

func (r *Resolver) resolveWarehouses(p graphql.ResolveParams) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.connection", inventory.TableWarehouse, p.Info.FieldName)
	defer func() { span.end(err) }()

	filter, err := parseWarehouseFilter(p.Args)
	if err != nil {
		return nil, err
	}
	plan, err := r.planConnection(ctx, filter.Apply(inventory.WarehouseQuery()), inventory.TypeWarehouse,
		parseSortSpec(p.Args), inventory.WarehouseSort, p.Args)
	if err != nil {
		return nil, err
	}

	store := r.StoreForContext(ctx)
	rows, err := store.Warehouses(ctx, plan.Root)
	if err != nil {
		return nil, err
	}
	return buildConnectionResult(ctx, store, plan, rows), nil
}

func (r *Resolver) resolveStocks(p graphql.ResolveParams) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.connection", inventory.TableStock, p.Info.FieldName)
	defer func() { span.end(err) }()

	filter, err := parseStockFilter(p.Args)
	if err != nil {
		return nil, err
	}
	plan, err := r.planConnection(ctx, filter.Apply(inventory.StockQuery()), inventory.TypeStock,
		parseSortSpec(p.Args), inventory.StockSort, p.Args)
	if err != nil {
		return nil, err
	}

	store := r.StoreForContext(ctx)
	rows, err := store.Stocks(ctx, plan.Root)
	if err != nil {
		return nil, err
	}
	return buildConnectionResult(ctx, store, plan, rows), nil
}

// planConnection orders a filtered query by the requested sort and plans the
// requested page of it.
func (r *Resolver) planConnection(ctx context.Context, q planner.CollectionQuery, typeName string,
	spec *sorting.Spec, reg sorting.Registry, args map[string]interface{}) (*planner.ConnectionPlan, error) {
	ordered, err := sorting.Resolve(q, spec, reg)
	if err != nil {
		return nil, err
	}
	window, err := planner.ParseWindow(args, r.limits)
	if err != nil {
		return nil, err
	}
	sortKey := sorting.Key(spec, reg)
	plan, err := planner.PlanConnection(ordered, typeName, sortKey, window)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("planned connection",
		slog.String("type", typeName),
		slog.String("sort_key", sortKey),
		slog.String("order", planner.OrderString(plan.Order)),
		slog.Int("limit", window.Limit),
	)
	return plan, nil
}

// Relation fields return thunks so graphql-go resolves every row of a page
// before any batch is dispatched.

func (r *Resolver) resolveWarehouseShippingZones(p graphql.ResolveParams) (interface{}, error) {
	w, ok := p.Source.(*inventory.Warehouse)
	if !ok {
		return nil, nil
	}
	if w.ShippingZones != nil {
		return zonePointers(w.ShippingZones), nil
	}
	thunk := r.loadersFor(p.Context).LoadShippingZones(p.Context, w.ID)
	return func() (interface{}, error) {
		zones, err := thunk()
		if err != nil {
			return nil, err
		}
		return zonePointers(zones), nil
	}, nil
}

func zonePointers(zones []inventory.ShippingZone) []*inventory.ShippingZone {
	out := make([]*inventory.ShippingZone, len(zones))
	for i := range zones {
		out[i] = &zones[i]
	}
	return out
}

func (r *Resolver) resolveStockWarehouse(p graphql.ResolveParams) (interface{}, error) {
	s, ok := p.Source.(*inventory.Stock)
	if !ok {
		return nil, nil
	}
	thunk := r.loadersFor(p.Context).LoadWarehouse(p.Context, s.WarehouseID)
	return func() (interface{}, error) {
		w, err := thunk()
		if err != nil {
			return nil, err
		}
		if w == nil {
			return nil, fmt.Errorf("warehouse %s of stock %d not found", s.WarehouseID, s.ID)
		}
		return w, nil
	}, nil
}

func (r *Resolver) resolveStockProductVariant(p graphql.ResolveParams) (interface{}, error) {
	s, ok := p.Source.(*inventory.Stock)
	if !ok {
		return nil, nil
	}
	thunk := r.loadersFor(p.Context).LoadProductVariant(p.Context, s.ProductVariantID)
	return func() (interface{}, error) {
		v, err := thunk()
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("product variant %d of stock %d not found", s.ProductVariantID, s.ID)
		}
		return v, nil
	}, nil
}
