package resolver

import (
	"github.com/graphql-go/graphql"

	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/nodeid"
	"warehouse-graphql/internal/sorting"
)

// schemaTypes holds the object, enum and input types shared by the query and
// mutation roots.
type schemaTypes struct {
	node           *graphql.Interface
	pageInfo       *graphql.Object
	orderDirection *graphql.Enum
	address        *graphql.Object
	shippingZone   *graphql.Object
	productVariant *graphql.Object
	warehouse      *graphql.Object
	stock          *graphql.Object

	warehouseConnection *graphql.Object
	stockConnection     *graphql.Object
	warehouseSortInput  *graphql.InputObject
	stockSortInput      *graphql.InputObject
	warehouseFilter     *graphql.InputObject
	stockFilter         *graphql.InputObject

	addressInput         *graphql.InputObject
	warehouseCreateInput *graphql.InputObject
	warehouseUpdateInput *graphql.InputObject
	warehouseErrorCode   *graphql.Enum
	warehouseError       *graphql.Object
	warehouseCreate      *graphql.Object
	warehouseUpdate      *graphql.Object
	warehouseDelete      *graphql.Object
	shippingZoneAssign   *graphql.Object
	shippingZoneUnassign *graphql.Object
}

// field builds a resolver reading from a typed source value.
func field[T any](fn func(*T) interface{}) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		src, ok := p.Source.(*T)
		if !ok || src == nil {
			return nil, nil
		}
		return fn(src), nil
	}
}

func (r *Resolver) buildTypes() *schemaTypes {
	t := &schemaTypes{}

	t.node = graphql.NewInterface(graphql.InterfaceConfig{
		Name:        "Node",
		Description: "An object with a globally unique ID.",
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		},
		ResolveType: func(p graphql.ResolveTypeParams) *graphql.Object {
			switch p.Value.(type) {
			case *inventory.Warehouse:
				return t.warehouse
			case *inventory.Stock:
				return t.stock
			case *inventory.ShippingZone:
				return t.shippingZone
			case *inventory.ProductVariant:
				return t.productVariant
			}
			return nil
		},
	})

	t.pageInfo = graphql.NewObject(graphql.ObjectConfig{
		Name: "PageInfo",
		Fields: graphql.Fields{
			"hasNextPage":     &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Resolve: field(func(pi *pageInfo) interface{} { return pi.HasNextPage })},
			"hasPreviousPage": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean), Resolve: field(func(pi *pageInfo) interface{} { return pi.HasPreviousPage })},
			"startCursor":     &graphql.Field{Type: graphql.String, Resolve: field(func(pi *pageInfo) interface{} { return optionalString(pi.StartCursor) })},
			"endCursor":       &graphql.Field{Type: graphql.String, Resolve: field(func(pi *pageInfo) interface{} { return optionalString(pi.EndCursor) })},
		},
	})

	t.orderDirection = graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderDirection",
		Values: graphql.EnumValueConfigMap{
			"ASC":  &graphql.EnumValueConfig{Value: string(sorting.Asc), Description: "Specifies an ascending sort order."},
			"DESC": &graphql.EnumValueConfig{Value: string(sorting.Desc), Description: "Specifies a descending sort order."},
		},
	})

	nonNullString := graphql.NewNonNull(graphql.String)

	t.address = graphql.NewObject(graphql.ObjectConfig{
		Name: "Address",
		Fields: graphql.Fields{
			"streetAddress1": &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.StreetAddress1 })},
			"streetAddress2": &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.StreetAddress2 })},
			"city":           &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.City })},
			"cityArea":       &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.CityArea })},
			"postalCode":     &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.PostalCode })},
			"country":        &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.Country })},
			"countryArea":    &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.CountryArea })},
			"phone":          &graphql.Field{Type: nonNullString, Resolve: field(func(a *inventory.Address) interface{} { return a.Phone })},
		},
	})

	t.shippingZone = graphql.NewObject(graphql.ObjectConfig{
		Name:       inventory.TypeShippingZone,
		Interfaces: []*graphql.Interface{t.node},
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: field(func(z *inventory.ShippingZone) interface{} {
				return nodeid.Encode(inventory.TypeShippingZone, z.ID)
			})},
			"name":      &graphql.Field{Type: nonNullString, Resolve: field(func(z *inventory.ShippingZone) interface{} { return z.Name })},
			"countries": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(nonNullString)), Resolve: field(func(z *inventory.ShippingZone) interface{} { return z.Countries })},
		},
	})

	t.productVariant = graphql.NewObject(graphql.ObjectConfig{
		Name:       inventory.TypeProductVariant,
		Interfaces: []*graphql.Interface{t.node},
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: field(func(v *inventory.ProductVariant) interface{} {
				return nodeid.Encode(inventory.TypeProductVariant, v.ID)
			})},
			"sku":         &graphql.Field{Type: nonNullString, Resolve: field(func(v *inventory.ProductVariant) interface{} { return v.SKU })},
			"name":        &graphql.Field{Type: nonNullString, Resolve: field(func(v *inventory.ProductVariant) interface{} { return v.Name })},
			"productName": &graphql.Field{Type: nonNullString, Resolve: field(func(v *inventory.ProductVariant) interface{} { return v.ProductName })},
		},
	})

	t.warehouse = graphql.NewObject(graphql.ObjectConfig{
		Name:        inventory.TypeWarehouse,
		Description: "Represents a warehouse.",
		Interfaces:  []*graphql.Interface{t.node},
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: field(func(w *inventory.Warehouse) interface{} {
				return nodeid.Encode(inventory.TypeWarehouse, w.ID)
			})},
			"name":          &graphql.Field{Type: nonNullString, Resolve: field(func(w *inventory.Warehouse) interface{} { return w.Name })},
			"companyName":   &graphql.Field{Type: nonNullString, Resolve: field(func(w *inventory.Warehouse) interface{} { return w.CompanyName })},
			"email":         &graphql.Field{Type: nonNullString, Resolve: field(func(w *inventory.Warehouse) interface{} { return w.Email })},
			"address":       &graphql.Field{Type: graphql.NewNonNull(t.address), Resolve: field(func(w *inventory.Warehouse) interface{} { return &w.Address })},
			"createdAt":     &graphql.Field{Type: graphql.NewNonNull(graphql.DateTime), Resolve: field(func(w *inventory.Warehouse) interface{} { return w.CreatedAt })},
			"shippingZones": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.shippingZone))), Resolve: r.resolveWarehouseShippingZones},
		},
	})

	t.stock = graphql.NewObject(graphql.ObjectConfig{
		Name:        inventory.TypeStock,
		Description: "Represents stock of a product variant held in a warehouse.",
		Interfaces:  []*graphql.Interface{t.node},
		Fields: graphql.Fields{
			"id": &graphql.Field{Type: graphql.NewNonNull(graphql.ID), Resolve: field(func(s *inventory.Stock) interface{} {
				return nodeid.Encode(inventory.TypeStock, s.ID)
			})},
			"warehouse":         &graphql.Field{Type: graphql.NewNonNull(t.warehouse), Resolve: r.resolveStockWarehouse},
			"productVariant":    &graphql.Field{Type: graphql.NewNonNull(t.productVariant), Resolve: r.resolveStockProductVariant},
			"quantity":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: field(func(s *inventory.Stock) interface{} { return s.Quantity })},
			"quantityAllocated": &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: field(func(s *inventory.Stock) interface{} { return s.QuantityAllocated })},
			"quantityAvailable": &graphql.Field{Type: graphql.NewNonNull(graphql.Int), Resolve: field(func(s *inventory.Stock) interface{} { return s.QuantityAvailable() })},
		},
	})

	t.warehouseConnection = r.connectionType(t, t.warehouse)
	t.stockConnection = r.connectionType(t, t.stock)

	t.warehouseSortInput = sortingInput(inventory.TypeWarehouse, inventory.WarehouseSort, t.orderDirection)
	t.stockSortInput = sortingInput(inventory.TypeStock, inventory.StockSort, t.orderDirection)

	idList := graphql.NewList(graphql.NewNonNull(graphql.ID))
	t.warehouseFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "WarehouseFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"search": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"ids":    &graphql.InputObjectFieldConfig{Type: idList},
		},
	})
	t.stockFilter = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "StockFilterInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"search":       &graphql.InputObjectFieldConfig{Type: graphql.String},
			"quantity":     &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"warehouseIds": &graphql.InputObjectFieldConfig{Type: idList},
		},
	})

	r.buildMutationTypes(t, idList)
	return t
}

// sortingInput derives the sort field enum from the registry so the schema
// cannot advertise a field the resolver would reject.
func sortingInput(typeName string, reg sorting.Registry, direction *graphql.Enum) *graphql.InputObject {
	values := graphql.EnumValueConfigMap{}
	for _, name := range reg.Names() {
		values[name] = &graphql.EnumValueConfig{Value: name}
	}
	fieldEnum := graphql.NewEnum(graphql.EnumConfig{
		Name:   typeName + "SortField",
		Values: values,
	})
	return graphql.NewInputObject(graphql.InputObjectConfig{
		Name: typeName + "SortingInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"field":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(fieldEnum)},
			"direction": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(direction)},
		},
	})
}

func (r *Resolver) buildMutationTypes(t *schemaTypes, idList *graphql.List) {
	addressFields := graphql.InputObjectConfigFieldMap{}
	for _, name := range []string{"streetAddress1", "streetAddress2", "city", "cityArea", "postalCode", "country", "countryArea", "phone"} {
		addressFields[name] = &graphql.InputObjectFieldConfig{Type: graphql.String}
	}
	t.addressInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   "AddressInput",
		Fields: addressFields,
	})

	t.warehouseCreateInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "WarehouseCreateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":          &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
			"companyName":   &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":         &graphql.InputObjectFieldConfig{Type: graphql.String},
			"address":       &graphql.InputObjectFieldConfig{Type: t.addressInput},
			"shippingZones": &graphql.InputObjectFieldConfig{Type: idList, Description: "Shipping zones supported by the warehouse."},
		},
	})
	t.warehouseUpdateInput = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "WarehouseUpdateInput",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":        &graphql.InputObjectFieldConfig{Type: graphql.String},
			"companyName": &graphql.InputObjectFieldConfig{Type: graphql.String},
			"email":       &graphql.InputObjectFieldConfig{Type: graphql.String},
			"address":     &graphql.InputObjectFieldConfig{Type: t.addressInput},
		},
	})

	codes := graphql.EnumValueConfigMap{}
	for _, code := range []inventory.ErrorCode{
		inventory.CodeAlreadyExists, inventory.CodeGraphQLError, inventory.CodeInvalid,
		inventory.CodeNotFound, inventory.CodeRequired, inventory.CodeUnique,
	} {
		codes[string(code)] = &graphql.EnumValueConfig{Value: string(code)}
	}
	t.warehouseErrorCode = graphql.NewEnum(graphql.EnumConfig{Name: "WarehouseErrorCode", Values: codes})

	t.warehouseError = graphql.NewObject(graphql.ObjectConfig{
		Name: "WarehouseError",
		Fields: graphql.Fields{
			"field": &graphql.Field{Type: graphql.String, Resolve: field(func(e *inventory.FieldError) interface{} {
				return optionalString(e.Field)
			})},
			"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: field(func(e *inventory.FieldError) interface{} { return e.Message })},
			"code":    &graphql.Field{Type: graphql.NewNonNull(t.warehouseErrorCode), Resolve: field(func(e *inventory.FieldError) interface{} { return string(e.Code) })},
		},
	})

	t.warehouseCreate = r.payloadType("WarehouseCreate", t)
	t.warehouseUpdate = r.payloadType("WarehouseUpdate", t)
	t.warehouseDelete = r.payloadType("WarehouseDelete", t)
	t.shippingZoneAssign = r.payloadType("WarehouseShippingZoneAssign", t)
	t.shippingZoneUnassign = r.payloadType("WarehouseShippingZoneUnassign", t)
}

// payloadType is the result of every warehouse mutation: the affected
// warehouse, or the errors that prevented the change.
func (r *Resolver) payloadType(name string, t *schemaTypes) *graphql.Object {
	errorList := graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(t.warehouseError)))
	errorsOf := field(func(p *mutationPayload) interface{} {
		if p.Errors == nil {
			return []*inventory.FieldError{}
		}
		return p.Errors
	})
	return graphql.NewObject(graphql.ObjectConfig{
		Name: name,
		Fields: graphql.Fields{
			"warehouse":       &graphql.Field{Type: t.warehouse, Resolve: field(func(p *mutationPayload) interface{} { return p.warehouseOrNil() })},
			"errors":          &graphql.Field{Type: errorList, Resolve: errorsOf},
			"warehouseErrors": &graphql.Field{Type: errorList, Resolve: errorsOf, DeprecationReason: "Use errors instead."},
		},
	})
}

func optionalString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
