package resolver

import (
	"fmt"

	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/nodeid"
	"warehouse-graphql/internal/planner"
	"warehouse-graphql/internal/sorting"
)

// parseSortSpec reads a {field, direction} sorting input. A missing argument
// yields nil, which selects the registry default.
func parseSortSpec(args map[string]interface{}) *sorting.Spec {
	raw, ok := args["sortBy"].(map[string]interface{})
	if !ok {
		return nil
	}
	spec := &sorting.Spec{}
	spec.Field, _ = raw["field"].(string)
	if dir, ok := raw["direction"].(string); ok {
		spec.Direction = sorting.Direction(dir)
	}
	return spec
}

func parseWarehouseFilter(args map[string]interface{}) (inventory.WarehouseFilter, error) {
	var f inventory.WarehouseFilter
	raw, ok := args["filter"].(map[string]interface{})
	if !ok {
		return f, nil
	}
	f.Search, _ = raw["search"].(string)
	if ids, ok := raw["ids"].([]interface{}); ok {
		pks, err := decodeStringPKs(ids, inventory.TypeWarehouse, "ids")
		if err != nil {
			return f, err
		}
		f.IDs = pks
		f.HasIDs = true
	}
	return f, nil
}

func parseStockFilter(args map[string]interface{}) (inventory.StockFilter, error) {
	var f inventory.StockFilter
	raw, ok := args["filter"].(map[string]interface{})
	if !ok {
		return f, nil
	}
	f.Search, _ = raw["search"].(string)
	if q, ok := raw["quantity"].(int); ok {
		f.Quantity = &q
	}
	if ids, ok := raw["warehouseIds"].([]interface{}); ok {
		pks, err := decodeStringPKs(ids, inventory.TypeWarehouse, "warehouseIds")
		if err != nil {
			return f, err
		}
		f.WarehouseIDs = pks
		f.HasWarehouseIDs = true
	}
	return f, nil
}

func decodeStringPKs(ids []interface{}, typeName, argName string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, _ := raw.(string)
		pk, err := nodeid.StringPK(id, typeName)
		if err != nil {
			return nil, &planner.InputError{Message: fmt.Sprintf("%s: %q is not a valid %s ID", argName, id, typeName)}
		}
		out = append(out, pk)
	}
	return out, nil
}

// decodeZoneIDs decodes shipping zone global IDs. Invalid IDs are reported as
// a field error rather than failing the operation.
func decodeZoneIDs(raw interface{}, fieldName string) ([]int64, *inventory.FieldError) {
	ids, _ := raw.([]interface{})
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, item := range ids {
		id, _ := item.(string)
		pk, err := nodeid.IntPK(id, inventory.TypeShippingZone)
		if err != nil {
			return nil, &inventory.FieldError{
				Field:   fieldName,
				Message: fmt.Sprintf("Couldn't resolve to a node: %s", id),
				Code:    inventory.CodeGraphQLError,
			}
		}
		if _, dup := seen[pk]; dup {
			continue
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}
	return out, nil
}

func parseWarehouseInput(raw interface{}) inventory.WarehouseInput {
	m, _ := raw.(map[string]interface{})
	in := inventory.WarehouseInput{
		Name:        stringArg(m, "name"),
		CompanyName: stringArg(m, "companyName"),
		Email:       stringArg(m, "email"),
	}
	if addr, ok := m["address"].(map[string]interface{}); ok {
		in.Address = &inventory.AddressInput{
			StreetAddress1: stringArg(addr, "streetAddress1"),
			StreetAddress2: stringArg(addr, "streetAddress2"),
			City:           stringArg(addr, "city"),
			CityArea:       stringArg(addr, "cityArea"),
			PostalCode:     stringArg(addr, "postalCode"),
			Country:        stringArg(addr, "country"),
			CountryArea:    stringArg(addr, "countryArea"),
			Phone:          stringArg(addr, "phone"),
		}
	}
	return in
}

// stringArg returns a pointer to a provided string argument. Absent and null
// arguments both yield nil.
func stringArg(m map[string]interface{}, name string) *string {
	v, ok := m[name].(string)
	if !ok {
		return nil
	}
	return &v
}
