package inventory

import "warehouse-graphql/internal/sorting"

// WarehouseSort orders warehouse listings. Names match the GraphQL
// WarehouseSortField enum; the default is name ascending with the primary key
// as tie-break.
var WarehouseSort = sorting.Registry{
	Fields: []sorting.Field{
		{Name: "NAME", Columns: []string{"name"}},
		{Name: "COMPANY_NAME", Columns: []string{"company_name"}},
		{Name: "EMAIL", Columns: []string{"email"}},
		{Name: "CREATED_AT", Columns: []string{"created_at"}},
	},
	Default:  sorting.Field{Name: "NAME", Columns: []string{"name"}},
	TieBreak: []string{"id"},
}.MustValidate()

// StockSort orders stock listings. Without a sort the listing is in primary
// key order.
var StockSort = sorting.Registry{
	Fields: []sorting.Field{
		{Name: "QUANTITY", Columns: []string{"quantity"}},
		{Name: "QUANTITY_ALLOCATED", Columns: []string{"quantity_allocated"}},
	},
	Default:  sorting.Field{Name: "ID", Columns: []string{"id"}},
	TieBreak: []string{"id"},
}.MustValidate()
