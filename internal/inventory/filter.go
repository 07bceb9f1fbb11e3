package inventory

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"warehouse-graphql/internal/planner"
	"warehouse-graphql/internal/sqlutil"
)

// WarehouseFilter narrows a warehouse listing. IDs are primary keys, already
// decoded from global IDs.
type WarehouseFilter struct {
	Search string
	IDs    []string
	// HasIDs distinguishes an explicit empty id list, which matches nothing,
	// from no id filter.
	HasIDs bool
}

var warehouseSearchColumns = []string{"name", "company_name", "email", "city", "postal_code", "phone"}

// Apply adds the filter conditions to q.
func (f WarehouseFilter) Apply(q planner.CollectionQuery) planner.CollectionQuery {
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := sqlutil.ContainsPattern(search)
		or := make(sq.Or, 0, len(warehouseSearchColumns))
		for _, col := range warehouseSearchColumns {
			or = append(or, sq.Like{q.Column(col): pattern})
		}
		q = q.Where(or)
	}
	if f.HasIDs {
		q = q.Where(sq.Eq{q.Column("id"): f.IDs})
	}
	return q
}

// StockFilter narrows a stock listing.
type StockFilter struct {
	Search          string
	Quantity        *int
	WarehouseIDs    []string
	HasWarehouseIDs bool
}

// Apply adds the filter conditions to q. Search matches the product variant
// name or SKU, the product name, or the warehouse name or company name.
func (f StockFilter) Apply(q planner.CollectionQuery) planner.CollectionQuery {
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := sqlutil.ContainsPattern(search)
		variants := sq.Select(sqlutil.QuoteIdentifier("id")).
			From(sqlutil.QuoteIdentifier(TableProductVariant)).
			Where(sq.Or{
				sq.Like{sqlutil.QuoteIdentifier("name"): pattern},
				sq.Like{sqlutil.QuoteIdentifier("sku"): pattern},
				sq.Like{sqlutil.QuoteIdentifier("product_name"): pattern},
			})
		warehouses := sq.Select(sqlutil.QuoteIdentifier("id")).
			From(sqlutil.QuoteIdentifier(TableWarehouse)).
			Where(sq.Or{
				sq.Like{sqlutil.QuoteIdentifier("name"): pattern},
				sq.Like{sqlutil.QuoteIdentifier("company_name"): pattern},
			})
		q = q.Where(sq.Or{
			inSubquery(q.Column("product_variant_id"), variants),
			inSubquery(q.Column("warehouse_id"), warehouses),
		})
	}
	if f.Quantity != nil {
		q = q.Where(sq.Eq{q.Column("quantity"): *f.Quantity})
	}
	if f.HasWarehouseIDs {
		q = q.Where(sq.Eq{q.Column("warehouse_id"): f.WarehouseIDs})
	}
	return q
}

// inSubquery renders "column IN (subquery)".
type inSubqueryExpr struct {
	column string
	sub    sq.SelectBuilder
}

func inSubquery(column string, sub sq.SelectBuilder) sq.Sqlizer {
	return inSubqueryExpr{column: column, sub: sub}
}

func (e inSubqueryExpr) ToSql() (string, []interface{}, error) {
	sql, args, err := e.sub.ToSql()
	if err != nil {
		return "", nil, err
	}
	return e.column + " IN (" + sql + ")", args, nil
}
