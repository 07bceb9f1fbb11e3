// Package planner builds SQL for collection reads, Relay connections, and
// mutations. Nothing in this package executes queries.
package planner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"warehouse-graphql/internal/sqlutil"
)

// SQLQuery is a rendered statement with positional arguments.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Valid reports whether d is ASC or DESC.
func (d Direction) Valid() bool {
	return d == Asc || d == Desc
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Desc {
		return Asc
	}
	return Desc
}

// OrderTerm is one ORDER BY entry over an unqualified column of the query table.
type OrderTerm struct {
	Column    string
	Direction Direction
}

func (t OrderTerm) String() string {
	return t.Column + " " + string(t.Direction)
}

// CollectionQuery describes an unexecuted read over one table. It is a value:
// every composition method returns a new query and leaves the receiver as is.
type CollectionQuery struct {
	table   string
	columns []string
	where   []sq.Sqlizer
	order   []OrderTerm
}

// NewCollection starts a query selecting columns from table.
func NewCollection(table string, columns ...string) CollectionQuery {
	return CollectionQuery{
		table:   table,
		columns: append([]string(nil), columns...),
	}
}

// Table returns the table name.
func (q CollectionQuery) Table() string { return q.table }

// Columns returns a copy of the selected columns.
func (q CollectionQuery) Columns() []string { return append([]string(nil), q.columns...) }

// Order returns a copy of the current ordering.
func (q CollectionQuery) Order() []OrderTerm { return append([]OrderTerm(nil), q.order...) }

// IsOrdered reports whether any ordering has been applied.
func (q CollectionQuery) IsOrdered() bool { return len(q.order) > 0 }

// Where returns a query with cond ANDed onto the existing conditions.
// A nil condition is ignored.
func (q CollectionQuery) Where(cond sq.Sqlizer) CollectionQuery {
	if cond == nil {
		return q
	}
	out := q.clone()
	out.where = append(out.where, cond)
	return out
}

// Ordered returns a query whose ordering is exactly terms, replacing any
// ordering previously applied.
func (q CollectionQuery) Ordered(terms ...OrderTerm) CollectionQuery {
	out := q.clone()
	out.order = append([]OrderTerm(nil), terms...)
	return out
}

func (q CollectionQuery) clone() CollectionQuery {
	return CollectionQuery{
		table:   q.table,
		columns: append([]string(nil), q.columns...),
		where:   append([]sq.Sqlizer(nil), q.where...),
		order:   append([]OrderTerm(nil), q.order...),
	}
}

// Column qualifies a column with the query table.
func (q CollectionQuery) Column(name string) string {
	return sqlutil.QualifiedColumn(q.table, name)
}

// Select materializes the query as a squirrel builder with conditions and
// ordering applied. Callers add LIMIT or extra predicates as needed.
func (q CollectionQuery) Select() sq.SelectBuilder {
	return q.selectWithOrder(q.order)
}

func (q CollectionQuery) selectWithOrder(order []OrderTerm) sq.SelectBuilder {
	cols := make([]string, len(q.columns))
	for i, col := range q.columns {
		cols[i] = q.Column(col)
	}
	builder := sq.Select(cols...).
		From(sqlutil.QuoteIdentifier(q.table)).
		PlaceholderFormat(sq.Question)
	for _, cond := range q.where {
		builder = builder.Where(cond)
	}
	if len(order) > 0 {
		clauses := make([]string, len(order))
		for i, term := range order {
			clauses[i] = q.Column(term.Column) + " " + string(term.Direction)
		}
		builder = builder.OrderBy(clauses...)
	}
	return builder
}

// ToSQL renders the full query.
func (q CollectionQuery) ToSQL() (SQLQuery, error) {
	if len(q.columns) == 0 {
		return SQLQuery{}, fmt.Errorf("query on %s selects no columns", q.table)
	}
	query, args, err := q.Select().ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// CountSQL renders a COUNT(*) over the filtered rows, ignoring ordering.
func (q CollectionQuery) CountSQL() (SQLQuery, error) {
	builder := sq.Select("COUNT(*)").
		From(sqlutil.QuoteIdentifier(q.table)).
		PlaceholderFormat(sq.Question)
	for _, cond := range q.where {
		builder = builder.Where(cond)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// OrderString renders the ordering for logs and span attributes.
func OrderString(terms []OrderTerm) string {
	parts := make([]string, len(terms))
	for i, term := range terms {
		parts[i] = term.String()
	}
	return strings.Join(parts, ", ")
}
