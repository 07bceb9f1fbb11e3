package planner

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"

	"warehouse-graphql/internal/sqlutil"
)

// PlanInsert builds SQL for inserting a single row with the provided columns.
func PlanInsert(table string, columns []string, values []interface{}) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("insert into %s requires columns", table)
	}
	if len(columns) != len(values) {
		return SQLQuery{}, fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(values))
	}

	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = sqlutil.QuoteIdentifier(col)
	}

	query, args, err := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Columns(quotedCols...).
		Values(values...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanInsertIgnore builds a multi-row INSERT IGNORE. Rows that collide with an
// existing key are skipped, which makes link inserts idempotent.
func PlanInsertIgnore(table string, columns []string, rows [][]interface{}) (SQLQuery, error) {
	if len(rows) == 0 {
		return SQLQuery{}, fmt.Errorf("insert into %s requires at least one row", table)
	}
	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		quotedCols[i] = sqlutil.QuoteIdentifier(col)
	}
	builder := sq.Insert(sqlutil.QuoteIdentifier(table)).
		Options("IGNORE").
		Columns(quotedCols...).
		PlaceholderFormat(sq.Question)
	for _, row := range rows {
		if len(row) != len(columns) {
			return SQLQuery{}, fmt.Errorf("insert into %s: %d columns but %d values", table, len(columns), len(row))
		}
		builder = builder.Values(row...)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanUpdate builds SQL for updating rows matching where. Set columns are
// rendered in name order so the statement text is stable.
func PlanUpdate(table string, set map[string]interface{}, where sq.Eq) (SQLQuery, error) {
	if len(set) == 0 {
		return SQLQuery{}, fmt.Errorf("update set cannot be empty")
	}
	if len(where) == 0 {
		return SQLQuery{}, fmt.Errorf("update of %s requires a key", table)
	}

	names := make([]string, 0, len(set))
	for col := range set {
		names = append(names, col)
	}
	sort.Strings(names)

	update := sq.Update(sqlutil.QuoteIdentifier(table)).PlaceholderFormat(sq.Question)
	for _, col := range names {
		update = update.Set(sqlutil.QuoteIdentifier(col), set[col])
	}
	update = update.Where(quoteEq(where))

	query, args, err := update.ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

// PlanDelete builds SQL for deleting rows matching where.
func PlanDelete(table string, where sq.Eq) (SQLQuery, error) {
	if len(where) == 0 {
		return SQLQuery{}, fmt.Errorf("delete from %s requires a key", table)
	}
	query, args, err := sq.Delete(sqlutil.QuoteIdentifier(table)).
		Where(quoteEq(where)).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}

func quoteEq(where sq.Eq) sq.Eq {
	out := make(sq.Eq, len(where))
	for col, val := range where {
		out[sqlutil.QuoteIdentifier(col)] = val
	}
	return out
}
