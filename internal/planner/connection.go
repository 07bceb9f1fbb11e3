package planner

import (
	"errors"

	sq "github.com/Masterminds/squirrel"

	"warehouse-graphql/internal/cursor"
)

const (
	// DefaultConnectionLimit is the default page size for connection queries.
	DefaultConnectionLimit = 25
	// MaxConnectionLimit is the maximum allowed page size.
	MaxConnectionLimit = 100
)

type PaginationMode string

const (
	PaginationModeForward  PaginationMode = "forward"
	PaginationModeBackward PaginationMode = "backward"
)

// Limits bounds connection page sizes.
type Limits struct {
	Default int
	Max     int
}

func (l Limits) normalized() Limits {
	if l.Max <= 0 {
		l.Max = MaxConnectionLimit
	}
	if l.Default <= 0 {
		l.Default = DefaultConnectionLimit
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

// Window is the parsed first/last/after/before argument set.
type Window struct {
	Mode      PaginationMode
	Limit     int
	After     string
	Before    string
	HasAfter  bool
	HasBefore bool
}

// ParseWindow validates Relay pagination arguments. Page sizes above the
// maximum are clamped rather than rejected.
func ParseWindow(args map[string]interface{}, limits Limits) (Window, error) {
	limits = limits.normalized()
	window := Window{Mode: PaginationModeForward, Limit: limits.Default}
	if args == nil {
		return window, nil
	}

	first, hasFirst, err := parseLimitArg(args, "first", limits.Max)
	if err != nil {
		return Window{}, err
	}
	last, hasLast, err := parseLimitArg(args, "last", limits.Max)
	if err != nil {
		return Window{}, err
	}
	after, hasAfter, err := parseOptionalStringArg(args, "after")
	if err != nil {
		return Window{}, err
	}
	before, hasBefore, err := parseOptionalStringArg(args, "before")
	if err != nil {
		return Window{}, err
	}

	if hasFirst && hasLast {
		return Window{}, inputErrorf("cannot use both first and last")
	}
	if hasAfter && hasBefore {
		return Window{}, inputErrorf("cannot use both after and before")
	}
	if hasBefore && !hasLast {
		return Window{}, inputErrorf("before requires last")
	}
	if hasLast && hasAfter {
		return Window{}, inputErrorf("last cannot be used with after")
	}
	if hasFirst && hasBefore {
		return Window{}, inputErrorf("before cannot be used with first")
	}

	if hasLast {
		window.Mode = PaginationModeBackward
		window.Limit = last
	} else if hasFirst {
		window.Limit = first
	}
	window.After, window.HasAfter = after, hasAfter
	window.Before, window.HasBefore = before, hasBefore
	return window, nil
}

func parseLimitArg(args map[string]interface{}, name string, max int) (int, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	var v int
	switch n := raw.(type) {
	case int:
		v = n
	case float64:
		if n != float64(int(n)) {
			return 0, false, inputErrorf("%s must be an integer", name)
		}
		v = int(n)
	default:
		return 0, false, inputErrorf("%s must be an integer", name)
	}
	if v < 0 {
		return 0, false, inputErrorf("%s must be non-negative", name)
	}
	if v > max {
		return max, true, nil
	}
	return v, true, nil
}

func parseOptionalStringArg(args map[string]interface{}, name string) (string, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return "", false, nil
	}
	value, ok := raw.(string)
	if !ok {
		return "", false, inputErrorf("%s must be a string", name)
	}
	return value, true, nil
}

// ConnectionPlan holds the planned SQL for one connection page.
type ConnectionPlan struct {
	Root     SQLQuery // page query, fetching Limit+1 rows
	Count    SQLQuery // totalCount over the filtered rows, no cursor
	TypeName string
	SortKey  string
	Order    []OrderTerm // presentation order
	Window   Window
}

// PlanConnection plans a page over an ordered query. The query ordering must
// already be total; the cursor binds typeName, sortKey, and the ordering
// directions so that a cursor from a different listing is rejected.
func PlanConnection(q CollectionQuery, typeName, sortKey string, window Window) (*ConnectionPlan, error) {
	order := q.Order()
	if len(order) == 0 {
		return nil, errors.New("connection query requires an ordering")
	}
	if window.Limit < 0 {
		return nil, inputErrorf("first must be non-negative")
	}

	plan := &ConnectionPlan{
		TypeName: typeName,
		SortKey:  sortKey,
		Order:    order,
		Window:   window,
	}

	sqlOrder := order
	if window.Mode == PaginationModeBackward {
		sqlOrder = reverseOrder(order)
	}

	builder := q.selectWithOrder(sqlOrder)
	if window.HasAfter || window.HasBefore {
		raw := window.After
		if window.HasBefore {
			raw = window.Before
		}
		payload, err := cursor.Decode(raw)
		if err != nil {
			return nil, &InputError{Message: err.Error()}
		}
		if err := payload.Validate(typeName, sortKey, plan.Directions()); err != nil {
			return nil, &InputError{Message: err.Error()}
		}
		builder = builder.Where(SeekCondition(q, sqlOrder, payload.Args()))
	}

	query, args, err := builder.Limit(uint64(window.Limit + 1)).ToSql()
	if err != nil {
		return nil, err
	}
	plan.Root = SQLQuery{SQL: query, Args: args}

	plan.Count, err = q.CountSQL()
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Directions returns the presentation directions encoded into cursors.
func (p *ConnectionPlan) Directions() []string {
	out := make([]string, len(p.Order))
	for i, term := range p.Order {
		out[i] = string(term.Direction)
	}
	return out
}

// Cursor encodes a cursor for a row; value returns the row value of an
// ordering column.
func (p *ConnectionPlan) Cursor(value func(column string) interface{}) string {
	values := make([]interface{}, len(p.Order))
	for i, term := range p.Order {
		values[i] = value(term.Column)
	}
	return cursor.Encode(p.TypeName, p.SortKey, p.Directions(), values...)
}

// PageInfo reports hasNextPage and hasPreviousPage given the number of rows
// the root query returned, and the number of rows that belong to the page.
func (p *ConnectionPlan) PageInfo(fetched int) (hasNext, hasPrev bool, size int) {
	extra := fetched > p.Window.Limit
	size = fetched
	if extra {
		size = p.Window.Limit
	}
	if p.Window.Mode == PaginationModeBackward {
		return p.Window.HasBefore, extra, size
	}
	return extra, p.Window.HasAfter, size
}

// ShapePage trims the look-ahead row and restores presentation order for
// backward pages.
func ShapePage[T any](plan *ConnectionPlan, rows []T) (page []T, hasNext, hasPrev bool) {
	hasNext, hasPrev, size := plan.PageInfo(len(rows))
	page = rows[:size]
	if plan.Window.Mode == PaginationModeBackward {
		reversed := make([]T, len(page))
		for i, row := range page {
			reversed[len(page)-1-i] = row
		}
		page = reversed
	}
	return page, hasNext, hasPrev
}

// SeekCondition builds the lexicographic predicate selecting rows strictly
// after values in the given ordering:
//
//	(c1 op1 v1) OR (c1 = v1 AND c2 op2 v2) OR ...
//
// where op is > for ASC and < for DESC. Mixed directions are supported.
func SeekCondition(q CollectionQuery, order []OrderTerm, values []interface{}) sq.Sqlizer {
	if len(order) == 0 || len(values) != len(order) {
		return nil
	}
	branches := make(sq.Or, 0, len(order))
	for i, term := range order {
		op := " > ?"
		if term.Direction == Desc {
			op = " < ?"
		}
		strict := sq.Expr(q.Column(term.Column)+op, values[i])
		if i == 0 {
			branches = append(branches, strict)
			continue
		}
		conj := make(sq.And, 0, i+1)
		for j := 0; j < i; j++ {
			conj = append(conj, sq.Expr(q.Column(order[j].Column)+" = ?", values[j]))
		}
		conj = append(conj, strict)
		branches = append(branches, conj)
	}
	if len(branches) == 1 {
		return branches[0]
	}
	return branches
}

func reverseOrder(order []OrderTerm) []OrderTerm {
	out := make([]OrderTerm, len(order))
	for i, term := range order {
		out[i] = OrderTerm{Column: term.Column, Direction: term.Direction.Flip()}
	}
	return out
}
