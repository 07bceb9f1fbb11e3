// Package sorting turns a client sort request into a deterministic ordering
// of a collection query.
//
// A Registry is static configuration: the public sort fields a listing
// accepts, the storage columns each one orders by, and the tie-break columns
// that make the ordering total. Resolve is pure and safe for concurrent use.
package sorting

import (
	"errors"
	"fmt"
	"strings"

	"warehouse-graphql/internal/planner"
)

// Direction is a requested sort direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// Field maps a public sort field name to storage columns.
type Field struct {
	Name    string
	Columns []string
	// TieBreak overrides the registry tie-break for this field.
	TieBreak []string
}

// Registry is the set of sort fields a listing accepts.
type Registry struct {
	Fields []Field
	// Default orders the listing when no sort is requested. It need not be
	// one of Fields.
	Default Field
	// TieBreak columns are appended ascending after the sort field columns.
	// They must identify a row uniquely.
	TieBreak []string
}

// Spec is a client sort request. A nil *Spec means no preference.
type Spec struct {
	Field     string
	Direction Direction
}

// InvalidSortFieldError reports a sort field outside the registry.
type InvalidSortFieldError struct {
	Field   string
	Allowed []string
}

func (e *InvalidSortFieldError) Error() string {
	return fmt.Sprintf("invalid sort field %q: expected one of %s", e.Field, strings.Join(e.Allowed, ", "))
}

// Extensions exposes a GraphQL error code.
func (e *InvalidSortFieldError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "BAD_USER_INPUT", "field": "sortBy"}
}

// InvalidSortDirectionError reports a direction other than ASC or DESC.
type InvalidSortDirectionError struct {
	Direction string
}

func (e *InvalidSortDirectionError) Error() string {
	return fmt.Sprintf("invalid sort direction %q: expected ASC or DESC", e.Direction)
}

// Extensions exposes a GraphQL error code.
func (e *InvalidSortDirectionError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "BAD_USER_INPUT", "field": "sortBy"}
}

// Resolve returns q ordered by spec, or by the registry default when spec is
// nil. Tie-break columns are appended ascending unless the ordering already
// contains them. The result replaces any ordering q carries, so resolving an
// already resolved query with the same spec yields the same ordering.
func Resolve(q planner.CollectionQuery, spec *Spec, reg Registry) (planner.CollectionQuery, error) {
	terms, err := Terms(spec, reg)
	if err != nil {
		return planner.CollectionQuery{}, err
	}
	return q.Ordered(terms...), nil
}

// Terms computes the ordering Resolve applies.
func Terms(spec *Spec, reg Registry) ([]planner.OrderTerm, error) {
	field := reg.Default
	direction := planner.Asc
	if spec != nil {
		found, ok := reg.Lookup(spec.Field)
		if !ok {
			return nil, &InvalidSortFieldError{Field: spec.Field, Allowed: reg.Names()}
		}
		switch Direction(strings.ToUpper(string(spec.Direction))) {
		case Asc:
			direction = planner.Asc
		case Desc:
			direction = planner.Desc
		default:
			return nil, &InvalidSortDirectionError{Direction: string(spec.Direction)}
		}
		field = found
	}

	tieBreak := reg.TieBreak
	if len(field.TieBreak) > 0 {
		tieBreak = field.TieBreak
	}

	terms := make([]planner.OrderTerm, 0, len(field.Columns)+len(tieBreak))
	seen := make(map[string]struct{}, cap(terms))
	for _, col := range field.Columns {
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		terms = append(terms, planner.OrderTerm{Column: col, Direction: direction})
	}
	for _, col := range tieBreak {
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		terms = append(terms, planner.OrderTerm{Column: col, Direction: planner.Asc})
	}
	return terms, nil
}

// Key names the ordering for cursor binding: the requested field, or the
// default field name.
func Key(spec *Spec, reg Registry) string {
	if spec != nil {
		return spec.Field
	}
	return reg.Default.Name
}

// Lookup finds a field by public name.
func (r Registry) Lookup(name string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names lists the public field names in registry order.
func (r Registry) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// Validate checks the registry is usable: named fields with columns, unique
// names, a default, and a tie-break.
func (r Registry) Validate() error {
	var errs []error
	if len(r.TieBreak) == 0 {
		errs = append(errs, errors.New("registry tie-break cannot be empty"))
	}
	if r.Default.Name == "" || len(r.Default.Columns) == 0 {
		errs = append(errs, errors.New("registry default must have a name and columns"))
	}
	seen := make(map[string]struct{}, len(r.Fields))
	for i, f := range r.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("field %d has no name", i))
			continue
		}
		if _, dup := seen[f.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate sort field %s", f.Name))
		}
		seen[f.Name] = struct{}{}
		if len(f.Columns) == 0 {
			errs = append(errs, fmt.Errorf("sort field %s has no columns", f.Name))
		}
	}
	return errors.Join(errs...)
}

// MustValidate panics if the registry is invalid. It is meant for
// package-level registry declarations.
func (r Registry) MustValidate() Registry {
	if err := r.Validate(); err != nil {
		panic(err)
	}
	return r
}
