package gqlrequest

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
)

// Analysis is the parsed view of one GraphQL request.
type Analysis struct {
	Envelope               Envelope
	RequestedOperationName string

	Document  *ast.Document
	Fragments map[string]*ast.FragmentDefinition
	Operation *ast.OperationDefinition

	OperationName string
	OperationType string
	// RootFields lists the top-level fields of the selected operation in
	// document order, e.g. "createWarehouse" or "stocks".
	RootFields []string

	FieldCount     int
	SelectionDepth int
	VariableCount  int

	CanonicalOperation string
	OperationHash      string

	DecodeError     error
	ParseError      error
	SelectionError  error
	CanonicalizeErr error
}

// DepthError reports a selection nested deeper than allowed.
type DepthError struct {
	Depth int
	Max   int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("query depth %d exceeds the maximum of %d", e.Depth, e.Max)
}

// AnalyzeRequest decodes r and analyzes its payload.
func AnalyzeRequest(r *http.Request) *Analysis {
	env, err := DecodeEnvelope(r)
	analysis := AnalyzeEnvelope(env)
	analysis.DecodeError = err
	return analysis
}

// AnalyzeEnvelope parses env and selects the operation to run.
func AnalyzeEnvelope(env Envelope) *Analysis {
	a := &Analysis{
		Envelope:               env,
		RequestedOperationName: env.OperationName,
		Fragments:              map[string]*ast.FragmentDefinition{},
	}
	if strings.TrimSpace(env.Query) == "" {
		return a
	}

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(env.Query), Name: "graphql"}),
	})
	if err != nil {
		a.ParseError = err
		return a
	}
	a.Document = doc
	a.Fragments = fragmentsByName(doc)

	op, err := selectOperation(doc, env.OperationName)
	if err != nil {
		a.SelectionError = err
		return a
	}
	a.Operation = op
	a.OperationName = effectiveOperationName(op)
	a.OperationType = op.Operation
	a.VariableCount = len(op.VariableDefinitions)
	a.RootFields = rootFieldNames(op.SelectionSet, a.Fragments)
	a.FieldCount, a.SelectionDepth = countFieldsAndDepth(op.SelectionSet, a.Fragments, 1, map[string]bool{}, map[string]bool{})

	a.CanonicalOperation, a.OperationHash, a.CanonicalizeErr = canonicalOperationAndHash(op, a.Fragments)
	return a
}

// IsMutation reports whether the selected operation is a mutation.
func (a *Analysis) IsMutation() bool {
	return a != nil && a.OperationType == ast.OperationTypeMutation
}

// CheckDepth returns a DepthError when the selection is deeper than max.
// A non-positive max disables the check.
func (a *Analysis) CheckDepth(max int) error {
	if a == nil || max <= 0 || a.SelectionDepth <= max {
		return nil
	}
	return &DepthError{Depth: a.SelectionDepth, Max: max}
}

// Err returns the first decode or parse failure, if any.
func (a *Analysis) Err() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.DecodeError, a.ParseError)
}

func fragmentsByName(doc *ast.Document) map[string]*ast.FragmentDefinition {
	fragments := map[string]*ast.FragmentDefinition{}
	for _, def := range doc.Definitions {
		if f, ok := def.(*ast.FragmentDefinition); ok && f.Name != nil && f.Name.Value != "" {
			fragments[f.Name.Value] = f
		}
	}
	return fragments
}

func selectOperation(doc *ast.Document, name string) (*ast.OperationDefinition, error) {
	var ops []*ast.OperationDefinition
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok && op != nil {
			ops = append(ops, op)
		}
	}

	if name != "" {
		for _, op := range ops {
			if op.Name != nil && op.Name.Value == name {
				return op, nil
			}
		}
		return nil, fmt.Errorf("unknown operation named %q", name)
	}
	switch len(ops) {
	case 0:
		return nil, errors.New("request does not include an operation")
	case 1:
		return ops[0], nil
	default:
		return nil, errors.New("operationName is required when request has multiple operations")
	}
}

func rootFieldNames(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(*ast.SelectionSet)
	walk = func(set *ast.SelectionSet) {
		if set == nil {
			return
		}
		for _, selection := range set.Selections {
			switch sel := selection.(type) {
			case *ast.Field:
				if sel.Name != nil {
					names = append(names, sel.Name.Value)
				}
			case *ast.InlineFragment:
				walk(sel.SelectionSet)
			case *ast.FragmentSpread:
				if sel.Name == nil || seen[sel.Name.Value] {
					continue
				}
				seen[sel.Name.Value] = true
				if f, ok := fragments[sel.Name.Value]; ok {
					walk(f.SelectionSet)
				}
			}
		}
	}
	walk(set)
	return names
}

// countFieldsAndDepth walks a selection set. Fragment spreads are expanded
// once each, so cyclic fragments terminate.
func countFieldsAndDepth(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, depth int, visited, inFlight map[string]bool) (fields, maxDepth int) {
	if set == nil {
		return 0, depth - 1
	}
	maxDepth = depth
	merge := func(f, d int) {
		fields += f
		if d > maxDepth {
			maxDepth = d
		}
	}

	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			fields++
			if sel.SelectionSet != nil {
				merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth+1, visited, inFlight))
			}
		case *ast.InlineFragment:
			merge(countFieldsAndDepth(sel.SelectionSet, fragments, depth, visited, inFlight))
		case *ast.FragmentSpread:
			if sel.Name == nil {
				continue
			}
			name := sel.Name.Value
			if name == "" || inFlight[name] || visited[name] {
				continue
			}
			inFlight[name] = true
			visited[name] = true
			if f, ok := fragments[name]; ok {
				merge(countFieldsAndDepth(f.SelectionSet, fragments, depth, visited, inFlight))
			}
			delete(inFlight, name)
		}
	}
	return fields, maxDepth
}
