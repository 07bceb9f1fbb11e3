package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalOperationAndHash prints the selected operation followed by the
// fragments it references, sorted by name, and hashes the result together
// with the operation name. Whitespace and comments do not affect the hash.
func canonicalOperationAndHash(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}

	used := map[string]bool{}
	collectFragments(op.SelectionSet, fragments, used)
	names := make([]string, 0, len(used))
	for name := range used {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := []ast.Node{op}
	for _, name := range names {
		f, ok := fragments[name]
		if !ok {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		defs = append(defs, f)
	}

	printed, ok := printer.Print(ast.NewDocument(&ast.Document{Definitions: defs})).(string)
	if !ok {
		return "", "", fmt.Errorf("canonical document did not print as a string")
	}
	return printed, framedSHA256(printed, effectiveOperationName(op)), nil
}

func collectFragments(set *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, used map[string]bool) {
	if set == nil {
		return
	}
	for _, selection := range set.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.InlineFragment:
			collectFragments(sel.SelectionSet, fragments, used)
		case *ast.FragmentSpread:
			if sel.Name == nil || sel.Name.Value == "" || used[sel.Name.Value] {
				continue
			}
			used[sel.Name.Value] = true
			if f, ok := fragments[sel.Name.Value]; ok {
				collectFragments(f.SelectionSet, fragments, used)
			}
		}
	}
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 length-prefixes each part so ("ab","c") and ("a","bc") differ.
func framedSHA256(parts ...string) string {
	h := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
