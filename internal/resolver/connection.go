package resolver

import (
	"context"
	"sync"

	"github.com/graphql-go/graphql"
	"github.com/jinzhu/inflection"

	"warehouse-graphql/internal/inventory"
	"warehouse-graphql/internal/observability"
	"warehouse-graphql/internal/planner"
)

type pageInfo struct {
	HasNextPage     bool
	HasPreviousPage bool
	StartCursor     string
	EndCursor       string
}

type edge struct {
	Cursor string
	Node   interface{}
}

// sortValuer is implemented by rows that can report their value for a
// sort column, which is what cursors are built from.
type sortValuer interface {
	SortValue(column string) interface{}
}

// connectionResult holds the data needed to resolve connection fields.
type connectionResult struct {
	edges    []*edge
	pageInfo *pageInfo
	plan     *planner.ConnectionPlan
	store    *inventory.Store
	countCtx context.Context
	// totalCount is lazily computed
	totalCountVal *int
	totalCountMu  sync.Mutex
}

func (cr *connectionResult) totalCount() (int, error) {
	cr.totalCountMu.Lock()
	defer cr.totalCountMu.Unlock()

	if cr.totalCountVal != nil {
		return *cr.totalCountVal, nil
	}
	if cr.plan == nil || cr.store == nil || cr.plan.Count.SQL == "" {
		count := 0
		cr.totalCountVal = &count
		return count, nil
	}

	count, err := cr.store.Count(cr.countCtx, cr.plan.Count)
	if err != nil {
		return 0, err
	}
	cr.totalCountVal = &count
	return count, nil
}

// buildConnectionResult shapes a fetched page into edges and page info.
func buildConnectionResult[T sortValuer](ctx context.Context, store *inventory.Store, plan *planner.ConnectionPlan, rows []T) *connectionResult {
	page, hasNext, hasPrev := planner.ShapePage(plan, rows)

	edges := make([]*edge, len(page))
	for i := range page {
		edges[i] = &edge{
			Cursor: plan.Cursor(page[i].SortValue),
			Node:   &page[i],
		}
	}

	observability.GraphQLMetricsFromContext(ctx).RecordConnectionPage(ctx, plan.TypeName, len(edges))

	info := &pageInfo{HasNextPage: hasNext, HasPreviousPage: hasPrev}
	if len(edges) > 0 {
		info.StartCursor = edges[0].Cursor
		info.EndCursor = edges[len(edges)-1].Cursor
	}

	// totalCount resolves after the page; it must survive cancellation of
	// the request context once rows are materialized.
	return &connectionResult{
		edges:    edges,
		pageInfo: info,
		plan:     plan,
		store:    store,
		countCtx: context.WithoutCancel(ctx),
	}
}

// connectionType builds the countable connection and edge types for a node
// type, named after the type's plural form.
func (r *Resolver) connectionType(t *schemaTypes, node *graphql.Object) *graphql.Object {
	edgeType := graphql.NewObject(graphql.ObjectConfig{
		Name: node.Name() + "CountableEdge",
		Fields: graphql.Fields{
			"cursor": &graphql.Field{Type: graphql.NewNonNull(graphql.String), Resolve: field(func(e *edge) interface{} { return e.Cursor })},
			"node":   &graphql.Field{Type: graphql.NewNonNull(node), Resolve: field(func(e *edge) interface{} { return e.Node })},
		},
	})

	return graphql.NewObject(graphql.ObjectConfig{
		Name:        node.Name() + "CountableConnection",
		Description: "A page of " + inflection.Plural(node.Name()) + ".",
		Fields: graphql.Fields{
			"edges": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(edgeType))),
				Resolve: field(func(cr *connectionResult) interface{} { return cr.edges }),
			},
			"pageInfo": &graphql.Field{
				Type:    graphql.NewNonNull(t.pageInfo),
				Resolve: field(func(cr *connectionResult) interface{} { return cr.pageInfo }),
			},
			"totalCount": &graphql.Field{
				Type:        graphql.Int,
				Description: "A total count of items in the collection.",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cr, ok := p.Source.(*connectionResult)
					if !ok {
						return nil, nil
					}
					return cr.totalCount()
				},
			},
		},
	})
}
