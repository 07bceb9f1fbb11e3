package resolver

import (
	"context"

	"warehouse-graphql/internal/dbexec"
	"warehouse-graphql/internal/inventory"
)

// queryExecutorForContext returns the active mutation transaction when present,
// otherwise the resolver's pooled executor.
func (r *Resolver) queryExecutorForContext(ctx context.Context) dbexec.QueryExecutor {
	if mc := MutationContextFromContext(ctx); mc != nil && mc.Tx() != nil {
		return mc.Tx()
	}
	return r.executor
}

// StoreForContext returns an inventory store bound to the request's executor.
// Inside a mutation it reads through the transaction.
func (r *Resolver) StoreForContext(ctx context.Context) *inventory.Store {
	return inventory.NewStore(r.queryExecutorForContext(ctx))
}
