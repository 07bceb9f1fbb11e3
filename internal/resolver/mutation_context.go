package resolver

import (
	"context"
	"sync"

	"warehouse-graphql/internal/dbexec"
)

type mutationContextKey struct{}

// MutationContext carries the transaction shared by every mutation field of a
// single operation. Fields run serially under graphql-go, but Finalize may race
// a panicking field, so state is guarded.
type MutationContext struct {
	tx dbexec.TxExecutor

	mu       sync.Mutex
	failures []string
	aborted  bool
	done     bool
}

// NewMutationContext wraps an open transaction.
func NewMutationContext(tx dbexec.TxExecutor) *MutationContext {
	return &MutationContext{tx: tx}
}

// Tx returns the operation's transaction.
func (mc *MutationContext) Tx() dbexec.TxExecutor {
	return mc.tx
}

// MarkError forces a rollback without naming a mutation.
func (mc *MutationContext) MarkError() {
	mc.mu.Lock()
	mc.aborted = true
	mc.mu.Unlock()
}

func (mc *MutationContext) markFailed(mutation string) {
	mc.mu.Lock()
	mc.failures = append(mc.failures, mutation)
	mc.mu.Unlock()
}

// Failed reports whether the transaction will roll back.
func (mc *MutationContext) Failed() bool {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.aborted || len(mc.failures) > 0
}

// Failures lists the mutations that reported errors, in execution order.
func (mc *MutationContext) Failures() []string {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]string(nil), mc.failures...)
}

// Finalize commits, or rolls back when anything failed. Only the first call
// touches the transaction.
func (mc *MutationContext) Finalize() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.done {
		return nil
	}
	mc.done = true
	if mc.aborted || len(mc.failures) > 0 {
		return mc.tx.Rollback()
	}
	return mc.tx.Commit()
}

// WithMutationContext stores mc on ctx.
func WithMutationContext(ctx context.Context, mc *MutationContext) context.Context {
	return context.WithValue(ctx, mutationContextKey{}, mc)
}

// MutationContextFromContext returns the operation's MutationContext, or nil
// outside a mutation.
func MutationContextFromContext(ctx context.Context) *MutationContext {
	if ctx == nil {
		return nil
	}
	mc, _ := ctx.Value(mutationContextKey{}).(*MutationContext)
	return mc
}
