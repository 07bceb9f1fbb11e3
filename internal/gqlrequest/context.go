package gqlrequest

import "context"

type analysisContextKey struct{}
type execMetaContextKey struct{}

// ExecMeta is the per-request summary shared by logs, spans and metrics.
type ExecMeta struct {
	Subject     string
	AuthMethod  string
	Permissions []string

	OperationName string
	OperationType string
	OperationHash string
}

// WithAnalysis stores the request analysis in ctx.
func WithAnalysis(ctx context.Context, analysis *Analysis) context.Context {
	return context.WithValue(ctx, analysisContextKey{}, analysis)
}

// AnalysisFromContext returns the request analysis, or nil.
func AnalysisFromContext(ctx context.Context) *Analysis {
	analysis, _ := ctx.Value(analysisContextKey{}).(*Analysis)
	return analysis
}

// WithExecMeta stores meta in ctx.
func WithExecMeta(ctx context.Context, meta ExecMeta) context.Context {
	return context.WithValue(ctx, execMetaContextKey{}, meta)
}

// ExecMetaFromContext returns the request summary.
func ExecMetaFromContext(ctx context.Context) (ExecMeta, bool) {
	meta, ok := ctx.Value(execMetaContextKey{}).(ExecMeta)
	return meta, ok
}
