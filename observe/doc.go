// Package observe provides observability primitives for remote procedure
// calls made through the query facade.
//
// It is a pure instrumentation library: spans, metrics and structured logs
// keyed by ProcedureMeta. The facade wraps every query, mutation and
// subscription poll with a Middleware, and the cache store reports lookups
// through Metrics.
package observe
