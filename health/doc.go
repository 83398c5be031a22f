// Package health reports whether the client stack can reach its procedures.
//
// A Checker inspects one component and returns a Result whose Status is
// Healthy, Degraded or Unhealthy. The checkers here cover the client side:
// a probe procedure call, the transport circuit breaker and the cache size.
// An Aggregator runs several checkers under one deadline and folds their
// results into an overall status.
//
//	agg := health.NewAggregator()
//	agg.Register("endpoint", health.NewProcedureChecker(client, "health.ping"))
//	agg.Register("breaker", health.NewBreakerChecker(client.Breaker()))
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
package health
