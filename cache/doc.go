// Package cache provides the key-addressed query cache used by the query
// facade.
//
// A Store maps structural keys ([path, input, kind]) to fetch results with
// freshness, invalidation, retry and garbage collection. Observers keep an
// entry populated while they are open and signal changes on a channel.
// Dehydrate and Hydrate move the cache contents between processes.
package cache
