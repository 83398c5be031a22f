// Package query binds an rpc.Client to a cache.Store.
//
// Every procedure read goes through a cache entry keyed by
// [path, input, kind], where kind is one of cache.KindQuery,
// cache.KindInfiniteQuery or cache.KindLiveQuery. The Use* constructors
// return observers that stay subscribed to their entry until Close:
//
//	f, _ := query.New(client, cache.NewStore(query.DefaultPolicy()))
//	q, _ := query.UseQuery[int, int](ctx, f, "num", 21, query.QueryOptions[int]{})
//	defer q.Close()
//	r, _ := q.WaitFor(ctx, func(r query.Result[int]) bool { return r.HasData })
//
// Live queries poll a subscription procedure with a server-issued cursor.
// Infinite queries page through a query procedure by merging the page
// parameter into the input as "cursor". SSR prefetches call procedures
// in-process, and Dehydrate/Hydrate move the resulting cache to a client.
package query
