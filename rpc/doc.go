// Package rpc defines the procedure-call contract consumed by the query
// facade.
//
// A Client issues queries, mutations and one-shot subscription polls and
// returns a cancellable Call. Values cross the boundary as bytes produced by
// a Transformer. Failed calls resolve with a *ClientError carrying the
// procedure path, an error Code and the HTTP status.
//
// Implementations provided here:
//
//   - HTTPClient speaks a JSON envelope protocol over HTTP.
//   - LocalClient runs calls on an in-process Caller.
//   - Router is a small procedure table whose CreateCaller method yields a
//     Caller for server-side prefetching. It also serves HTTPClient
//     requests through ServeHTTP.
package rpc
