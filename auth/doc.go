// Package auth provides credentials for outgoing procedure calls.
//
// Every provider implements rpc.HeaderSource: it returns the headers to set
// on a request. API keys and static bearer tokens are returned as given;
// JWTProvider signs short-lived HS256 tokens and reuses them until they are
// close to expiry. Providers are built by name through a Registry so the
// configuration layer can select one without importing each type.
package auth
