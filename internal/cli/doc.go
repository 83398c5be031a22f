// Package cli implements the rpcq command line: one cobra command per
// facade operation, each running against a client stack built from
// config.Load.
package cli
