// Package config loads client configuration from defaults, a YAML file and
// RPCQ_* environment variables, and turns it into the policy, telemetry,
// credential and transport values the other packages take.
//
// String values that carry secrets may be written as ${VAR},
// secretref:env:NAME or secretref:file:/path and are expanded by a Resolver.
package config
