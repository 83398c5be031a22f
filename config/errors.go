package config

import "errors"

var (
	ErrInvalidConfig   = errors.New("config: invalid configuration")
	ErrInvalidFile     = errors.New("config: invalid file")
	ErrMissingEndpoint = errors.New("config: endpoint is required")
	ErrMissingEnv      = errors.New("config: missing required environment variables")
	ErrUnknownSecret   = errors.New("config: secret provider is not registered")
	ErrEmptySecret     = errors.New("config: secret resolved to an empty value")
)
