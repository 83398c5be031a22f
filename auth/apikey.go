package auth

import (
	"context"
	"net/http"
	"strings"
)

// Provider supplies the credential headers of one request.
type Provider interface {
	Headers(ctx context.Context) (http.Header, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (http.Header, error)

// Headers calls f.
func (f ProviderFunc) Headers(ctx context.Context) (http.Header, error) { return f(ctx) }

// APIKeyConfig configures the API key provider.
type APIKeyConfig struct {
	// Key is the API key sent with every request.
	Key string

	// HeaderName is the header carrying the key.
	// Default: "X-API-Key"
	HeaderName string
}

// APIKeyProvider sends a fixed API key.
type APIKeyProvider struct {
	config APIKeyConfig
}

// NewAPIKeyProvider creates an API key provider.
func NewAPIKeyProvider(config APIKeyConfig) (*APIKeyProvider, error) {
	if strings.TrimSpace(config.Key) == "" {
		return nil, ErrMissingCredentials
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKeyProvider{config: config}, nil
}

// Name returns "api_key".
func (p *APIKeyProvider) Name() string { return "api_key" }

// Headers returns the key header.
func (p *APIKeyProvider) Headers(context.Context) (http.Header, error) {
	h := make(http.Header, 1)
	h.Set(p.config.HeaderName, p.config.Key)
	return h, nil
}

// BearerProvider sends a fixed bearer token.
type BearerProvider struct {
	token string
}

// NewBearerProvider creates a provider for a pre-issued token.
func NewBearerProvider(token string) (*BearerProvider, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredentials
	}
	return &BearerProvider{token: token}, nil
}

// Name returns "bearer".
func (p *BearerProvider) Name() string { return "bearer" }

// Headers returns the Authorization header.
func (p *BearerProvider) Headers(context.Context) (http.Header, error) {
	h := make(http.Header, 1)
	h.Set("Authorization", "Bearer "+p.token)
	return h, nil
}
