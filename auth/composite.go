package auth

import (
	"context"
	"net/http"
)

// CompositeProvider merges the headers of several providers. Later
// providers override earlier ones for the same header.
type CompositeProvider struct {
	Providers []Provider
}

// NewCompositeProvider creates a composite provider.
func NewCompositeProvider(providers ...Provider) *CompositeProvider {
	return &CompositeProvider{Providers: providers}
}

// Name returns "composite".
func (c *CompositeProvider) Name() string { return "composite" }

// Headers collects headers from every provider. The first error is returned.
func (c *CompositeProvider) Headers(ctx context.Context) (http.Header, error) {
	out := make(http.Header)
	for _, p := range c.Providers {
		if p == nil {
			continue
		}
		h, err := p.Headers(ctx)
		if err != nil {
			return nil, err
		}
		for k, v := range h {
			out[k] = append([]string(nil), v...)
		}
	}
	return out, nil
}
