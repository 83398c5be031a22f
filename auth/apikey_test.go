package auth

import (
	"context"
	"errors"
	"testing"
)

func TestNewAPIKeyProvider(t *testing.T) {
	if _, err := NewAPIKeyProvider(APIKeyConfig{Key: "  "}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewAPIKeyProvider(blank) error = %v, want ErrMissingCredentials", err)
	}
}

func TestAPIKeyProvider_Headers(t *testing.T) {
	tests := []struct {
		name       string
		config     APIKeyConfig
		wantHeader string
	}{
		{"default header", APIKeyConfig{Key: "sk_live_abc"}, "X-API-Key"},
		{"custom header", APIKeyConfig{Key: "sk_live_abc", HeaderName: "X-Custom-Key"}, "X-Custom-Key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewAPIKeyProvider(tt.config)
			if err != nil {
				t.Fatal(err)
			}
			h, err := p.Headers(context.Background())
			if err != nil {
				t.Fatalf("Headers() error = %v", err)
			}
			if got := h.Get(tt.wantHeader); got != "sk_live_abc" {
				t.Errorf("%s = %q, want sk_live_abc", tt.wantHeader, got)
			}
		})
	}
}

func TestBearerProvider_Headers(t *testing.T) {
	if _, err := NewBearerProvider(""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewBearerProvider(\"\") error = %v", err)
	}
	p, err := NewBearerProvider(" tok ")
	if err != nil {
		t.Fatal(err)
	}
	h, _ := p.Headers(context.Background())
	if got := h.Get("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok")
	}
}
