package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestCompositeProvider_MergesHeaders(t *testing.T) {
	key, _ := NewAPIKeyProvider(APIKeyConfig{Key: "k"})
	bearer, _ := NewBearerProvider("first")
	override := ProviderFunc(func(context.Context) (http.Header, error) {
		return http.Header{"Authorization": {"Bearer second"}}, nil
	})

	h, err := NewCompositeProvider(key, bearer, nil, override).Headers(context.Background())
	if err != nil {
		t.Fatalf("Headers() error = %v", err)
	}
	if h.Get("X-API-Key") != "k" {
		t.Errorf("X-API-Key = %q", h.Get("X-API-Key"))
	}
	if h.Get("Authorization") != "Bearer second" {
		t.Errorf("Authorization = %q, want the later provider's value", h.Get("Authorization"))
	}
}

func TestCompositeProvider_PropagatesError(t *testing.T) {
	boom := errors.New("vault sealed")
	failing := ProviderFunc(func(context.Context) (http.Header, error) { return nil, boom })

	if _, err := NewCompositeProvider(failing).Headers(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Headers() error = %v, want %v", err, boom)
	}
}
