package auth

import (
	"context"
	"testing"
)

// BenchmarkJWTProvider_CachedToken measures the cached-token path.
func BenchmarkJWTProvider_CachedToken(b *testing.B) {
	p, err := NewJWTProvider(JWTConfig{Secret: []byte("bench-secret")})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	_, _ = p.Token(ctx)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Headers(ctx)
	}
}

// BenchmarkJWTProvider_Sign measures signing a fresh token.
func BenchmarkJWTProvider_Sign(b *testing.B) {
	p, err := NewJWTProvider(JWTConfig{Secret: []byte("bench-secret")})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.sign()
	}
}
