package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testSecret = []byte("test-secret-key-for-signing")

func TestNewJWTProvider(t *testing.T) {
	if _, err := NewJWTProvider(JWTConfig{}); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("NewJWTProvider(no secret) error = %v, want ErrKeyNotFound", err)
	}
	p, err := NewJWTProvider(JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatal(err)
	}
	if p.config.TTL != 5*time.Minute || p.config.RefreshBefore != 30*time.Second {
		t.Errorf("defaults = %v / %v", p.config.TTL, p.config.RefreshBefore)
	}
	if p.Name() != "jwt" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestJWTProvider_SignsVerifiableToken(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{
		Secret:   testSecret,
		KeyID:    "k1",
		Issuer:   "https://example.com",
		Subject:  "svc-reporting",
		Audience: "rpc",
		Claims:   map[string]any{"roles": []string{"reader"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	h, err := p.Headers(context.Background())
	if err != nil {
		t.Fatalf("Headers() error = %v", err)
	}
	raw, ok := strings.CutPrefix(h.Get("Authorization"), "Bearer ")
	if !ok {
		t.Fatalf("Authorization = %q", h.Get("Authorization"))
	}

	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return testSecret, nil },
		jwt.WithIssuer("https://example.com"), jwt.WithAudience("rpc"), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("jwt.Parse() error = %v", err)
	}
	claims := tok.Claims.(jwt.MapClaims)
	if claims["sub"] != "svc-reporting" || claims["jti"] == "" {
		t.Errorf("claims = %v", claims)
	}
	if tok.Header["kid"] != "k1" {
		t.Errorf("kid = %v", tok.Header["kid"])
	}
}

func TestJWTProvider_CachesUntilRefresh(t *testing.T) {
	clock := &testClock{now: time.Now()}
	p, err := NewJWTProvider(JWTConfig{Secret: testSecret, TTL: time.Minute, RefreshBefore: 10 * time.Second}, WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	first, err := p.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(30 * time.Second)
	if again, _ := p.Token(ctx); again != first {
		t.Error("token re-signed before the refresh window")
	}

	clock.Advance(25 * time.Second)
	renewed, err := p.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if renewed == first {
		t.Error("token not renewed inside the refresh window")
	}
}

func TestJWTProvider_ConcurrentCallersShareToken(t *testing.T) {
	p, err := NewJWTProvider(JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatal(err)
	}

	const n = 16
	tokens := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], _ = p.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("token %d differs from token 0", i)
		}
	}
}
