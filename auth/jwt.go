package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// JWTConfig configures the JWT provider.
type JWTConfig struct {
	// Secret is the HS256 signing key.
	Secret []byte

	// KeyID is set as the kid header when non-empty.
	KeyID string

	// Issuer, Subject and Audience set the iss, sub and aud claims.
	Issuer   string
	Subject  string
	Audience string

	// Claims are extra claims merged into every token.
	Claims map[string]any

	// TTL is the token lifetime.
	// Default: 5m
	TTL time.Duration

	// RefreshBefore renews a cached token this long before it expires.
	// Default: 30s
	RefreshBefore time.Duration

	// HeaderName is the header carrying the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is written before the token.
	// Default: "Bearer "
	TokenPrefix string
}

// JWTProvider signs short-lived tokens and caches them until RefreshBefore
// their expiry. Concurrent callers share one signing operation.
type JWTProvider struct {
	config JWTConfig
	now    func() time.Time
	group  singleflight.Group

	mu      sync.Mutex
	token   string
	expires time.Time
}

// JWTOption configures a JWTProvider.
type JWTOption func(*JWTProvider)

// WithClock sets the time source used for claims and expiry.
func WithClock(now func() time.Time) JWTOption {
	return func(p *JWTProvider) { p.now = now }
}

// NewJWTProvider creates a JWT provider.
func NewJWTProvider(config JWTConfig, opts ...JWTOption) (*JWTProvider, error) {
	if len(config.Secret) == 0 {
		return nil, ErrKeyNotFound
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.RefreshBefore <= 0 {
		config.RefreshBefore = 30 * time.Second
	}
	if config.RefreshBefore >= config.TTL {
		config.RefreshBefore = config.TTL / 2
	}
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}

	p := &JWTProvider{config: config, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Name returns "jwt".
func (p *JWTProvider) Name() string { return "jwt" }

// Token returns a valid token, signing a new one when the cached token is
// missing or due for renewal.
func (p *JWTProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.token != "" && p.now().Add(p.config.RefreshBefore).Before(p.expires) {
		tok := p.token
		p.mu.Unlock()
		return tok, nil
	}
	p.mu.Unlock()

	ch := p.group.DoChan("sign", func() (any, error) {
		return p.sign()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *JWTProvider) sign() (string, error) {
	now := p.now()
	exp := now.Add(p.config.TTL)

	claims := jwt.MapClaims{}
	for k, v := range p.config.Claims {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["nbf"] = now.Unix()
	claims["exp"] = exp.Unix()
	claims["jti"] = uuid.NewString()
	if p.config.Issuer != "" {
		claims["iss"] = p.config.Issuer
	}
	if p.config.Subject != "" {
		claims["sub"] = p.config.Subject
	}
	if p.config.Audience != "" {
		claims["aud"] = p.config.Audience
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if p.config.KeyID != "" {
		tok.Header["kid"] = p.config.KeyID
	}
	signed, err := tok.SignedString(p.config.Secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	p.mu.Lock()
	p.token, p.expires = signed, exp
	p.mu.Unlock()
	return signed, nil
}

// Headers returns the token header.
func (p *JWTProvider) Headers(ctx context.Context) (http.Header, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return nil, err
	}
	h := make(http.Header, 1)
	h.Set(p.config.HeaderName, p.config.TokenPrefix+tok)
	return h, nil
}
