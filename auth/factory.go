package auth

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ProviderFactory creates a provider from string options.
type ProviderFactory func(opts map[string]string) (Provider, error)

// Registry manages provider factories by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds a factory.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	if name == "" || factory == nil {
		return ErrInvalidProvider
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q already registered", ErrInvalidProvider, name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a provider by name. The name "none" yields nil.
func (r *Registry) Create(name string, opts map[string]string) (Provider, error) {
	if name == "" || name == "none" {
		return nil, nil
	}

	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return factory(opts)
}

// List returns registered names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in providers: api_key, bearer and jwt.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("api_key", func(opts map[string]string) (Provider, error) {
		return NewAPIKeyProvider(APIKeyConfig{Key: opts["key"], HeaderName: opts["header_name"]})
	})

	_ = DefaultRegistry.Register("bearer", func(opts map[string]string) (Provider, error) {
		return NewBearerProvider(opts["token"])
	})

	_ = DefaultRegistry.Register("jwt", func(opts map[string]string) (Provider, error) {
		config := JWTConfig{
			Secret:      []byte(opts["secret"]),
			KeyID:       opts["key_id"],
			Issuer:      opts["issuer"],
			Subject:     opts["subject"],
			Audience:    opts["audience"],
			HeaderName:  opts["header_name"],
			TokenPrefix: opts["token_prefix"],
		}
		for _, d := range []struct {
			key string
			dst *time.Duration
		}{{"ttl", &config.TTL}, {"refresh_before", &config.RefreshBefore}} {
			raw, ok := opts[d.key]
			if !ok {
				continue
			}
			v, err := time.ParseDuration(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("auth: jwt %s: %w", d.key, err)
			}
			*d.dst = v
		}
		return NewJWTProvider(config)
	})
}
