package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind tags distinguish cache entries that share a path and input.
const (
	KindQuery         = "TRPC_QUERY"
	KindInfiniteQuery = "TRPC_INFINITE_QUERY"
	KindLiveQuery     = "TRPC_LIVE_QUERY"
)

// MaxKeyLength is the maximum length of a key's canonical form.
const MaxKeyLength = 64 << 10

// Key is an ordered cache key, conventionally [path, input, kind].
// Two keys are equal iff their canonical JSON forms are equal: map entries
// compare regardless of insertion order, slices compare in order.
type Key []any

// NewKey builds the [path, input, kind] key.
func NewKey(path string, input any, kind string) Key {
	return Key{path, input, kind}
}

// Path returns the leading procedure path, or "" if the key has none.
func (k Key) Path() string {
	if len(k) == 0 {
		return ""
	}
	p, _ := k[0].(string)
	return p
}

// Hash returns the canonical JSON form of k. It is stable across processes
// and is the identity used by the Store.
func (k Key) Hash() (string, error) {
	b, err := canonicalize([]any(k))
	if err != nil {
		return "", fmt.Errorf("cache: failed to canonicalize key: %w", err)
	}
	return string(b), nil
}

// Equal reports structural equality.
func (k Key) Equal(other Key) bool {
	a, errA := k.Hash()
	b, errB := other.Hash()
	return errA == nil && errB == nil && a == b
}

// HasPrefix reports whether the first len(prefix) elements of k equal
// prefix element-wise.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		a, errA := canonicalize(k[i])
		b, errB := canonicalize(prefix[i])
		if errA != nil || errB != nil || !bytes.Equal(a, b) {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes numbers as json.Number so keys read back from a
// snapshot hash exactly like the originals.
func (k *Key) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return err
	}
	*k = elems
	return nil
}

// ValidateKey checks that k has a non-empty path and a bounded canonical form.
func ValidateKey(k Key) error {
	path := k.Path()
	if strings.TrimSpace(path) == "" || strings.ContainsAny(path, "\n\r") {
		return ErrInvalidKey
	}
	h, err := k.Hash()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(h) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// canonicalize produces a deterministic JSON representation of v. Typed
// values are first normalized to their generic JSON shape so a struct and
// an equivalent map hash the same.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case string, bool, json.Number:
		return json.Marshal(v)
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	switch g := generic.(type) {
	case map[string]any:
		return canonicalizeMap(g)
	case []any:
		return canonicalizeSlice(g)
	default:
		return raw, nil
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}
