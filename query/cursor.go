package query

import (
	"bytes"
	"encoding/json"
	"sync"
)

// cursorCell holds the last cursor seen by one live query.
type cursorCell struct {
	mu sync.Mutex
	v  any
}

func (c *cursorCell) get() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// swap stores v and returns the previous cursor.
func (c *cursorCell) swap(v any) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.v
	c.v = v
	return prev
}

// withCursor returns input with a "cursor" member set. Input must encode as
// a JSON object or null.
func withCursor(input any, cursor any) (map[string]any, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{}
	if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&merged); err != nil {
			return nil, ErrInputNotObject
		}
	}
	merged["cursor"] = cursor
	return merged, nil
}
