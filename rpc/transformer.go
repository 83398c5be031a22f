package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Transformer converts values to and from the bytes that cross the
// client/cache boundary.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Deserialize(Serialize(v)) must reproduce v for the types a router exposes.
type Transformer interface {
	Serialize(v any) ([]byte, error)
	Deserialize(data []byte, out any) error
}

// JSONTransformer encodes values as JSON. Empty input decodes as null.
type JSONTransformer struct{}

var null = []byte("null")

// Serialize marshals v as JSON. Raw JSON passes through untouched.
func (JSONTransformer) Serialize(v any) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return null, nil
		}
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: serialize: %w", err)
	}
	return data, nil
}

// Deserialize unmarshals data into out. Numbers landing in interface
// values, at any depth, decode as json.Number so they survive a round trip
// exactly.
func (JSONTransformer) Deserialize(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = null
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("rpc: deserialize: %w", err)
	}
	return nil
}

// ZstdTransformer compresses the output of an inner Transformer with zstd.
// It is meant for snapshots and other payloads stored or shipped in bulk.
type ZstdTransformer struct {
	inner Transformer
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewZstdTransformer wraps inner. A nil inner defaults to JSONTransformer.
func NewZstdTransformer(inner Transformer) (*ZstdTransformer, error) {
	if inner == nil {
		inner = JSONTransformer{}
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("rpc: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("rpc: zstd decoder: %w", err)
	}
	return &ZstdTransformer{inner: inner, enc: enc, dec: dec}, nil
}

// Serialize encodes v with the inner transformer and compresses the result.
func (z *ZstdTransformer) Serialize(v any) ([]byte, error) {
	raw, err := z.inner.Serialize(v)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, nil), nil
}

// Deserialize decompresses data and decodes it with the inner transformer.
func (z *ZstdTransformer) Deserialize(data []byte, out any) error {
	raw, err := z.dec.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("rpc: zstd decode: %w", err)
	}
	return z.inner.Deserialize(raw, out)
}

// Close releases the encoder and decoder.
func (z *ZstdTransformer) Close() error {
	z.dec.Close()
	return z.enc.Close()
}

// Decode deserializes data into a fresh T.
func Decode[T any](t Transformer, data []byte) (T, error) {
	var out T
	err := t.Deserialize(data, &out)
	return out, err
}
