package rpc

import (
	"encoding/json"
	"reflect"
	"testing"
)

type post struct {
	ID    int      `json:"id"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestJSONTransformer_EmptyIsNull(t *testing.T) {
	var p *post
	if err := (JSONTransformer{}).Deserialize(nil, &p); err != nil {
		t.Fatalf("Deserialize(nil) error = %v", err)
	}
	if p != nil {
		t.Errorf("Deserialize(nil) = %+v, want nil", p)
	}
}

func TestJSONTransformer_GenericNumbersKeepPrecision(t *testing.T) {
	var v any
	if err := (JSONTransformer{}).Deserialize([]byte(`9007199254740993`), &v); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	n, ok := v.(json.Number)
	if !ok || n.String() != "9007199254740993" {
		t.Errorf("Deserialize() = %#v, want json.Number 9007199254740993", v)
	}
}

func TestJSONTransformer_NestedNumbersKeepPrecision(t *testing.T) {
	var batch []struct {
		Cursor any `json:"cursor"`
		Data   int `json:"data"`
	}
	if err := (JSONTransformer{}).Deserialize([]byte(`[{"data":1,"cursor":9007199254740993}]`), &batch); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if len(batch) != 1 || batch[0].Data != 1 {
		t.Fatalf("Deserialize() = %+v", batch)
	}
	n, ok := batch[0].Cursor.(json.Number)
	if !ok || n.String() != "9007199254740993" {
		t.Errorf("cursor = %#v, want json.Number 9007199254740993", batch[0].Cursor)
	}
}

func TestJSONTransformer_RawPassthrough(t *testing.T) {
	out, err := (JSONTransformer{}).Serialize(json.RawMessage(`{"a":1}`))
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if string(out) != `{"a":1}` {
		t.Errorf("Serialize() = %s", out)
	}
}

func TestZstdTransformer_RoundTrip(t *testing.T) {
	z, err := NewZstdTransformer(nil)
	if err != nil {
		t.Fatalf("NewZstdTransformer() error = %v", err)
	}
	defer z.Close()

	in := post{ID: 7, Title: "hello", Tags: []string{"a", "b"}}
	data, err := z.Serialize(in)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if json.Valid(data) {
		t.Error("Serialize() output is plain JSON, want compressed frame")
	}

	got, err := Decode[post](z, data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}

func TestZstdTransformer_RejectsGarbage(t *testing.T) {
	z, err := NewZstdTransformer(JSONTransformer{})
	if err != nil {
		t.Fatalf("NewZstdTransformer() error = %v", err)
	}
	defer z.Close()

	var v any
	if err := z.Deserialize([]byte("not zstd"), &v); err == nil {
		t.Error("Deserialize(garbage) error = nil")
	}
}
