package codec

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type profile struct {
	ID      string    `json:"id" cbor:"id" msgpack:"id"`
	Name    string    `json:"name" cbor:"name" msgpack:"name"`
	Updated time.Time `json:"updated" cbor:"updated" msgpack:"updated"`
}

func sample() profile {
	return profile{ID: "u1", Name: "Ada", Updated: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func roundTrip[V any](t *testing.T, c Codec[V], v V, eq func(a, b V) bool) {
	t.Helper()
	b, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !eq(got, v) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, v)
	}
}

func profileEq(a, b profile) bool {
	return a.ID == b.ID && a.Name == b.Name && a.Updated.Equal(b.Updated)
}

func TestStructCodecsRoundTrip(t *testing.T) {
	roundTrip[profile](t, JSON[profile]{}, sample(), profileEq)
	roundTrip[profile](t, Msgpack[profile]{}, sample(), profileEq)
	roundTrip[profile](t, MustCBOR[profile](true), sample(), profileEq)
	roundTrip[profile](t, MustCBOR[profile](false), sample(), profileEq)
}

func TestDeterministicCBORIsStable(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	m := map[string]int{"b": 2, "a": 1, "c": 3}
	first, err := c.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := c.Encode(m)
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding changed between calls")
		}
	}
}

func TestProtobufRoundTrip(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	roundTrip[*wrapperspb.StringValue](t, c, wrapperspb.String("hello"),
		func(a, b *wrapperspb.StringValue) bool { return a.GetValue() == b.GetValue() })
}

func TestRawCodecs(t *testing.T) {
	roundTrip[[]byte](t, Bytes{}, []byte{1, 2, 3}, bytes.Equal)
	roundTrip[string](t, String{}, "héllo", func(a, b string) bool { return a == b })
}

func TestLimitBothDirections(t *testing.T) {
	c := Limit[string]{Inner: String{}, MaxEncode: 4, MaxDecode: 3}
	if _, err := c.Encode("hello"); err == nil {
		t.Fatalf("expected encode limit error")
	}
	if _, err := c.Decode([]byte("abcd")); err == nil {
		t.Fatalf("expected decode limit error")
	}
	if v, err := c.Decode([]byte("abc")); err != nil || v != "abc" {
		t.Fatalf("Decode within limit: v=%q err=%v", v, err)
	}
}

func TestZstdCompressesAndRoundTrips(t *testing.T) {
	z, err := NewZstd[string](String{})
	if err != nil {
		t.Fatal(err)
	}
	defer z.Close()

	in := strings.Repeat("avatar-bytes-", 512)
	b, err := z.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) >= len(in) {
		t.Fatalf("expected compression: %d >= %d", len(b), len(in))
	}
	out, err := z.Decode(b)
	if err != nil || out != in {
		t.Fatalf("zstd round trip failed: err=%v", err)
	}
	if _, err := z.Decode([]byte("not zstd")); err == nil {
		t.Fatalf("expected error decoding foreign bytes")
	}
}
