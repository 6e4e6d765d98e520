// Package codec turns cached values into the bytes stored by every tier.
// The encoded length is also the entry's size for memory accounting.
package codec

// Codec encodes/decodes values V to []byte for storage.
// Implementations must be safe for concurrent use.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
