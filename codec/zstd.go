package codec

import (
	"github.com/klauspost/compress/zstd"
)

// Zstd compresses the output of Inner. Namespaces configured with
// CompressionEnabled wrap their codec in it; entry sizes then reflect the
// compressed length.
type Zstd[V any] struct {
	inner Codec[V]
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// NewZstd builds a zstd wrapper. Encoder and decoder are used through their
// stateless EncodeAll/DecodeAll paths, which are safe for concurrent use.
func NewZstd[V any](inner Codec[V]) (*Zstd[V], error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &Zstd[V]{inner: inner, enc: enc, dec: dec}, nil
}

func (z *Zstd[V]) Encode(v V) ([]byte, error) {
	b, err := z.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(b, make([]byte, 0, len(b))), nil
}

func (z *Zstd[V]) Decode(b []byte) (V, error) {
	raw, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		var zero V
		return zero, err
	}
	return z.inner.Decode(raw)
}

// Close releases encoder and decoder resources.
func (z *Zstd[V]) Close() error {
	z.dec.Close()
	return z.enc.Close()
}
