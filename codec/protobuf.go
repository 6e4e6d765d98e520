package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes generated messages.
type Protobuf[T proto.Message] struct {
	newMsg func() T // e.g. func() *pb.Profile { return &pb.Profile{} }
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{newMsg: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	// deterministic so equal messages have equal sizes
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMsg()
	err := proto.Unmarshal(b, m)
	return m, err
}
