// Package wire frames cache entries for the durable and remote tiers.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	formatVersion byte = 2
	hdrLen             = 4 + 1 + 8 + 8 + 2 // magic | ver | written | ttl | tagLen
)

var (
	ErrCorrupt  = errors.New("tiercache: corrupt entry")
	ErrTooLarge = errors.New("tiercache: entry field too large")
	magic4      = [...]byte{'T', 'C', 'E', 'N'}
)

// Entry is the decoded form of a framed tier value.
// Payload aliases the input buffer on decode.
type Entry struct {
	WrittenAtNs int64
	TTLNs       int64
	Version     string
	Payload     []byte
}

// Encode frames e as:
//
//	magic(4) | ver(1) | writtenAtNs(i64 be) | ttlNs(i64 be) | tagLen(u16 be) | tag | vlen(u32 be) | payload
func Encode(e Entry) ([]byte, error) {
	if len(e.Version) > math.MaxUint16 || int64(len(e.Payload)) > math.MaxUint32 {
		return nil, ErrTooLarge
	}

	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.Version) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(formatVersion)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.WrittenAtNs))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.TTLNs))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Version)))
	buf.Write(u2[:])
	buf.WriteString(e.Version)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != formatVersion {
		return Entry{}, ErrCorrupt
	}
	off := 5

	written := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	ttl := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	if written < 0 || ttl < 0 {
		return Entry{}, ErrCorrupt
	}

	tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if tlen > len(b)-off {
		return Entry{}, ErrCorrupt
	}
	tag := string(b[off : off+tlen])
	off += tlen

	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact length: trailing bytes mean a foreign or torn write
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}

	return Entry{
		WrittenAtNs: written,
		TTLNs:       ttl,
		Version:     tag,
		Payload:     b[off : off+vlen],
	}, nil
}
