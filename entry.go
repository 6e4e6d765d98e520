package tiercache

import (
	"time"

	"github.com/unkn0wn-root/tiercache/internal/wire"
)

// Entry is the unit of storage in every tier. It is replaced wholesale on
// Set and never partially updated.
type Entry struct {
	Data      []byte
	WrittenAt int64 // unix ns
	TTL       time.Duration
	Version   string
	Size      int64
}

// NewEntry stamps data with write time, ttl and the namespace version.
func NewEntry(data []byte, now time.Time, ttl time.Duration, version string) Entry {
	return Entry{
		Data:      data,
		WrittenAt: now.UnixNano(),
		TTL:       ttl,
		Version:   version,
		Size:      EstimateSize(data),
	}
}

// ExpiresAt is the first instant at which e is expired.
func (e Entry) ExpiresAt() time.Time {
	return time.Unix(0, e.WrittenAt).Add(e.TTL)
}

// IsValid reports whether e matches version and has not expired at now.
func IsValid(e Entry, version string, now time.Time) bool {
	return invalidReason(e, version, now) == ""
}

// EstimateSize is the accounting size of an encoded value.
func EstimateSize(data []byte) int64 {
	return int64(len(data))
}

func invalidReason(e Entry, version string, now time.Time) string {
	if e.Version != version {
		return "version_mismatch"
	}
	if !now.Before(e.ExpiresAt()) {
		return "expired"
	}
	return ""
}

func encodeEntry(e Entry) ([]byte, error) {
	return wire.Encode(wire.Entry{
		WrittenAtNs: e.WrittenAt,
		TTLNs:       int64(e.TTL),
		Version:     e.Version,
		Payload:     e.Data,
	})
}

func decodeEntry(b []byte) (Entry, error) {
	w, err := wire.Decode(b)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Data:      w.Payload,
		WrittenAt: w.WrittenAtNs,
		TTL:       time.Duration(w.TTLNs),
		Version:   w.Version,
		Size:      EstimateSize(w.Payload),
	}, nil
}
