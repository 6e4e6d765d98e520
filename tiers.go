package tiercache

import "context"

// Tier names one level of the lookup order.
type Tier uint8

const (
	TierMemory Tier = iota
	TierDurable
	TierRemote
	// TierAll tags events that apply to every tier at once, such as a value
	// that failed to decode and was deleted everywhere.
	TierAll
)

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierDurable:
		return "durable"
	case TierRemote:
		return "remote"
	case TierAll:
		return "all"
	default:
		return "unknown"
	}
}

// DurableStore is the local persistent tier: best-effort, capacity-bounded,
// and expected to survive a process restart. Keys arrive namespace-qualified
// ("tc:<ns>:<key>"); one store is shared by all namespaces.
//
// Read returns (nil, false, nil) on miss. Write returns an error wrapping
// ErrDurableFull when the store is out of capacity. Delete of a missing key
// is not an error.
type DurableStore interface {
	Read(ctx context.Context, key string) ([]byte, bool, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	ListKeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
	Close(ctx context.Context) error
}

// DurableSizer is implemented by durable stores that can report usage per
// key prefix. It enables NamespaceConfig.MaxDurableBytes.
type DurableSizer interface {
	// BytesWithPrefix sums value sizes under prefix, skipping exclude.
	BytesWithPrefix(ctx context.Context, prefix, exclude string) (int64, error)
}
