package tiercache

import (
	"fmt"
	"time"
)

// Kind names a logical cache partition.
type Kind string

const (
	KindAvatar    Kind = "avatar"
	KindUser      Kind = "user"
	KindContacts  Kind = "contacts"
	KindChat      Kind = "chat"
	KindGenealogy Kind = "genealogy"
	KindGeneral   Kind = "general"
)

const (
	mib = int64(1) << 20
)

// NamespaceConfig is the immutable configuration of one namespace.
type NamespaceConfig struct {
	Kind       Kind          `yaml:"kind"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// Soft budgets in bytes; 0 means unbounded.
	MaxMemoryBytes  int64 `yaml:"max_memory_bytes"`
	MaxDurableBytes int64 `yaml:"max_durable_bytes"`
	// CompressionEnabled is advisory: callers decide whether to compress
	// values (see codec.Zstd). The engine stores bytes as given.
	CompressionEnabled bool `yaml:"compression_enabled"`
	// Version invalidates every entry written under a different value.
	Version string `yaml:"version"`
}

// Validate rejects unusable configs. Kinds are restricted to letters, digits,
// '-' and '_' because the kind ends the "tc:<kind>:" key prefix; a ':' in a
// kind would let one namespace's prefix cover another's keys.
func (c NamespaceConfig) Validate() error {
	switch {
	case c.Kind == "":
		return fmt.Errorf("tiercache: namespace kind is required")
	case !validKind(string(c.Kind)):
		return fmt.Errorf("tiercache: namespace kind %q may only contain letters, digits, '-' and '_'", c.Kind)
	case c.DefaultTTL < 0:
		return fmt.Errorf("tiercache: %s: negative default ttl", c.Kind)
	case c.MaxMemoryBytes < 0 || c.MaxDurableBytes < 0:
		return fmt.Errorf("tiercache: %s: negative byte budget", c.Kind)
	case len(c.Version) > 1024:
		return fmt.Errorf("tiercache: %s: version tag too long", c.Kind)
	}
	return nil
}

func validKind(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// DefaultNamespaces is the static namespace table. Avatars are large and
// long-lived, chat entries small and short-lived.
func DefaultNamespaces() []NamespaceConfig {
	return []NamespaceConfig{
		{
			Kind:               KindAvatar,
			DefaultTTL:         24 * time.Hour,
			MaxMemoryBytes:     48 * mib,
			MaxDurableBytes:    256 * mib,
			CompressionEnabled: true,
			Version:            "1",
		},
		{Kind: KindUser, DefaultTTL: time.Hour, MaxMemoryBytes: 8 * mib, MaxDurableBytes: 32 * mib, Version: "1"},
		{Kind: KindContacts, DefaultTTL: 30 * time.Minute, MaxMemoryBytes: 4 * mib, MaxDurableBytes: 16 * mib, Version: "1"},
		{Kind: KindChat, DefaultTTL: 10 * time.Minute, MaxMemoryBytes: 2 * mib, MaxDurableBytes: 8 * mib, Version: "1"},
		{
			Kind:               KindGenealogy,
			DefaultTTL:         6 * time.Hour,
			MaxMemoryBytes:     16 * mib,
			MaxDurableBytes:    64 * mib,
			CompressionEnabled: true,
			Version:            "1",
		},
		{Kind: KindGeneral, DefaultTTL: 15 * time.Minute, MaxMemoryBytes: 4 * mib, MaxDurableBytes: 16 * mib, Version: "1"},
	}
}
