// Package config loads tiercache deployment settings.
package config

import (
	"time"

	"github.com/unkn0wn-root/tiercache"
)

// Remote tier kinds.
const (
	RemoteNone      = "none"
	RemoteRedis     = "redis"
	RemoteNATS      = "nats"
	RemoteRistretto = "ristretto"
	RemoteBigCache  = "bigcache"
)

// Version store kinds.
const (
	VersionsLocal = "local"
	VersionsRedis = "redis"
)

// Config holds everything needed to build a tiercache.Registry.
type Config struct {
	Logging      Logging                      `yaml:"logging"`
	Durable      Durable                      `yaml:"durable"`
	Remote       Remote                       `yaml:"remote"`
	Versions     string                       `yaml:"versions"`
	Sweep        Sweep                        `yaml:"sweep"`
	BatchWorkers int                          `yaml:"batch_workers"`
	Namespaces   map[string]NamespaceOverride `yaml:"namespaces"`
}

// Logging holds structured logger configuration.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	// Backend picks the adapter the cache engine logs through: slog, zap or
	// logrus. The CLI's own output always uses slog.
	Backend string `yaml:"backend"`
}

// Durable configures the SQLite durable tier. An empty Path disables it.
type Durable struct {
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Remote selects and configures the remote tier.
type Remote struct {
	Kind      string    `yaml:"kind"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	Ristretto Ristretto `yaml:"ristretto"`
	BigCache  BigCache  `yaml:"bigcache"`
}

// Redis is shared by the redis remote tier and the redis version store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix scopes version counters, e.g. per app and environment.
	Prefix string `yaml:"prefix"`
}

type NATS struct {
	URL    string        `yaml:"url"`
	Bucket string        `yaml:"bucket"`
	TTL    time.Duration `yaml:"ttl"` // bucket-wide max age
}

type Ristretto struct {
	MaxCostMB int64 `yaml:"max_cost_mb"`
}

type BigCache struct {
	LifeWindow time.Duration `yaml:"life_window"`
	HardMaxMB  int           `yaml:"hard_max_mb"`
}

// Sweep holds the cron schedule of the registry-wide sweep.
type Sweep struct {
	Schedule string `yaml:"schedule"`
}

// NamespaceOverride changes selected fields of a default namespace, or
// declares a new one. Nil fields keep the default.
type NamespaceOverride struct {
	DefaultTTL         *time.Duration `yaml:"default_ttl"`
	MaxMemoryBytes     *int64         `yaml:"max_memory_bytes"`
	MaxDurableBytes    *int64         `yaml:"max_durable_bytes"`
	CompressionEnabled *bool          `yaml:"compression_enabled"`
	Version            *string        `yaml:"version"`
}

// Defaults returns a Config with sensible defaults for local use.
func Defaults() Config {
	return Config{
		Logging: Logging{Level: "info", Format: "json", Backend: "slog"},
		Durable: Durable{Path: "tiercache.db", MaxBytes: 512 << 20},
		Remote: Remote{
			Kind:      RemoteNone,
			Redis:     Redis{Addr: "localhost:6379", Prefix: "tiercache"},
			NATS:      NATS{URL: "nats://localhost:4222", Bucket: "TIERCACHE", TTL: 24 * time.Hour},
			Ristretto: Ristretto{MaxCostMB: 64},
			BigCache:  BigCache{LifeWindow: 24 * time.Hour, HardMaxMB: 64},
		},
		Versions: VersionsLocal,
		Sweep:    Sweep{Schedule: "@every 5m"},
	}
}

// NamespaceConfigs applies the overrides to tiercache.DefaultNamespaces.
// Overrides for unknown kinds add namespaces seeded from "general".
func (c *Config) NamespaceConfigs() []tiercache.NamespaceConfig {
	base := tiercache.DefaultNamespaces()
	idx := make(map[tiercache.Kind]int, len(base))
	var general tiercache.NamespaceConfig
	for i, ns := range base {
		idx[ns.Kind] = i
		if ns.Kind == tiercache.KindGeneral {
			general = ns
		}
	}

	for name, o := range c.Namespaces {
		kind := tiercache.Kind(name)
		i, ok := idx[kind]
		if !ok {
			ns := general
			ns.Kind = kind
			base = append(base, ns)
			i = len(base) - 1
			idx[kind] = i
		}
		o.apply(&base[i])
	}
	return base
}

func (o NamespaceOverride) apply(ns *tiercache.NamespaceConfig) {
	if o.DefaultTTL != nil {
		ns.DefaultTTL = *o.DefaultTTL
	}
	if o.MaxMemoryBytes != nil {
		ns.MaxMemoryBytes = *o.MaxMemoryBytes
	}
	if o.MaxDurableBytes != nil {
		ns.MaxDurableBytes = *o.MaxDurableBytes
	}
	if o.CompressionEnabled != nil {
		ns.CompressionEnabled = *o.CompressionEnabled
	}
	if o.Version != nil {
		ns.Version = *o.Version
	}
}
