// Package natskv is a remote tier backed by a NATS JetStream key-value
// bucket. TTL is a bucket setting in JetStream, so per-entry TTLs are left to
// the service's validity check.
//
// KV keys only allow [-/_=.A-Za-z0-9], so storage keys are mapped as
//
//	tc:<ns>:<key>  ->  tc.<ns>._<base64url(key)>
//
// which keeps namespaces addressable with a "tc.<ns>.>" filter.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	pr "github.com/unkn0wn-root/tiercache/provider"
)

var ErrNilBucket = errors.New("natskv provider: nil key-value bucket")

type Provider struct {
	kv jetstream.KeyValue
}

var (
	_ pr.Provider      = (*Provider)(nil)
	_ pr.PrefixDeleter = (*Provider)(nil)
)

func New(kv jetstream.KeyValue) (*Provider, error) {
	if kv == nil {
		return nil, ErrNilBucket
	}
	return &Provider{kv: kv}, nil
}

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, err := p.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value(), true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := p.kv.Put(ctx, encodeKey(key), value)
	return err
}

func (p *Provider) Del(ctx context.Context, key string) error {
	err := p.kv.Delete(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// DelPrefix purges every key of a "tc:<ns>:" prefix.
func (p *Provider) DelPrefix(ctx context.Context, prefix string) (int, error) {
	filter, ok := prefixFilter(prefix)
	if !ok {
		return 0, errors.New("natskv provider: prefix must have the form tc:<ns>:")
	}
	lister, err := p.kv.ListKeysFiltered(ctx, filter)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer func() { _ = lister.Stop() }()

	n := 0
	for k := range lister.Keys() {
		if err := p.kv.Purge(ctx, k); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// Close is a no-op; the connection belongs to the caller.
func (p *Provider) Close(context.Context) error { return nil }

func encodeKey(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 || !subjectSafe(parts[0]) || !subjectSafe(parts[1]) {
		return "_" + base64.RawURLEncoding.EncodeToString([]byte(key))
	}
	return parts[0] + "." + parts[1] + "._" + base64.RawURLEncoding.EncodeToString([]byte(parts[2]))
}

func prefixFilter(prefix string) (string, bool) {
	parts := strings.Split(prefix, ":")
	if len(parts) != 3 || parts[2] != "" || !subjectSafe(parts[0]) || !subjectSafe(parts[1]) {
		return "", false
	}
	return parts[0] + "." + parts[1] + ".>", true
}

func subjectSafe(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
