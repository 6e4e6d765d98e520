// Package contacts caches per-user contact lists in the contacts namespace,
// msgpack-encoded.
package contacts

import (
	"context"
	"time"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/codec"
)

type Contact struct {
	UserID      string `msgpack:"u"`
	DisplayName string `msgpack:"n"`
	Blocked     bool   `msgpack:"b,omitempty"`
}

// List is the cached contact list of one owner.
type List struct {
	Owner    string    `msgpack:"o"`
	Contacts []Contact `msgpack:"c"`
	SyncedAt time.Time `msgpack:"t"`
}

type Cache struct {
	typed *tiercache.Typed[List]
}

func New(reg *tiercache.Registry) *Cache {
	return NewForService(reg.Namespace(tiercache.KindContacts))
}

func NewForService(svc *tiercache.Service) *Cache {
	return &Cache{typed: tiercache.NewTyped[List](svc, codec.Msgpack[List]{})}
}

func key(owner string) string { return "l:" + owner }

func (c *Cache) Get(ctx context.Context, owner string) (List, bool) {
	return c.typed.Get(ctx, key(owner))
}

func (c *Cache) Put(ctx context.Context, l List) error {
	return c.typed.Set(ctx, key(l.Owner), l, 0)
}

// GetMany returns cached lists by owner and the owners that missed, in the
// order given.
func (c *Cache) GetMany(ctx context.Context, owners []string) (map[string]List, []string) {
	keys := make([]string, len(owners))
	for i, o := range owners {
		keys[i] = key(o)
	}
	hits, missing := c.typed.GetBatch(ctx, keys)

	out := make(map[string]List, len(hits))
	for _, l := range hits {
		out[l.Owner] = l
	}
	missed := make([]string, 0, len(missing))
	for _, k := range missing {
		missed = append(missed, k[len("l:"):])
	}
	return out, missed
}

// PutMany caches lists concurrently; lists that were written stay cached
// even when others fail.
func (c *Cache) PutMany(ctx context.Context, lists []List) error {
	items := make(map[string]List, len(lists))
	for _, l := range lists {
		items[key(l.Owner)] = l
	}
	_, err := c.typed.SetBatch(ctx, items, 0)
	return err
}

// Invalidate drops owner's list, e.g. after a contact was added.
func (c *Cache) Invalidate(ctx context.Context, owner string) {
	c.typed.Delete(ctx, key(owner))
}
