// Package avatar caches user avatar images in the avatar namespace.
// Images are CBOR-framed and, when the namespace enables compression,
// zstd-compressed before they reach the cache.
package avatar

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/tiercache"
	"github.com/unkn0wn-root/tiercache/codec"
)

// Avatar is one cached image.
type Avatar struct {
	UserID      string    `cbor:"1,keyasint"`
	ContentType string    `cbor:"2,keyasint"`
	ETag        string    `cbor:"3,keyasint,omitempty"`
	Data        []byte    `cbor:"4,keyasint"`
	FetchedAt   time.Time `cbor:"5,keyasint"`
}

// Fetcher loads an avatar from its origin (typically an HTTP endpoint).
type Fetcher func(ctx context.Context, userID string) (Avatar, error)

var ErrEmptyUserID = errors.New("avatar: empty user id")

type Cache struct {
	typed *tiercache.Typed[Avatar]
	zstd  *codec.Zstd[Avatar] // nil when compression is off
}

// New binds to reg's avatar namespace.
func New(reg *tiercache.Registry) (*Cache, error) {
	return NewForService(reg.Namespace(tiercache.KindAvatar))
}

// NewForService binds to an explicit service, e.g. one built with tiercache.New.
func NewForService(svc *tiercache.Service) (*Cache, error) {
	inner, err := codec.NewCBOR[Avatar](true)
	if err != nil {
		return nil, err
	}
	c := &Cache{}
	var cd codec.Codec[Avatar] = inner
	if svc.Config().CompressionEnabled {
		if c.zstd, err = codec.NewZstd[Avatar](inner); err != nil {
			return nil, err
		}
		cd = c.zstd
	}
	c.typed = tiercache.NewTyped(svc, cd)
	return c, nil
}

func key(userID string) string { return "u:" + userID }

func (c *Cache) Get(ctx context.Context, userID string) (Avatar, bool) {
	return c.typed.Get(ctx, key(userID))
}

// Put caches a with the namespace default TTL.
func (c *Cache) Put(ctx context.Context, a Avatar) error {
	if a.UserID == "" {
		return ErrEmptyUserID
	}
	return c.typed.Set(ctx, key(a.UserID), a, 0)
}

// Fetch returns the cached avatar or loads it once, even when many callers
// ask for the same user at the same time.
func (c *Cache) Fetch(ctx context.Context, userID string, fetch Fetcher) (Avatar, error) {
	if userID == "" {
		return Avatar{}, ErrEmptyUserID
	}
	return c.typed.GetOrLoad(ctx, key(userID), func(ctx context.Context) (Avatar, error) {
		return fetch(ctx, userID)
	}, 0)
}

// Prefetch warms the cache for userIDs, e.g. for a contact list about to be
// shown. Failures are joined; successful loads stay cached.
func (c *Cache) Prefetch(ctx context.Context, userIDs []string, fetch Fetcher) error {
	items := make([]tiercache.PreloadItem[Avatar], 0, len(userIDs))
	for _, id := range userIDs {
		items = append(items, tiercache.PreloadItem[Avatar]{
			Key:    key(id),
			Loader: func(ctx context.Context) (Avatar, error) { return fetch(ctx, id) },
		})
	}
	return c.typed.Preload(ctx, items)
}

func (c *Cache) Invalidate(ctx context.Context, userID string) {
	c.typed.Delete(ctx, key(userID))
}

// Close releases compression state.
func (c *Cache) Close() error {
	if c.zstd != nil {
		return c.zstd.Close()
	}
	return nil
}
