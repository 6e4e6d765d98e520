package contacts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tiercache"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	reg, err := tiercache.NewRegistry(tiercache.RegistryOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return New(reg)
}

func TestPutGetInvalidate(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	in := List{
		Owner:    "alice",
		Contacts: []Contact{{UserID: "bob", DisplayName: "Bob"}, {UserID: "eve", Blocked: true}},
		SyncedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, c.Put(ctx, in))

	got, ok := c.Get(ctx, "alice")
	require.True(t, ok)
	assert.Equal(t, in.Contacts, got.Contacts)
	assert.True(t, in.SyncedAt.Equal(got.SyncedAt))

	c.Invalidate(ctx, "alice")
	_, ok = c.Get(ctx, "alice")
	assert.False(t, ok)
}

func TestGetManyReportsMissesInOrder(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.PutMany(ctx, []List{{Owner: "a"}, {Owner: "c"}}))

	hits, missed := c.GetMany(ctx, []string{"d", "a", "b", "c"})
	assert.Len(t, hits, 2)
	assert.Contains(t, hits, "a")
	assert.Contains(t, hits, "c")
	assert.Equal(t, []string{"d", "b"}, missed)
}
