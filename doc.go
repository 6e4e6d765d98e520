// Package tiercache implements a namespaced, three-tier cache for a client
// application. Each namespace (avatars, users, contacts, chat, genealogy,
// general) has its own TTL, memory budget, durable budget and version tag.
//
// Tiers, in lookup order:
//   - memory: per-namespace map bounded by MaxMemoryBytes, oldest-quarter eviction.
//   - durable: a DurableStore shared by all namespaces (see store/sqlite).
//   - remote: an optional provider.Provider (Redis, Ristretto, BigCache, NATS KV).
//
// A hit in a lower tier is copied into every tier above it. Tier failures are
// logged and absorbed; a failed tier looks like a miss.
//
// Keys:
//
//	tc:<ns>:<key>  - every tier, so namespaces never collide in shared stores
//
// Validity: an entry is served only if its version tag equals the namespace's
// effective version and now < writtenAt+ttl. Invalid entries found on read are
// purged from the tier they were found in. Bumping the version (BumpVersion,
// backed by a versionstore.Store) invalidates a namespace in O(1).
//
// Service stores encoded bytes; Typed[V] layers a codec.Codec[V] on top and
// adds batch reads and writes, Preload and single-flight GetOrLoad.
//
//	reg, _ := tiercache.NewRegistry(tiercache.RegistryOptions{Durable: store})
//	users := tiercache.NewTyped(reg.Namespace(tiercache.KindUser), codec.JSON[User]{})
//	_ = users.Set(ctx, "u:42", u, 0)
package tiercache
