// Package keys builds namespace-qualified storage keys shared by every tier.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const root = "tc"

// Prefix returns the storage prefix owned by namespace ns, e.g. "tc:chat:".
func Prefix(ns string) string {
	return root + ":" + ns + ":"
}

// Storage qualifies a caller key with its namespace prefix.
func Storage(ns, key string) string {
	return Prefix(ns) + key
}

// User strips the namespace prefix; ok is false for keys outside ns.
func User(ns, storageKey string) (string, bool) {
	return strings.CutPrefix(storageKey, Prefix(ns))
}

// Redact returns a short stable digest of k, safe for logs.
func Redact(k string) string {
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}
