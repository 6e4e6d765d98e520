package keys

import "testing"

func TestStorageAndUserRoundTrip(t *testing.T) {
	sk := Storage("chat", "msg:1")
	if sk != "tc:chat:msg:1" {
		t.Fatalf("Storage = %q", sk)
	}
	k, ok := User("chat", sk)
	if !ok || k != "msg:1" {
		t.Fatalf("User = %q ok=%v", k, ok)
	}
	if _, ok := User("user", sk); ok {
		t.Fatalf("key of another namespace must not match")
	}
}

func TestPrefixDoesNotOverlapSimilarNamespaces(t *testing.T) {
	// "user" must not own keys of "users"
	if _, ok := User("user", Storage("users", "1")); ok {
		t.Fatalf("prefix of %q leaked into %q", "user", "users")
	}
}

func TestRedactIsStableAndShort(t *testing.T) {
	a, b := Redact("tc:avatar:42"), Redact("tc:avatar:42")
	if a != b || len(a) != 16 {
		t.Fatalf("Redact unstable or wrong length: %q %q", a, b)
	}
}
