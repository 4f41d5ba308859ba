package session

import "testing"

func TestMintUnique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id := Mint()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate identifier after %d mints: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestMintWellFormed(t *testing.T) {
	id := Mint()
	if !IsWellFormed(id) {
		t.Fatalf("minted identifier not well formed: %s", id)
	}
}

func TestIsWellFormed(t *testing.T) {
	bad := []string{
		"",
		"session",
		"session_abc_deadbeefdeadbeefdeadbeefdeadbeef",
		"session_123_short",
		"task_123_deadbeefdeadbeefdeadbeefdeadbeef",
		"session_123_DEADBEEFDEADBEEFDEADBEEFDEADBEEF",
	}
	for _, id := range bad {
		if IsWellFormed(id) {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
	if !IsWellFormed("session_1712345678901_0123456789abcdef0123456789abcdef") {
		t.Fatal("expected canonical identifier to be accepted")
	}
}
