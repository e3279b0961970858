package auth

import (
	"strings"
	"testing"
)

func TestHashVerify(t *testing.T) {
	h := NewHasher("")
	stored, err := h.Hash("secret-123", "")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.Contains(stored, ":") {
		t.Fatalf("stored hash %q missing salt separator", stored)
	}
	if !h.Verify("secret-123", stored) {
		t.Fatal("expected verify to pass")
	}
	if h.Verify("secret-123x", stored) {
		t.Fatal("expected verify to fail for wrong password")
	}
}

func TestHashRandomSalt(t *testing.T) {
	h := NewHasher("")
	a, _ := h.Hash("pw", "")
	b, _ := h.Hash("pw", "")
	if a == b {
		t.Error("expected distinct hashes with random salts")
	}
}

func TestHashExplicitSalt(t *testing.T) {
	h := NewHasher("")
	a, err := h.Hash("pw", "fixedsalt")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, _ := h.Hash("pw", "fixedsalt")
	if a != b {
		t.Errorf("same salt produced %q and %q", a, b)
	}
	if !strings.HasPrefix(a, "fixedsalt:") {
		t.Errorf("got %q, want fixedsalt: prefix", a)
	}
}

func TestHashConfiguredSalt(t *testing.T) {
	h := NewHasher("deploy-salt")
	stored, _ := h.Hash("pw", "")
	if !strings.HasPrefix(stored, "deploy-salt:") {
		t.Errorf("got %q, want deploy-salt: prefix", stored)
	}
	// Verification reads the salt from the stored value, not the hasher.
	if !NewHasher("").Verify("pw", stored) {
		t.Error("expected verify with a different hasher to pass")
	}
}

func TestVerifyMalformed(t *testing.T) {
	h := NewHasher("")
	for _, stored := range []string{"", "nosep", ":abcd", "salt:", "salt:not-hex"} {
		if h.Verify("pw", stored) {
			t.Errorf("Verify(%q) = true, want false", stored)
		}
	}
}
