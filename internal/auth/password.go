package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt cost parameters. N=2^14 keeps a single verification well under
// 100ms on commodity hardware.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

// Hasher derives and checks salted scrypt password digests in the form
// "salt:hexDigest".
type Hasher struct {
	salt string
}

// NewHasher returns a Hasher. A non-empty salt is used whenever Hash is
// called without an explicit one; otherwise every hash gets a random salt.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash derives the stored form of password. An empty salt falls back to the
// configured salt and then to a fresh random one.
func (h *Hasher) Hash(password, salt string) (string, error) {
	if salt == "" {
		salt = h.salt
	}
	if salt == "" {
		buf := make([]byte, saltLen)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate salt: %w", err)
		}
		salt = hex.EncodeToString(buf)
	}
	key, err := derive(password, salt)
	if err != nil {
		return "", err
	}
	return salt + ":" + hex.EncodeToString(key), nil
}

// Verify reports whether password matches stored. Empty or malformed stored
// values never match.
func (h *Hasher) Verify(password, stored string) bool {
	salt, digest, ok := strings.Cut(stored, ":")
	if !ok || salt == "" || digest == "" {
		return false
	}
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	got, err := derive(password, salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(password, salt string) ([]byte, error) {
	key, err := scrypt.Key([]byte(password), []byte(salt), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive password key: %w", err)
	}
	return key, nil
}
