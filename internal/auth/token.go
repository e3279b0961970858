package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// AdminTokenPrefix marks a token as belonging to the admin session class.
// Tokens without it are rejected before any store lookup.
const AdminTokenPrefix = "adm_"

// NewAdminToken returns a fresh, globally unique admin session token.
func NewAdminToken() string {
	return AdminTokenPrefix + uuid.NewString()
}

// IsAdminToken reports whether token carries the admin marker.
func IsAdminToken(token string) bool {
	return len(token) > len(AdminTokenPrefix) && strings.HasPrefix(token, AdminTokenPrefix)
}

// TokenKey derives the storage key for a token bound to ip. The NUL
// separator keeps ("ab","c") and ("a","bc") apart.
func TokenKey(token, ip string) string {
	h := sha256.Sum256([]byte(token + "\x00" + ip))
	return hex.EncodeToString(h[:])
}

// NewResetToken returns an opaque password reset token.
func NewResetToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
