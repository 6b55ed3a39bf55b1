package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword hashes a username/password pair the way the virtual-user
// directory file stores it: sha256(name + password), hex-encoded. This
// follows the same name-salted single-hash scheme as the original
// easyftpd usertools.User.get_hash, modernized from sha1 to the stdlib
// crypto/sha256.
func HashPassword(name, password string) string {
	sum := sha256.Sum256([]byte(name + password))
	return hex.EncodeToString(sum[:])
}

// constantTimeEqual compares two hex digests without leaking timing
// information about where they first differ (spec §8 property 6: failed
// logins must not be distinguishable by timing).
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
