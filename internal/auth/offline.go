package auth

import (
	"crypto/md5"

	"github.com/google/uuid"
)

// OfflineUUID derives the deterministic UUID offline-mode (online_mode =
// false) assigns a player: an MD5 digest of "OfflinePlayer:<name>" with the
// version/variant nibbles rewritten to mark it as a (non-random) v3 UUID,
// matching the client's own offline-mode identity derivation so a given
// username always maps to the same entity across servers.
func OfflineUUID(name string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + name))
	var u uuid.UUID
	copy(u[:], sum[:])
	u.SetVersion(3)
	u.SetVariant()
	return u
}
