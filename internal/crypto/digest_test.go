package crypto

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known fixtures from wiki.vg's "Protocol Encryption" page: SignedHexDigest
// applied to SHA-1 of a plain string must match Java's signed BigInteger hex
// rendering exactly, including the leading '-' for negative digests.
func TestSignedHexDigest_KnownFixtures(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"", "-"},
		{"jeb_", "-7c9d5b0044c130109a5d7b5fb5c317c02b4e28c1"},
		{"Notch", "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum := sha1.Sum([]byte(tt.name))
			got := SignedHexDigest(sum[:])
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthDigest_AllZero(t *testing.T) {
	serverID := ""
	sharedSecret := make([]byte, 16)
	publicKeyDER := make([]byte, 16)

	got := AuthDigest(serverID, sharedSecret, publicKeyDER)
	require.NotEmpty(t, got)

	sum := sha1.Sum(append(append([]byte(serverID), sharedSecret...), publicKeyDER...))
	want := SignedHexDigest(sum[:])
	assert.Equal(t, want, got)
}
