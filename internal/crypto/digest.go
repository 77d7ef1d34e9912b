package crypto

import (
	"crypto/sha1"
	"math/big"
)

// AuthDigest computes the server-id hash sent to the Mojang session service:
// SHA-1(serverID || sharedSecret || publicKeyDER), reinterpreted as a signed
// big-endian integer and printed in base 16 (sign preserved, no leading
// zeros, matching Java's BigInteger(bytes).toString(16)).
func AuthDigest(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	return SignedHexDigest(h.Sum(nil))
}

// SignedHexDigest reinterprets a byte slice as Java's BigInteger(byte[])
// would (two's-complement, big-endian) and renders it as lowercase hex with
// sign preserved, e.g. empty-string digest prints as "-".
func SignedHexDigest(sum []byte) string {
	n := new(big.Int).SetBytes(sum)

	// Two's-complement: if the high bit is set the value is negative.
	// Java's BigInteger(byte[]) treats the input as signed two's-complement,
	// unlike big.Int.SetBytes which always reads an unsigned magnitude.
	if len(sum) > 0 && sum[0]&0x80 != 0 {
		full := new(big.Int).Lsh(big.NewInt(1), uint(len(sum)*8))
		n.Sub(n, full)
	}

	return n.Text(16)
}
