package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPair_DecryptPKCS1v15_RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.NotEmpty(t, kp.PublicDER)

	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &kp.Private.PublicKey, secret)
	require.NoError(t, err)

	decrypted, err := kp.DecryptPKCS1v15(ciphertext)
	require.NoError(t, err)
	require.Equal(t, secret, decrypted)
}

func TestKeyPair_RejectsTamperedCiphertext(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &kp.Private.PublicKey, []byte("verify-token"))
	require.NoError(t, err)
	ciphertext[0] ^= 0xFF

	_, err = kp.DecryptPKCS1v15(ciphertext)
	require.Error(t, err)
}
