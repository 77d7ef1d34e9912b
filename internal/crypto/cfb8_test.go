package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamCipher_RoundTrip(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	plaintext := []byte("hello minecraft protocol, this is a somewhat longer message than one block")

	encSide, err := NewStreamCipher(key)
	require.NoError(t, err)
	decSide, err := NewStreamCipher(key)
	require.NoError(t, err)

	buf := bytes.Clone(plaintext)
	encSide.Encrypt(buf)
	require.NotEqual(t, plaintext, buf)

	decSide.Decrypt(buf)
	require.Equal(t, plaintext, buf)
}

func TestStreamCipher_StreamsAcrossMultipleCalls(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 16)

	enc, err := NewStreamCipher(key)
	require.NoError(t, err)
	dec, err := NewStreamCipher(key)
	require.NoError(t, err)

	parts := [][]byte{[]byte("first"), []byte("second"), []byte("third-part")}
	for _, p := range parts {
		buf := bytes.Clone(p)
		enc.Encrypt(buf)
		dec.Decrypt(buf)
		require.Equal(t, p, buf)
	}
}

func TestStreamCipher_RejectsWrongKeySize(t *testing.T) {
	_, err := NewStreamCipher([]byte{1, 2, 3})
	require.Error(t, err)
}
