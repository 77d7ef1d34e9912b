package frame

import (
	"bufio"
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_UncompressedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewCodec()

	require.NoError(t, c.WritePacket(&buf, 0x01, []byte("hello")))

	gotID, gotPayload, err := c.ReadPacket(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, int32(0x01), gotID)
	assert.Equal(t, []byte("hello"), gotPayload)
}

func TestCodec_CompressedRoundTrip_AboveThreshold(t *testing.T) {
	var buf bytes.Buffer
	writer := NewCodec()
	writer.EnableCompression(16)
	reader := NewCodec()
	reader.EnableCompression(16)

	payload := bytes.Repeat([]byte("x"), 256)
	require.NoError(t, writer.WritePacket(&buf, 0x02, payload))

	gotID, gotPayload, err := reader.ReadPacket(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, int32(0x02), gotID)
	assert.Equal(t, payload, gotPayload)
}

func TestCodec_CompressedRoundTrip_BelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	writer := NewCodec()
	writer.EnableCompression(256)
	reader := NewCodec()
	reader.EnableCompression(256)

	payload := []byte("short")
	require.NoError(t, writer.WritePacket(&buf, 0x03, payload))

	gotID, gotPayload, err := reader.ReadPacket(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, int32(0x03), gotID)
	assert.Equal(t, payload, gotPayload)
}

func TestCodec_EncryptedRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	_, err := rand.Read(key)
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := NewCodec()
	require.NoError(t, writer.EnableEncryption(key))
	reader := NewCodec()
	require.NoError(t, reader.EnableEncryption(key))

	require.NoError(t, writer.WritePacket(&buf, 0x04, []byte("secret")))

	gotID, gotPayload, err := reader.ReadPacket(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, int32(0x04), gotID)
	assert.Equal(t, []byte("secret"), gotPayload)
}

func TestCodec_EnableEncryptionTwiceFails(t *testing.T) {
	key := make([]byte, 16)
	c := NewCodec()
	require.NoError(t, c.EnableEncryption(key))
	require.Error(t, c.EnableEncryption(key))
}

func TestCodec_TooLargeFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	_, err := buf.Write([]byte{0xff, 0xff, 0xff, 0xff, 0x0f}) // decodes to int32 -1, a negative length the codec rejects
	require.NoError(t, err)

	c := NewCodec()
	_, _, err = c.ReadPacket(bufio.NewReader(&buf))
	require.Error(t, err)
}

func TestCodec_AbusiveCompressionRejected(t *testing.T) {
	// Hand-build a compressed frame whose dataLen is nonzero but under the
	// negotiated threshold: protocol abuse per spec.
	threshold := int32(256)
	reader := NewCodec()
	reader.EnableCompression(threshold)

	var inner bytes.Buffer
	// dataLen = 10 (< threshold), followed by arbitrary bytes (not even
	// valid zlib — the threshold check must reject before decompression).
	inner.Write([]byte{10})
	inner.Write([]byte("xxxxxxxxxxxx"))

	var frame bytes.Buffer
	frame.Write([]byte{byte(inner.Len())})
	frame.Write(inner.Bytes())

	_, _, err := reader.ReadPacket(bufio.NewReader(&frame))
	require.ErrorIs(t, err, ErrAbusiveCompression)
}
