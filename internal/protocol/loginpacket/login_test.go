package loginpacket

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/model"
)

func TestLoginStart_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(5)
	buf.WriteString("Alice")
	id := uuid.Nil
	buf.Write(id[:])

	got, err := DecodeLoginStart(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, uuid.Nil, got.UUID)
}

func TestEncryptionResponse_RoundTrip(t *testing.T) {
	secret := bytes.Repeat([]byte{0xAB}, 128)
	token := []byte{1, 2, 3, 4}

	var buf bytes.Buffer
	buf.Write([]byte{0x80, 0x01}) // VarInt(128)
	buf.Write(secret)
	buf.WriteByte(byte(len(token)))
	buf.Write(token)

	got, err := DecodeEncryptionResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, secret, got.EncryptedSharedSecret)
	require.Equal(t, token, got.EncryptedVerifyToken)
}

func TestLoginSuccess_Encode(t *testing.T) {
	profile := model.GameProfile{
		UUID: uuid.New(),
		Name: "Bob",
		Properties: []model.ProfileProperty{
			{Name: "textures", Value: "abc", Signature: "sig"},
		},
	}
	encoded := LoginSuccess{Profile: profile}.Encode()
	require.NotEmpty(t, encoded)
}
