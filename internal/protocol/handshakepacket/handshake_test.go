package handshakepacket

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandshake_RoundTrip(t *testing.T) {
	want := Handshake{
		ProtocolVersion: 769,
		ServerAddress:   "localhost",
		ServerPort:      25565,
		Next:            NextStatus,
	}
	encoded := Encode(want)
	got, err := Decode(bufio.NewReader(bytes.NewReader(encoded)))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHandshake_InvalidNextStateIsRejected(t *testing.T) {
	h := Handshake{ProtocolVersion: 769, ServerAddress: "x", ServerPort: 1, Next: NextState(99)}
	_, err := Decode(bufio.NewReader(bytes.NewReader(Encode(h))))
	require.Error(t, err)
}
