package session

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/auth"
	"github.com/pumpkinwire/mcserver/internal/crypto"
	"github.com/pumpkinwire/mcserver/internal/frame"
	"github.com/pumpkinwire/mcserver/internal/protocol/configpacket"
	"github.com/pumpkinwire/mcserver/internal/protocol/handshakepacket"
	"github.com/pumpkinwire/mcserver/internal/varint"
)

type stubStatus struct{ json string }

func (s stubStatus) StatusJSON() string { return s.json }

type stubJoiner struct {
	joined chan struct{}
}

func (j *stubJoiner) Join(ctx context.Context, c *Connection) error {
	close(j.joined)
	return nil
}

func TestHandler_StatusFlow(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	h := NewHandler(HandlerConfig{OnlineMode: false, CompressionThreshold: -1}, kp, auth.NewClient(), stubStatus{json: `{"description":"hi"}`}, nil)

	done := make(chan error, 1)
	go func() { done <- h.HandleConnection(context.Background(), serverConn) }()

	cc := frame.NewCodec()
	hsBody := handshakepacket.Encode(handshakepacket.Handshake{
		ProtocolVersion: 770,
		ServerAddress:   "localhost",
		ServerPort:      25565,
		Next:            handshakepacket.NextStatus,
	})
	require.NoError(t, cc.WritePacket(clientConn, 0x00, hsBody))

	clientReader := bufio.NewReader(clientConn)

	require.NoError(t, cc.WritePacket(clientConn, 0x00, nil)) // status_request
	id, payload, err := cc.ReadPacket(clientReader)
	require.NoError(t, err)
	assert.Equal(t, int32(0x00), id)
	assert.Contains(t, string(payload[1:]), "hi")

	var pingBuf bytes.Buffer
	pingBuf.Write([]byte{0, 0, 0, 0, 0, 0, 0, 42})
	require.NoError(t, cc.WritePacket(clientConn, 0x01, pingBuf.Bytes()))
	id, payload, err = cc.ReadPacket(clientReader)
	require.NoError(t, err)
	assert.Equal(t, int32(0x01), id)
	assert.Equal(t, byte(42), payload[len(payload)-1])

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after status flow")
	}
}

func TestHandler_OfflineLoginThroughConfiguration(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close() })

	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	joiner := &stubJoiner{joined: make(chan struct{})}
	h := NewHandler(HandlerConfig{OnlineMode: false, CompressionThreshold: -1}, kp, auth.NewClient(), nil, joiner)

	done := make(chan error, 1)
	go func() { done <- h.HandleConnection(context.Background(), serverConn) }()

	cc := frame.NewCodec()
	clientReader := bufio.NewReader(clientConn)

	hsBody := handshakepacket.Encode(handshakepacket.Handshake{
		ProtocolVersion: 770,
		ServerAddress:   "localhost",
		ServerPort:      25565,
		Next:            handshakepacket.NextLogin,
	})
	require.NoError(t, cc.WritePacket(clientConn, 0x00, hsBody))

	var startBuf bytes.Buffer
	require.NoError(t, varint.WriteString(&startBuf, "Steve", 16))
	require.NoError(t, varint.WriteUUID(&startBuf, uuid.Nil))
	require.NoError(t, cc.WritePacket(clientConn, 0x00, startBuf.Bytes()))

	id, _, err := cc.ReadPacket(clientReader)
	require.NoError(t, err)
	require.Equal(t, int32(0x02), id, "expected login_success")

	require.NoError(t, cc.WritePacket(clientConn, 0x03, nil)) // login_acknowledged

	var infoBuf bytes.Buffer
	require.NoError(t, varint.WriteString(&infoBuf, "en_us", 16))
	infoBuf.WriteByte(10) // view distance
	infoBuf.Write(make([]byte, 6))
	require.NoError(t, cc.WritePacket(clientConn, 0x00, infoBuf.Bytes()))

	id, _, err = cc.ReadPacket(clientReader)
	require.NoError(t, err)
	require.Equal(t, int32(0x0F), id, "expected known_packs")

	require.NoError(t, cc.WritePacket(clientConn, 0x07, configpacket.KnownPacks{}.Encode()))

	id, _, err = cc.ReadPacket(clientReader)
	require.NoError(t, err)
	require.Equal(t, int32(0x0E), id, "expected feature_flags")

	id, _, err = cc.ReadPacket(clientReader)
	require.NoError(t, err)
	require.Equal(t, int32(0x03), id, "expected finish_configuration")

	require.NoError(t, cc.WritePacket(clientConn, 0x03, nil)) // finish_configuration_ack

	select {
	case <-joiner.joined:
	case <-time.After(2 * time.Second):
		t.Fatal("play joiner was never invoked")
	}

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after configuration flow")
	}
}

