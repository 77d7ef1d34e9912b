package session

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/protocol"
)

func pipeConnections(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close() })
	return New(serverSide, 4), clientSide
}

func TestConnection_InitialStateIsHandshake(t *testing.T) {
	c, _ := pipeConnections(t)
	assert.Equal(t, protocol.StateHandshake, c.State())
}

func TestConnection_SetStateTransitions(t *testing.T) {
	c, _ := pipeConnections(t)
	c.SetState(protocol.StateLogin)
	assert.Equal(t, protocol.StateLogin, c.State())
}

func TestConnection_EncryptionOnlyDuringLogin(t *testing.T) {
	c, _ := pipeConnections(t)
	err := c.EnableEncryption(make([]byte, 16))
	require.Error(t, err)

	c.SetState(protocol.StateLogin)
	require.NoError(t, c.EnableEncryption(make([]byte, 16)))
	assert.True(t, c.Codec().EncryptionEnabled())
}

func TestConnection_KeepAliveMismatchIsRejected(t *testing.T) {
	c, _ := pipeConnections(t)
	c.ArmKeepAlive(42)
	require.Error(t, c.AcknowledgeKeepAlive(99))
	require.NoError(t, c.AcknowledgeKeepAlive(42))
}

func TestConnection_KeepAliveOverdue(t *testing.T) {
	c, _ := pipeConnections(t)
	c.ArmKeepAlive(1)
	assert.False(t, c.KeepAliveOverdue(time.Now()))
	assert.True(t, c.KeepAliveOverdue(time.Now().Add(KeepAliveTimeout+time.Second)))
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	c, _ := pipeConnections(t)
	require.NoError(t, c.Close(nil))
	require.NoError(t, c.Close(nil))
	assert.True(t, c.Closed())
}

func TestConnection_EnqueueAfterCloseFails(t *testing.T) {
	c, client := pipeConnections(t)
	go func() {
		buf := make([]byte, 64)
		for {
			if _, err := client.Read(buf); err != nil {
				return
			}
		}
	}()
	c.Close(nil)
	err := c.EnqueuePacket(protocol.StateStatus, protocol.ClientBound, "status_response", []byte{0})
	require.Error(t, err)
}
