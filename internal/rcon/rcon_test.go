package rcon

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, handler CommandHandler) net.Addr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{Password: "hunter2"}, handler)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go s.Serve(ctx, ln)
	return ln.Addr()
}

func dial(t *testing.T, addr net.Addr) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServer_AuthSuccess(t *testing.T) {
	addr := startTestServer(t, CommandFunc(func(string) string { return "" }))
	conn := dial(t, addr)

	require.NoError(t, writePacket(conn, 1, typeAuth, "hunter2"))

	empty, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, typeResponse, int(empty.typ))

	resp, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), resp.id)
}

func TestServer_AuthFailureReturnsNegativeOne(t *testing.T) {
	addr := startTestServer(t, CommandFunc(func(string) string { return "" }))
	conn := dial(t, addr)

	require.NoError(t, writePacket(conn, 7, typeAuth, "wrong password"))

	empty, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, typeResponse, int(empty.typ))

	resp, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), resp.id)
}

func TestServer_CommandRequiresAuthFirst(t *testing.T) {
	addr := startTestServer(t, CommandFunc(func(string) string { return "should not run" }))
	conn := dial(t, addr)

	require.NoError(t, writePacket(conn, 3, typeCommand, "help"))

	resp, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), resp.id)
}

func TestServer_AuthenticatedCommandRoundTrip(t *testing.T) {
	var seen string
	addr := startTestServer(t, CommandFunc(func(cmd string) string {
		seen = cmd
		return "pong: " + cmd
	}))
	conn := dial(t, addr)

	require.NoError(t, writePacket(conn, 1, typeAuth, "hunter2"))
	_, err := readPacket(conn) // empty ack
	require.NoError(t, err)
	authResp, err := readPacket(conn)
	require.NoError(t, err)
	require.Equal(t, int32(1), authResp.id)

	require.NoError(t, writePacket(conn, 2, typeCommand, "say hello"))
	resp, err := readPacket(conn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), resp.id)
	assert.Equal(t, "pong: say hello", resp.body)
	assert.Equal(t, "say hello", seen)
}

func TestServer_LongResponseSplitsAcrossPackets(t *testing.T) {
	long := strings.Repeat("x", MaxBodySize+100)
	addr := startTestServer(t, CommandFunc(func(string) string { return long }))
	conn := dial(t, addr)

	require.NoError(t, writePacket(conn, 1, typeAuth, "hunter2"))
	_, err := readPacket(conn)
	require.NoError(t, err)
	_, err = readPacket(conn)
	require.NoError(t, err)

	require.NoError(t, writePacket(conn, 5, typeCommand, "dump"))

	first, err := readPacket(conn)
	require.NoError(t, err)
	assert.Len(t, first.body, MaxBodySize)

	second, err := readPacket(conn)
	require.NoError(t, err)
	assert.Len(t, second.body, 100)
}

func TestServer_ShutdownOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(Config{Password: "x"}, CommandFunc(func(string) string { return "" }))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after context cancellation")
	}
}
