package query

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStats struct {
	motd    string
	mapName string
	players int
	max     int
	names   []string
}

func (s stubStats) MOTD() string          { return s.motd }
func (s stubStats) MapName() string       { return s.mapName }
func (s stubStats) PlayerCount() int      { return s.players }
func (s stubStats) MaxPlayers() int       { return s.max }
func (s stubStats) PlayerNames() []string { return s.names }

func startTestServer(t *testing.T, stats StatsProvider) (*net.UDPConn, *Server) {
	t.Helper()
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	s := New(Config{BindAddress: "127.0.0.1", HostPort: 25565}, stats)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.Serve(ctx, ln)
	return ln, s
}

func handshakeAndReadToken(t *testing.T, conn *net.UDPConn, server net.Addr) int32 {
	t.Helper()
	req := append([]byte{0xFE, 0xFD, typeHandshake}, beUint32Bytes(1)...)
	_, err := conn.WriteTo(req, server)
	require.NoError(t, err)

	buf := make([]byte, 256)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, typeHandshake, buf[0])

	tokenStr := string(bytes.TrimRight(buf[5:n], "\x00"))
	token, err := strconv.ParseInt(tokenStr, 10, 32)
	require.NoError(t, err)
	return int32(token)
}

func TestServer_HandshakeIssuesToken(t *testing.T) {
	ln, _ := startTestServer(t, stubStats{})
	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	token := handshakeAndReadToken(t, client, ln.LocalAddr())
	assert.NotZero(t, token)
}

func TestServer_BasicStatRequiresValidToken(t *testing.T) {
	ln, _ := startTestServer(t, stubStats{motd: "A Server", mapName: "world", players: 2, max: 20})
	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	req := append([]byte{0xFE, 0xFD, typeStat}, beUint32Bytes(1)...)
	req = append(req, beUint32Bytes(999999)...) // bogus token, no prior handshake
	_, err = client.WriteTo(req, ln.LocalAddr())
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 256)
	_, _, err = client.ReadFrom(buf)
	assert.Error(t, err, "server must not answer a stat request with an unknown token")
}

func TestServer_BasicStatRoundTrip(t *testing.T) {
	ln, _ := startTestServer(t, stubStats{motd: "A Server", mapName: "world", players: 2, max: 20})
	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	token := handshakeAndReadToken(t, client, ln.LocalAddr())

	req := append([]byte{0xFE, 0xFD, typeStat}, beUint32Bytes(1)...)
	req = append(req, beUint32Bytes(uint32(token))...)
	_, err = client.WriteTo(req, ln.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 1460)
	n, _, err := client.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, typeStat, buf[0])

	body := string(buf[5:n])
	assert.True(t, strings.Contains(body, "A Server"))
	assert.True(t, strings.Contains(body, "world"))
	assert.True(t, strings.Contains(body, "2"))
}

func TestServer_FullStatListsPlayers(t *testing.T) {
	ln, _ := startTestServer(t, stubStats{
		motd: "A Server", mapName: "world", players: 1, max: 20, names: []string{"Steve"},
	})
	client, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	token := handshakeAndReadToken(t, client, ln.LocalAddr())

	req := append([]byte{0xFE, 0xFD, typeStat}, beUint32Bytes(1)...)
	req = append(req, beUint32Bytes(uint32(token))...)
	req = append(req, 0, 0, 0, 0) // full-stat padding
	_, err = client.WriteTo(req, ln.LocalAddr())
	require.NoError(t, err)

	buf := make([]byte, 1460)
	n, _, err := client.ReadFrom(buf)
	require.NoError(t, err)

	body := string(buf[5:n])
	assert.True(t, strings.Contains(body, "Steve"))
	assert.True(t, strings.Contains(body, "hostname"))
}

func beUint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
