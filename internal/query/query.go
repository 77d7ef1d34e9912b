// Package query implements the GameSpy4-derived UDP query protocol: a
// stateless challenge/response handshake followed by a basic or full server
// statistics reply, used by external server-list tools independently of
// RCON and of the Status-state JSON response.
package query

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	typeHandshake byte = 9
	typeStat      byte = 0
)

var requestMagic = [2]byte{0xFE, 0xFD}

// tokenTTL bounds how long a handshake challenge token remains valid for a
// follow-up stat request from the same session.
const tokenTTL = 30 * time.Second

// StatsProvider supplies the live values reported in query responses. It is
// satisfied by a thin adapter over config.Configuration and *world.World so
// this package never imports either directly.
type StatsProvider interface {
	MOTD() string
	MapName() string
	PlayerCount() int
	MaxPlayers() int
	PlayerNames() []string
}

// Config configures the UDP listener.
type Config struct {
	BindAddress string
	Port        int
	HostPort    int // the game server's TCP port, reported back to clients
}

type issuedToken struct {
	value   int32
	expires time.Time
}

// Server answers GameSpy query requests over UDP.
type Server struct {
	cfg   Config
	stats StatsProvider

	mu     sync.Mutex
	tokens map[string]issuedToken // key: remote address string
}

// New creates a Server bound to cfg, reporting stats.
func New(cfg Config, stats StatsProvider) *Server {
	return &Server{cfg: cfg, stats: stats, tokens: make(map[string]issuedToken)}
}

// Run opens the UDP socket and serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.ParseIP(s.cfg.BindAddress), Port: s.cfg.Port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("query: listening on %s:%d: %w", s.cfg.BindAddress, s.cfg.Port, err)
	}
	return s.Serve(ctx, conn)
}

// Serve reads and answers query packets on conn until ctx is canceled or
// reading it errors.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1460)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("query: reading: %w", err)
		}
		packet := append([]byte(nil), buf[:n]...)
		s.handlePacket(conn, remote, packet)
	}
}

func (s *Server) handlePacket(conn *net.UDPConn, remote *net.UDPAddr, packet []byte) {
	if len(packet) < 7 || packet[0] != requestMagic[0] || packet[1] != requestMagic[1] {
		return
	}
	packetType := packet[2]
	sessionID := int32(binary.BigEndian.Uint32(packet[3:7]))
	rest := packet[7:]

	switch packetType {
	case typeHandshake:
		s.handleHandshake(conn, remote, sessionID)
	case typeStat:
		s.handleStat(conn, remote, sessionID, rest)
	default:
		slog.Debug("query: unknown packet type", "remote", remote, "type", packetType)
	}
}

func (s *Server) handleHandshake(conn *net.UDPConn, remote *net.UDPAddr, sessionID int32) {
	token := randomToken()
	s.mu.Lock()
	s.tokens[remote.String()] = issuedToken{value: token, expires: time.Now().Add(tokenTTL)}
	s.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteByte(typeHandshake)
	writeBE32(&buf, sessionID)
	buf.WriteString(strconv.FormatInt(int64(token), 10))
	buf.WriteByte(0)

	if _, err := conn.WriteToUDP(buf.Bytes(), remote); err != nil {
		slog.Warn("query: handshake response failed", "remote", remote, "error", err)
	}
}

// handleStat answers a basic or full stat request. rest holds the
// 4-byte challenge token, optionally followed by 4 padding bytes that
// signal a full-stat request rather than basic.
func (s *Server) handleStat(conn *net.UDPConn, remote *net.UDPAddr, sessionID int32, rest []byte) {
	if len(rest) < 4 {
		return
	}
	claimed := int32(binary.BigEndian.Uint32(rest[:4]))
	if !s.validToken(remote, claimed) {
		slog.Debug("query: stat request with stale or unknown token", "remote", remote)
		return
	}
	full := len(rest) >= 8

	var payload []byte
	if full {
		payload = s.fullStatPayload()
	} else {
		payload = s.basicStatPayload()
	}

	var buf bytes.Buffer
	buf.WriteByte(typeStat)
	writeBE32(&buf, sessionID)
	buf.Write(payload)

	if _, err := conn.WriteToUDP(buf.Bytes(), remote); err != nil {
		slog.Warn("query: stat response failed", "remote", remote, "error", err)
	}
}

func (s *Server) validToken(remote *net.UDPAddr, claimed int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[remote.String()]
	if !ok || time.Now().After(tok.expires) {
		delete(s.tokens, remote.String())
		return false
	}
	return tok.value == claimed
}

func (s *Server) basicStatPayload() []byte {
	var buf bytes.Buffer
	writeCString(&buf, s.stats.MOTD())
	writeCString(&buf, "SMP")
	writeCString(&buf, s.stats.MapName())
	writeCString(&buf, strconv.Itoa(s.stats.PlayerCount()))
	writeCString(&buf, strconv.Itoa(s.stats.MaxPlayers()))
	buf.WriteByte(byte(s.cfg.HostPort))
	buf.WriteByte(byte(s.cfg.HostPort >> 8))
	writeCString(&buf, s.cfg.BindAddress)
	return buf.Bytes()
}

func (s *Server) fullStatPayload() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0x73, 0x70, 0x6C, 0x69, 0x74, 0x6E, 0x75, 0x6D, 0x00, 0x80, 0x00})

	kv := [][2]string{
		{"hostname", s.stats.MOTD()},
		{"gametype", "SMP"},
		{"game_id", "MINECRAFT"},
		{"version", "1.21"},
		{"plugins", ""},
		{"map", s.stats.MapName()},
		{"numplayers", strconv.Itoa(s.stats.PlayerCount())},
		{"maxplayers", strconv.Itoa(s.stats.MaxPlayers())},
		{"hostport", strconv.Itoa(s.cfg.HostPort)},
		{"hostip", s.cfg.BindAddress},
	}
	for _, pair := range kv {
		writeCString(&buf, pair[0])
		writeCString(&buf, pair[1])
	}
	buf.WriteByte(0)
	buf.WriteByte(0)

	buf.Write([]byte{0x01, 'p', 'l', 'a', 'y', 'e', 'r', '_', 0x00, 0x00})
	for _, name := range s.stats.PlayerNames() {
		writeCString(&buf, name)
	}
	buf.WriteByte(0)

	return buf.Bytes()
}

func randomToken() int32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return int32(time.Now().UnixNano() & 0x7FFFFFFF)
	}
	return int32(binary.BigEndian.Uint32(b[:]) & 0x7FFFFFFF)
}

func writeBE32(buf *bytes.Buffer, v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	buf.Write(b[:])
}

func writeCString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}
