// Package session implements the per-connection state machine: Handshake,
// Status, Login, Configuration, and Play. It owns the socket, the frame
// codec, and the reader/writer task pair that drive bytes through the
// VarCodec/FrameCodec/PacketRegistry stack in both directions.
package session

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pumpkinwire/mcserver/internal/frame"
	"github.com/pumpkinwire/mcserver/internal/model"
	"github.com/pumpkinwire/mcserver/internal/protocol"
)

// Default outbound queue and timeout constants, overridden by server
// configuration where applicable.
const (
	DefaultSendQueueSize = 256
	SendBackpressure     = 5 * time.Second
	KeepAliveInterval    = 15 * time.Second
	KeepAliveTimeout     = 30 * time.Second
)

// Connection is exclusively owned by its reader/writer task pair. The
// fields set while the connection is being established (protocol version,
// brand, profile, player) are guarded by mu; encryption and compression
// state lives in codec; state is atomic for lock-free hot-path reads.
type Connection struct {
	ID         string
	conn       net.Conn
	reader     *bufio.Reader
	remoteAddr string

	state atomic.Int32 // protocol.State

	codec *frame.Codec

	mu              sync.Mutex
	protocolVersion int32
	clientBrand     string
	player          *model.Player
	profile         model.GameProfile

	keepAliveMu          sync.Mutex
	keepAliveID          int64
	keepAliveSentAt      time.Time
	keepAliveOutstanding bool

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New wraps an accepted TCP connection in Handshake state with framing
// disabled for compression/encryption until negotiated.
func New(conn net.Conn, sendQueueSize int) *Connection {
	if sendQueueSize <= 0 {
		sendQueueSize = DefaultSendQueueSize
	}
	c := &Connection{
		ID:         uuid.NewString(),
		conn:       conn,
		reader:     bufio.NewReader(conn),
		remoteAddr: conn.RemoteAddr().String(),
		codec:      frame.NewCodec(),
		sendCh:     make(chan []byte, sendQueueSize),
		closeCh:    make(chan struct{}),
	}
	c.state.Store(int32(protocol.StateHandshake))
	return c
}

// State returns the connection's current protocol state.
func (c *Connection) State() protocol.State {
	return protocol.State(c.state.Load())
}

// SetState transitions the connection to a new protocol state. Per the
// spec's FSM, transitions only ever move forward; callers are responsible
// for only calling this on a valid inbound trigger.
func (c *Connection) SetState(s protocol.State) {
	c.state.Store(int32(s))
}

// RemoteAddr returns the connection's peer address string.
func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

// Reader returns the buffered reader the reader task decodes frames from.
func (c *Connection) Reader() *bufio.Reader {
	return c.reader
}

// Codec returns the connection's frame codec.
func (c *Connection) Codec() *frame.Codec {
	return c.codec
}

// ProtocolVersion returns the version negotiated during Handshake.
func (c *Connection) ProtocolVersion() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocolVersion
}

// SetProtocolVersion records the version from the Handshake packet.
func (c *Connection) SetProtocolVersion(v int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.protocolVersion = v
}

// ClientBrand returns the brand string reported via the Configuration
// plugin-message channel, if any.
func (c *Connection) ClientBrand() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientBrand
}

// SetClientBrand records the client's reported brand string.
func (c *Connection) SetClientBrand(brand string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientBrand = brand
}

// Profile returns the GameProfile established during Login.
func (c *Connection) Profile() model.GameProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// SetProfile records the GameProfile established during Login. Per the
// spec, the profile is immutable once created; callers must only invoke
// this once, during the Login state.
func (c *Connection) SetProfile(p model.GameProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = p
}

// Player returns the materialized Player, or nil before Play state.
func (c *Connection) Player() *model.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

// BindPlayer associates a materialized Player with this connection, once
// FinishConfigurationAck advances the FSM to Play.
func (c *Connection) BindPlayer(p *model.Player) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = p
}

// EnableEncryption switches on AES/CFB-8 for the remainder of the
// connection's lifetime. Per the data model invariant, this can only
// happen during Login and is irreversible.
func (c *Connection) EnableEncryption(sharedSecret []byte) error {
	if c.State() != protocol.StateLogin {
		return fmt.Errorf("session: encryption may only be enabled during login, got state %s", c.State())
	}
	return c.codec.EnableEncryption(sharedSecret)
}

// ArmKeepAlive records a newly sent keep-alive nonce and its send time, used
// by the tick driver to evaluate the 30s timeout deadline.
func (c *Connection) ArmKeepAlive(id int64) {
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	c.keepAliveID = id
	c.keepAliveSentAt = time.Now()
	c.keepAliveOutstanding = true
}

// AcknowledgeKeepAlive validates a client's keep-alive reply against the
// outstanding nonce. A mismatched id is fatal for the connection.
func (c *Connection) AcknowledgeKeepAlive(id int64) error {
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	if !c.keepAliveOutstanding {
		return fmt.Errorf("session: unexpected keep alive, none outstanding")
	}
	if id != c.keepAliveID {
		return fmt.Errorf("session: keep alive id mismatch: want %d got %d", c.keepAliveID, id)
	}
	c.keepAliveOutstanding = false
	return nil
}

// KeepAliveOverdue reports whether the outstanding keep-alive has exceeded
// KeepAliveTimeout without a reply.
func (c *Connection) KeepAliveOverdue(now time.Time) bool {
	c.keepAliveMu.Lock()
	defer c.keepAliveMu.Unlock()
	return c.keepAliveOutstanding && now.Sub(c.keepAliveSentAt) > KeepAliveTimeout
}

// Closed reports whether the connection has begun shutting down.
func (c *Connection) Closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// Close tears down the connection exactly once, closing the socket and
// waking any blocked Send/writePump goroutines.
func (c *Connection) Close(cause error) error {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		close(c.closeCh)
		c.conn.Close()
	})
	return c.closeErr
}

// EnqueuePacket frames and encrypts payload, then queues it for delivery.
// A full outbound queue blocks the caller up to SendBackpressure before the
// connection is dropped as a slow client.
func (c *Connection) EnqueuePacket(state protocol.State, direction protocol.Direction, name string, payload []byte) error {
	id := protocol.MustID(state, direction, name)
	frame, err := c.codec.EncodeFrame(id, payload)
	if err != nil {
		return fmt.Errorf("session: encoding %s: %w", name, err)
	}
	return c.enqueueFrame(frame)
}

func (c *Connection) enqueueFrame(frame []byte) error {
	if c.Closed() {
		return fmt.Errorf("session: connection closed")
	}

	timer := time.NewTimer(SendBackpressure)
	defer timer.Stop()

	select {
	case c.sendCh <- frame:
		return nil
	case <-timer.C:
		c.Close(fmt.Errorf("session: outbound queue full for %s", SendBackpressure))
		return fmt.Errorf("session: send backpressure exceeded, connection dropped")
	case <-c.closeCh:
		return fmt.Errorf("session: connection closed")
	}
}

// WritePump drains the outbound queue and writes frames to the socket,
// batching multiple queued frames into a single net.Buffers writev call
// when several have accumulated.
func (c *Connection) WritePump() {
	bufs := make(net.Buffers, 0, 16)
	for {
		select {
		case f, ok := <-c.sendCh:
			if !ok {
				return
			}
			queued := len(c.sendCh)
			if queued == 0 {
				if _, err := c.conn.Write(f); err != nil {
					c.Close(fmt.Errorf("session: write failed: %w", err))
					return
				}
				continue
			}

			bufs = bufs[:0]
			bufs = append(bufs, f)
			for range queued {
				bufs = append(bufs, <-c.sendCh)
			}
			if _, err := bufs.WriteTo(c.conn); err != nil {
				c.Close(fmt.Errorf("session: batch write failed: %w", err))
				return
			}
		case <-c.closeCh:
			return
		}
	}
}
