// Package handshakepacket holds the single Handshake-state packet.
package handshakepacket

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/pumpkinwire/mcserver/internal/varint"
)

// NextState is the state a client asks the server to switch to after the
// handshake.
type NextState int32

const (
	NextStatus NextState = 1
	NextLogin  NextState = 2
)

// Handshake is the only serverbound packet in the Handshake state. It
// carries no response; the connection immediately transitions state.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	Next            NextState
}

// Decode reads a Handshake packet body.
func Decode(r *bufio.Reader) (Handshake, error) {
	var h Handshake
	var err error

	h.ProtocolVersion, err = varint.ReadVarInt(r)
	if err != nil {
		return Handshake{}, fmt.Errorf("handshake: protocol version: %w", err)
	}
	h.ServerAddress, err = varint.ReadString(r, 255)
	if err != nil {
		return Handshake{}, fmt.Errorf("handshake: server address: %w", err)
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return Handshake{}, fmt.Errorf("handshake: server port: %w", err)
	}
	h.ServerPort = uint16(portBuf[0])<<8 | uint16(portBuf[1])

	next, err := varint.ReadVarInt(r)
	if err != nil {
		return Handshake{}, fmt.Errorf("handshake: next state: %w", err)
	}
	h.Next = NextState(next)
	if h.Next != NextStatus && h.Next != NextLogin {
		return Handshake{}, fmt.Errorf("handshake: invalid next state %d", next)
	}

	return h, nil
}

// Encode serializes a Handshake packet body, for use by test clients.
func Encode(h Handshake) []byte {
	var buf bytes.Buffer
	varint.WriteVarInt(&buf, h.ProtocolVersion)
	varint.WriteString(&buf, h.ServerAddress, 255)
	buf.WriteByte(byte(h.ServerPort >> 8))
	buf.WriteByte(byte(h.ServerPort))
	varint.WriteVarInt(&buf, int32(h.Next))
	return buf.Bytes()
}
