// Package rcon implements the Source RCON protocol: a length-prefixed,
// little-endian TCP protocol external tools use to authenticate and issue
// console commands against a running server. It is structurally the same
// framing idea as internal/frame (length header read first, exact-size body
// read second) but uses fixed int32 fields instead of VarInt/AES, per the
// Source RCON spec.
package rcon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Packet types defined by the Source RCON protocol.
const (
	typeResponse = 0 // SERVERDATA_RESPONSE_VALUE
	typeCommand  = 2 // SERVERDATA_EXECCOMMAND / SERVERDATA_AUTH_RESPONSE
	typeAuth     = 3 // SERVERDATA_AUTH
)

// MaxBodySize is the largest command/response body this server accepts or
// produces in one packet. Responses longer than this are split across
// multiple SERVERDATA_RESPONSE_VALUE packets.
const MaxBodySize = 4096

// minPacketSize is the smallest legal "size" field: two int32 fields plus
// the two trailing NUL bytes, with an empty body.
const minPacketSize = 4 + 4 + 2

// ErrPacketTooLarge is returned when a client's declared packet size falls
// outside the protocol's sane bounds.
var ErrPacketTooLarge = errors.New("rcon: declared packet size out of bounds")

// packet is one decoded Source RCON frame.
type packet struct {
	id   int32
	typ  int32
	body string
}

// readPacket reads one frame from r: an int32 size (byte count of
// everything that follows), an int32 request id, an int32 type, a body,
// and two trailing NUL bytes.
func readPacket(r io.Reader) (packet, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return packet{}, err
	}
	size := int32(binary.LittleEndian.Uint32(sizeBuf[:]))
	if size < minPacketSize || int(size) > minPacketSize+MaxBodySize {
		return packet{}, ErrPacketTooLarge
	}

	rest := make([]byte, size)
	if _, err := io.ReadFull(r, rest); err != nil {
		return packet{}, fmt.Errorf("rcon: reading body: %w", err)
	}

	id := int32(binary.LittleEndian.Uint32(rest[0:4]))
	typ := int32(binary.LittleEndian.Uint32(rest[4:8]))
	body := rest[8 : len(rest)-2] // drop the body NUL terminator and the pad byte
	return packet{id: id, typ: typ, body: string(body)}, nil
}

// writePacket frames and writes one reply packet.
func writePacket(w io.Writer, id, typ int32, body string) error {
	size := int32(4 + 4 + len(body) + 2)
	buf := make([]byte, 0, 4+size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(typ))
	buf = append(buf, body...)
	buf = append(buf, 0, 0)
	_, err := w.Write(buf)
	return err
}

// writeResponse sends body as one or more SERVERDATA_RESPONSE_VALUE
// packets, chunked to MaxBodySize so a long command's output never
// produces an oversized frame.
func writeResponse(w io.Writer, id int32, body string) error {
	if body == "" {
		return writePacket(w, id, typeResponse, "")
	}
	for len(body) > 0 {
		n := len(body)
		if n > MaxBodySize {
			n = MaxBodySize
		}
		if err := writePacket(w, id, typeResponse, body[:n]); err != nil {
			return err
		}
		body = body[n:]
	}
	return nil
}
