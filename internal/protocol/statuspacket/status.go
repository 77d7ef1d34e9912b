// Package statuspacket holds the Status-state packets: the server-list
// ping exchange.
package statuspacket

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pumpkinwire/mcserver/internal/varint"
)

// Request is the serverbound "status request" packet; it has no fields.
type Request struct{}

// DecodeRequest consumes nothing (the body is empty) but exists for symmetry
// with the rest of the registry.
func DecodeRequest(r *bufio.Reader) (Request, error) {
	return Request{}, nil
}

// Response is the clientbound status JSON document.
type Response struct {
	JSON string
}

// Encode serializes a Response packet body.
func Encode(resp Response) []byte {
	var buf bytes.Buffer
	varint.WriteString(&buf, resp.JSON, varint.DefaultStringMax)
	return buf.Bytes()
}

// DecodeResponse is provided for test clients exercising the full round
// trip.
func DecodeResponse(r *bufio.Reader) (Response, error) {
	s, err := varint.ReadString(r, varint.DefaultStringMax)
	if err != nil {
		return Response{}, fmt.Errorf("status response: %w", err)
	}
	return Response{JSON: s}, nil
}

// Ping carries an opaque payload the server must echo back verbatim.
type Ping struct {
	Payload int64
}

// DecodePing reads the serverbound ping request.
func DecodePing(r *bufio.Reader) (Ping, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Ping{}, fmt.Errorf("ping request: %w", err)
	}
	return Ping{Payload: int64(binary.BigEndian.Uint64(buf[:]))}, nil
}

// EncodePong serializes the clientbound pong response, echoing Payload.
func EncodePong(p Ping) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(p.Payload))
	return buf[:]
}
