// Package loginpacket holds the Login-state packets: the authentication and
// encryption/compression negotiation exchange.
package loginpacket

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/pumpkinwire/mcserver/internal/model"
	"github.com/pumpkinwire/mcserver/internal/varint"
)

// LoginStart is the first serverbound packet: the client's claimed name and
// (for online-mode clients that have a cached profile) its uuid.
type LoginStart struct {
	Name string
	UUID uuid.UUID
}

// DecodeLoginStart reads the serverbound login start packet.
func DecodeLoginStart(r *bufio.Reader) (LoginStart, error) {
	var ls LoginStart
	name, err := varint.ReadString(r, 16)
	if err != nil {
		return LoginStart{}, fmt.Errorf("login start: name: %w", err)
	}
	ls.Name = name
	ls.UUID, err = varint.ReadUUID(r)
	if err != nil {
		return LoginStart{}, fmt.Errorf("login start: uuid: %w", err)
	}
	return ls, nil
}

// EncryptionRequest is sent by the server when online-mode authentication
// is required.
type EncryptionRequest struct {
	ServerID           string
	PublicKey          []byte
	VerifyToken        []byte
	ShouldAuthenticate bool
}

// Encode serializes an EncryptionRequest packet body.
func (p EncryptionRequest) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteString(&buf, p.ServerID, 20)
	varint.WriteVarInt(&buf, int32(len(p.PublicKey)))
	buf.Write(p.PublicKey)
	varint.WriteVarInt(&buf, int32(len(p.VerifyToken)))
	buf.Write(p.VerifyToken)
	if p.ShouldAuthenticate {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// EncryptionResponse is the client's reply: the shared secret and verify
// token, each RSA-encrypted under the server's public key.
type EncryptionResponse struct {
	EncryptedSharedSecret []byte
	EncryptedVerifyToken  []byte
}

// DecodeEncryptionResponse reads the serverbound encryption response.
func DecodeEncryptionResponse(r *bufio.Reader) (EncryptionResponse, error) {
	var resp EncryptionResponse
	secretLen, err := varint.ReadVarInt(r)
	if err != nil {
		return EncryptionResponse{}, fmt.Errorf("encryption response: secret length: %w", err)
	}
	resp.EncryptedSharedSecret = make([]byte, secretLen)
	if _, err := io.ReadFull(r, resp.EncryptedSharedSecret); err != nil {
		return EncryptionResponse{}, fmt.Errorf("encryption response: secret: %w", err)
	}

	tokenLen, err := varint.ReadVarInt(r)
	if err != nil {
		return EncryptionResponse{}, fmt.Errorf("encryption response: token length: %w", err)
	}
	resp.EncryptedVerifyToken = make([]byte, tokenLen)
	if _, err := io.ReadFull(r, resp.EncryptedVerifyToken); err != nil {
		return EncryptionResponse{}, fmt.Errorf("encryption response: token: %w", err)
	}
	return resp, nil
}

// SetCompression announces the compression threshold; from the packet
// following this one, both sides use the compressed framing.
type SetCompression struct {
	Threshold int32
}

// Encode serializes a SetCompression packet body.
func (p SetCompression) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteVarInt(&buf, p.Threshold)
	return buf.Bytes()
}

// LoginSuccess carries the authenticated (or synthesized) GameProfile.
type LoginSuccess struct {
	Profile model.GameProfile
}

// Encode serializes a LoginSuccess packet body.
func (p LoginSuccess) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteUUID(&buf, p.Profile.UUID)
	varint.WriteString(&buf, p.Profile.Name, 16)
	varint.WriteVarInt(&buf, int32(len(p.Profile.Properties)))
	for _, prop := range p.Profile.Properties {
		varint.WriteString(&buf, prop.Name, varint.DefaultStringMax)
		varint.WriteString(&buf, prop.Value, varint.DefaultStringMax)
		if prop.Signature != "" {
			buf.WriteByte(1)
			varint.WriteString(&buf, prop.Signature, varint.DefaultStringMax)
		} else {
			buf.WriteByte(0)
		}
	}
	return buf.Bytes()
}

// Disconnect is sent to terminate the connection during Login with a
// human-readable (JSON chat component) reason.
type Disconnect struct {
	Reason string
}

// Encode serializes a Login-state Disconnect packet body.
func (p Disconnect) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteString(&buf, p.Reason, varint.DefaultStringMax)
	return buf.Bytes()
}

// Acknowledged is the serverbound LoginAck packet; it has no fields and
// advances the connection to Configuration.
type Acknowledged struct{}

// DecodeAcknowledged consumes nothing.
func DecodeAcknowledged(r *bufio.Reader) (Acknowledged, error) {
	return Acknowledged{}, nil
}
