// Package configpacket holds the Configuration-state packets: registry
// sync, feature flags, and the handshake into Play.
package configpacket

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/pumpkinwire/mcserver/internal/varint"
)

// ClientInformation is the serverbound settings packet (locale, view
// distance, chat mode, ...). Only the fields the server acts on are kept;
// the rest of the payload is preserved as RawTail for forwarding/logging.
type ClientInformation struct {
	Locale       string
	ViewDistance int8
	RawTail      []byte
}

// DecodeClientInformation reads the serverbound client information packet.
func DecodeClientInformation(r *bufio.Reader) (ClientInformation, error) {
	var ci ClientInformation
	locale, err := varint.ReadString(r, 16)
	if err != nil {
		return ClientInformation{}, fmt.Errorf("client information: locale: %w", err)
	}
	ci.Locale = locale

	vd, err := r.ReadByte()
	if err != nil {
		return ClientInformation{}, fmt.Errorf("client information: view distance: %w", err)
	}
	ci.ViewDistance = int8(vd)

	tail, err := io.ReadAll(r)
	if err != nil {
		return ClientInformation{}, fmt.Errorf("client information: tail: %w", err)
	}
	ci.RawTail = tail
	return ci, nil
}

// PluginMessage carries an opaque namespaced-identifier channel and payload,
// used in both directions for resource-pack negotiation and brand exchange.
type PluginMessage struct {
	Channel string
	Data    []byte
}

// DecodePluginMessage reads a serverbound plugin message.
func DecodePluginMessage(r *bufio.Reader) (PluginMessage, error) {
	channel, err := varint.ReadString(r, 32767)
	if err != nil {
		return PluginMessage{}, fmt.Errorf("plugin message: channel: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return PluginMessage{}, fmt.Errorf("plugin message: data: %w", err)
	}
	return PluginMessage{Channel: channel, Data: data}, nil
}

// Encode serializes a clientbound plugin message.
func (p PluginMessage) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteString(&buf, p.Channel, 32767)
	buf.Write(p.Data)
	return buf.Bytes()
}

// RegistryData carries one raw NBT-encoded registry codec entry. Block,
// item, and entity static data is treated as a read-only registry supplied
// externally; this packet forwards it verbatim.
type RegistryData struct {
	NBT []byte
}

// Encode serializes a RegistryData packet body.
func (p RegistryData) Encode() []byte {
	return append([]byte(nil), p.NBT...)
}

// KnownPack identifies one data pack both client and server already share,
// avoiding retransmission of its registry contents.
type KnownPack struct {
	Namespace string
	ID        string
	Version   string
}

// KnownPacks is exchanged in both directions (clientbound to announce,
// serverbound as acknowledgement of which packs the client also has).
type KnownPacks struct {
	Packs []KnownPack
}

// Encode serializes a clientbound KnownPacks packet body.
func (p KnownPacks) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteVarInt(&buf, int32(len(p.Packs)))
	for _, pack := range p.Packs {
		varint.WriteString(&buf, pack.Namespace, varint.DefaultStringMax)
		varint.WriteString(&buf, pack.ID, varint.DefaultStringMax)
		varint.WriteString(&buf, pack.Version, varint.DefaultStringMax)
	}
	return buf.Bytes()
}

// DecodeKnownPacks reads the serverbound acknowledgement.
func DecodeKnownPacks(r *bufio.Reader) (KnownPacks, error) {
	n, err := varint.ReadVarInt(r)
	if err != nil {
		return KnownPacks{}, fmt.Errorf("known packs: count: %w", err)
	}
	packs := make([]KnownPack, 0, n)
	for i := int32(0); i < n; i++ {
		ns, err := varint.ReadString(r, varint.DefaultStringMax)
		if err != nil {
			return KnownPacks{}, fmt.Errorf("known packs[%d]: namespace: %w", i, err)
		}
		id, err := varint.ReadString(r, varint.DefaultStringMax)
		if err != nil {
			return KnownPacks{}, fmt.Errorf("known packs[%d]: id: %w", i, err)
		}
		version, err := varint.ReadString(r, varint.DefaultStringMax)
		if err != nil {
			return KnownPacks{}, fmt.Errorf("known packs[%d]: version: %w", i, err)
		}
		packs = append(packs, KnownPack{Namespace: ns, ID: id, Version: version})
	}
	return KnownPacks{Packs: packs}, nil
}

// FeatureFlags announces enabled datapack feature flags (e.g.
// "minecraft:vanilla").
type FeatureFlags struct {
	Flags []string
}

// Encode serializes a FeatureFlags packet body.
func (p FeatureFlags) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteVarInt(&buf, int32(len(p.Flags)))
	for _, flag := range p.Flags {
		varint.WriteString(&buf, flag, varint.DefaultStringMax)
	}
	return buf.Bytes()
}

// FinishConfiguration is the clientbound signal that registry sync is
// complete; FinishAck is the serverbound reply that advances to Play.
type FinishConfiguration struct{}

// Encode serializes a FinishConfiguration packet body (empty).
func (FinishConfiguration) Encode() []byte { return nil }

// FinishAck is the serverbound acknowledgement with no fields.
type FinishAck struct{}

// DecodeFinishAck consumes nothing.
func DecodeFinishAck(r *bufio.Reader) (FinishAck, error) {
	return FinishAck{}, nil
}

// KeepAlive carries an opaque nonce; the server tracks the outstanding id
// and the client must echo it back.
type KeepAlive struct {
	ID int64
}

// Encode serializes a clientbound KeepAlive packet body.
func (p KeepAlive) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteVarLong(&buf, p.ID)
	return buf.Bytes()
}

// DecodeKeepAlive reads a serverbound KeepAlive reply.
func DecodeKeepAlive(r *bufio.Reader) (KeepAlive, error) {
	id, err := varint.ReadVarLong(r)
	if err != nil {
		return KeepAlive{}, fmt.Errorf("keep alive: %w", err)
	}
	return KeepAlive{ID: id}, nil
}

// Disconnect terminates the connection during Configuration.
type Disconnect struct {
	Reason string
}

// Encode serializes a Configuration-state Disconnect packet body.
func (p Disconnect) Encode() []byte {
	var buf bytes.Buffer
	varint.WriteString(&buf, p.Reason, varint.DefaultStringMax)
	return buf.Bytes()
}
