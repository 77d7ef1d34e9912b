// Package protocol holds the PacketRegistry: the single authority mapping
// (state, direction, numeric id) to a packet name. Per-state packages
// (handshakepacket, statuspacket, loginpacket, configpacket, playpacket) hold
// the typed structs and their Encode/Decode methods; this file holds only the
// id table, generated conceptually from a single source of truth per packet
// so that adding a packet means touching one table entry and one struct.
package protocol

import "fmt"

// State is a connection's current protocol state, which determines the
// legal inbound/outbound packet id sets.
type State int

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateConfiguration
	StatePlay
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StateConfiguration:
		return "configuration"
	case StatePlay:
		return "play"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Direction distinguishes client-to-server from server-to-client packets.
type Direction int

const (
	ServerBound Direction = iota
	ClientBound
)

func (d Direction) String() string {
	if d == ServerBound {
		return "serverbound"
	}
	return "clientbound"
}

// packetKey identifies one cell of the registry.
type packetKey struct {
	state     State
	direction Direction
	id        int32
}

// registry is the (state, direction, id) -> name table, written as a Go map
// literal. Handlers never speak numeric ids directly; they look ids up by
// name through MustID and Name.
var registry = map[packetKey]string{
	{StateHandshake, ServerBound, 0x00}: "handshake",

	{StateStatus, ServerBound, 0x00}: "status_request",
	{StateStatus, ServerBound, 0x01}: "ping_request",
	{StateStatus, ClientBound, 0x00}: "status_response",
	{StateStatus, ClientBound, 0x01}: "pong_response",

	{StateLogin, ServerBound, 0x00}: "login_start",
	{StateLogin, ServerBound, 0x01}: "encryption_response",
	{StateLogin, ServerBound, 0x03}: "login_acknowledged",
	{StateLogin, ClientBound, 0x00}: "login_disconnect",
	{StateLogin, ClientBound, 0x01}: "encryption_request",
	{StateLogin, ClientBound, 0x02}: "login_success",
	{StateLogin, ClientBound, 0x03}: "set_compression",

	{StateConfiguration, ServerBound, 0x00}: "client_information",
	{StateConfiguration, ServerBound, 0x02}: "plugin_message_serverbound",
	{StateConfiguration, ServerBound, 0x03}: "finish_configuration_ack",
	{StateConfiguration, ServerBound, 0x04}: "keep_alive_serverbound",
	{StateConfiguration, ServerBound, 0x07}: "known_packs_ack",
	{StateConfiguration, ClientBound, 0x01}: "plugin_message_clientbound",
	{StateConfiguration, ClientBound, 0x02}: "configuration_disconnect",
	{StateConfiguration, ClientBound, 0x03}: "finish_configuration",
	{StateConfiguration, ClientBound, 0x04}: "keep_alive_clientbound",
	{StateConfiguration, ClientBound, 0x07}: "registry_data",
	{StateConfiguration, ClientBound, 0x0E}: "feature_flags",
	{StateConfiguration, ClientBound, 0x0F}: "known_packs",

	{StatePlay, ServerBound, 0x00}: "confirm_teleportation",
	{StatePlay, ServerBound, 0x0B}: "click_container",
	{StatePlay, ServerBound, 0x0F}: "close_container_serverbound",
	{StatePlay, ServerBound, 0x17}: "keep_alive_serverbound",
	{StatePlay, ServerBound, 0x1D}: "set_player_position",
	{StatePlay, ServerBound, 0x1E}: "set_player_position_and_rotation",
	{StatePlay, ServerBound, 0x1F}: "set_player_rotation",
	{StatePlay, ServerBound, 0x24}: "player_action",
	{StatePlay, ServerBound, 0x38}: "chat_message",
	{StatePlay, ServerBound, 0x3C}: "use_item_on",

	{StatePlay, ClientBound, 0x0A}: "block_update",
	{StatePlay, ClientBound, 0x0C}: "open_screen",
	{StatePlay, ClientBound, 0x0D}: "close_container_clientbound",
	{StatePlay, ClientBound, 0x0E}: "set_container_content",
	{StatePlay, ClientBound, 0x13}: "set_container_slot",
	{StatePlay, ClientBound, 0x1D}: "play_disconnect",
	{StatePlay, ClientBound, 0x27}: "keep_alive_clientbound",
	{StatePlay, ClientBound, 0x28}: "chunk_data_and_light",
	{StatePlay, ClientBound, 0x2C}: "login_play",
	{StatePlay, ClientBound, 0x66}: "system_chat_message",
	{StatePlay, ClientBound, 0x6F}: "update_time",
}

// Name returns the registered packet name for (state, direction, id).
// The bool is false when the id is not registered for that cell, which is a
// fatal decode error (WrongState / Malformed) for the caller to raise.
func Name(state State, direction Direction, id int32) (string, bool) {
	name, ok := registry[packetKey{state, direction, id}]
	return name, ok
}

// MustID looks up the numeric id for a registered packet name within a
// (state, direction) cell. Encoding a packet whose name is absent from its
// state's set is a programmer error, so this panics rather than returning an
// error.
func MustID(state State, direction Direction, name string) int32 {
	for key, n := range registry {
		if key.state == state && key.direction == direction && n == name {
			return key.id
		}
	}
	panic(fmt.Sprintf("protocol: packet %q not registered for %s/%s", name, state, direction))
}
