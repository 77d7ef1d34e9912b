// Package model holds the data types shared across the connection,
// container, and world layers: player identity, inventory contents, and
// world coordinates.
package model

import "github.com/google/uuid"

// ProfileProperty is one signed property of a GameProfile (e.g. "textures").
type ProfileProperty struct {
	Name      string
	Value     string
	Signature string // empty when unsigned
}

// GameProfile identifies a player: created during Login, immutable
// thereafter, shared between the Connection and the Player it joins.
type GameProfile struct {
	UUID       uuid.UUID
	Name       string
	Properties []ProfileProperty
}
