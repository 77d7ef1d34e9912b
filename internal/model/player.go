package model

import "sync"

// GameMode enumerates vanilla game modes.
type GameMode int32

const (
	GameModeSurvival GameMode = iota
	GameModeCreative
	GameModeAdventure
	GameModeSpectator
)

// PermissionLevel is a vanilla op level, 0 (none) through 4 (owner).
type PermissionLevel int32

const (
	PermissionNone PermissionLevel = iota
	PermissionModerator
	PermissionGameMaster
	PermissionAdmin
	PermissionOwner
)

// InventorySlots is the number of slots in a player's main inventory
// (9 hotbar + 27 main + 4 armor + 1 offhand = 41), rounded up to 54 so the
// same slot array also covers the largest shared container a player can
// observe.
const InventorySlots = 54

// Player is owned by the world; a Connection holds only a weak reference
// (by entity id) to it, never the pointer directly, so the world remains the
// single writer.
type Player struct {
	EntityID        int32
	Profile         GameProfile
	GameMode        GameMode
	Permission      PermissionLevel
	X, Y, Z         float64
	Yaw, Pitch      float32
	HeldSlot        int32
	LastKeepAliveID int64
	LatencyMillis   int32

	mu              sync.Mutex
	inventory       [InventorySlots]*ItemStack
	openContainerID int32 // 0 = none
}

// NewPlayer creates a Player for the given profile at the default spawn
// position.
func NewPlayer(entityID int32, profile GameProfile) *Player {
	return &Player{
		EntityID: entityID,
		Profile:  profile,
		GameMode: GameModeSurvival,
	}
}

// Slot returns a clone of the item in the given inventory slot.
func (p *Player) Slot(i int) *ItemStack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= InventorySlots {
		return nil
	}
	return p.inventory[i].Clone()
}

// SetSlot replaces the contents of the given inventory slot.
func (p *Player) SetSlot(i int, stack *ItemStack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= InventorySlots {
		return
	}
	p.inventory[i] = stack
}

// OpenContainerID returns the currently opened container id, or 0 if none.
func (p *Player) OpenContainerID() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.openContainerID
}

// SetOpenContainerID records which container the player currently has open.
func (p *Player) SetOpenContainerID(id int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openContainerID = id
}
