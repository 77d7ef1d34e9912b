// Package container implements the shared open-container registry: an
// ID-addressed map from container id to an OpenContainer, explicit observer
// sets, and vanilla click semantics (pickup, place, split, swap, drop,
// double-click gather, drag-paint).
package container

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pumpkinwire/mcserver/internal/model"
)

// Kind enumerates the fixed slot layouts a container can have. The core
// doesn't model block placement, so only the slot-count-determining kinds
// actually used by ContainerStore's invariants are listed.
type Kind int32

const (
	KindGeneric9x1 Kind = iota
	KindGeneric9x2
	KindGeneric9x3
	KindGeneric9x6
)

// SlotCount returns the fixed number of slots for kind.
func (k Kind) SlotCount() int {
	switch k {
	case KindGeneric9x1:
		return 9
	case KindGeneric9x2:
		return 18
	case KindGeneric9x3:
		return 27
	case KindGeneric9x6:
		return 54
	default:
		return 0
	}
}

// PlayerRef identifies an observing player without holding a pointer into
// the world — the indirection keeps OpenContainer and Player from holding
// cyclic references.
type PlayerRef int32 // entity id

// dragState tracks an in-progress drag-paint, one phase at a time.
type dragState struct {
	owner  PlayerRef
	button int8
	slots  map[int]struct{}
}

// OpenContainer is one live shared inventory: a chest, furnace, or other
// block-bound or player-bound slot grid.
type OpenContainer struct {
	ID   int32
	Kind Kind

	mu           sync.Mutex
	slots        []*model.ItemStack
	stateID      uint32
	observers    map[PlayerRef]struct{}
	drag         *dragState
	boundToWorld bool // true if a world block still references this container
}

func newOpenContainer(id int32, kind Kind) *OpenContainer {
	return &OpenContainer{
		ID:        id,
		Kind:      kind,
		slots:     make([]*model.ItemStack, kind.SlotCount()),
		observers: make(map[PlayerRef]struct{}),
	}
}

// StateID returns the container's current monotonically increasing
// state id.
func (c *OpenContainer) StateID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateID
}

// Snapshot returns a defensive copy of every slot, for the clientbound
// SetContainerContent full refresh.
func (c *OpenContainer) Snapshot() []*model.ItemStack {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.ItemStack, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Clone()
	}
	return out
}

// ObserverCount reports how many players currently have this container
// open.
func (c *OpenContainer) ObserverCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

// totalItemCount sums every slot's count, used to enforce the
// "conserved across move-only actions" invariant in tests.
func (c *OpenContainer) totalItemCount() int {
	total := 0
	for _, s := range c.slots {
		if !s.Empty() {
			total += int(s.Count)
		}
	}
	return total
}

// Store maps container id to OpenContainer. At most one open container per
// player is enforced by the caller (world/session layer) tracking
// Player.OpenContainerID; Store itself is id-addressed and doesn't know
// about that constraint.
type Store struct {
	nextID     atomic.Int32
	mu         sync.RWMutex
	containers map[int32]*OpenContainer

	// byLocation dedups containers bound to a world block so a second
	// player opening the same chest joins the existing container instead
	// of allocating a new one.
	byLocation map[model.ChunkLocalBlockPos]int32
}

// NewStore creates an empty ContainerStore.
func NewStore() *Store {
	return &Store{
		containers: make(map[int32]*OpenContainer),
		byLocation: make(map[model.ChunkLocalBlockPos]int32),
	}
}

// Open returns the container at location if one is already bound there
// (adding player to its observers), else allocates a fresh container of
// kind and binds it to location if location is non-nil.
func (s *Store) Open(player PlayerRef, kind Kind, location *model.ChunkLocalBlockPos) *OpenContainer {
	s.mu.Lock()
	if location != nil {
		if id, ok := s.byLocation[*location]; ok {
			c := s.containers[id]
			s.mu.Unlock()
			c.mu.Lock()
			c.observers[player] = struct{}{}
			c.mu.Unlock()
			return c
		}
	}

	id := s.nextID.Add(1)
	c := newOpenContainer(id, kind)
	c.observers[player] = struct{}{}
	if location != nil {
		c.boundToWorld = true
		s.byLocation[*location] = id
	}
	s.containers[id] = c
	s.mu.Unlock()
	return c
}

// Get looks up a container by id.
func (s *Store) Get(id int32) (*OpenContainer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.containers[id]
	return c, ok
}

// Close removes player from id's observer set, destroying the container if
// it becomes unobserved and isn't bound to a world block.
func (s *Store) Close(player PlayerRef, id int32) {
	s.mu.RLock()
	c, ok := s.containers[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	c.mu.Lock()
	delete(c.observers, player)
	if c.drag != nil && c.drag.owner == player {
		c.drag = nil
	}
	empty := len(c.observers) == 0 && !c.boundToWorld
	c.mu.Unlock()

	if empty {
		s.mu.Lock()
		delete(s.containers, id)
		s.mu.Unlock()
	}
}

// ErrStateMismatch is returned by Interact when the caller's claimed state
// id trails the container's current one; the caller must send a corrective
// full refresh rather than apply the click.
var ErrStateMismatch = fmt.Errorf("container: claimed state id is stale")

// ErrNotObserving is returned by Interact when player is not in the
// container's observer set.
var ErrNotObserving = fmt.Errorf("container: player is not observing this container")

// ErrDragConflict is returned when a player attempts to start or add to a
// drag while another player already owns one on the same container. It is
// recoverable: callers should log it and send the offending player a
// corrective refresh, not disconnect them.
var ErrDragConflict = fmt.Errorf("container: another player is already dragging this container")

// ErrDragOutOfOrder is returned when AddDragSlot or EndDrag is called
// without a matching BeginDrag, or EndDrag is called twice in a row.
var ErrDragOutOfOrder = fmt.Errorf("container: drag phase received out of order")

// BeginDrag starts a drag-paint gesture. button is the vanilla drag-type
// nibble (0 = left/even split, 4 = right/one each, 8 = middle/creative).
func (s *Store) BeginDrag(player PlayerRef, id int32, button int8) error {
	c, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("container: no such container %d", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, observing := c.observers[player]; !observing {
		return ErrNotObserving
	}
	if c.drag != nil && c.drag.owner != player {
		return ErrDragConflict
	}
	c.drag = &dragState{owner: player, button: button, slots: make(map[int]struct{})}
	return nil
}

// AddDragSlot records one slot visited during an in-progress drag.
func (s *Store) AddDragSlot(player PlayerRef, id int32, slot int) error {
	c, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("container: no such container %d", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag == nil {
		return ErrDragOutOfOrder
	}
	if c.drag.owner != player {
		return ErrDragConflict
	}
	if slot < 0 || slot >= len(c.slots) {
		return fmt.Errorf("container: drag slot %d out of range", slot)
	}
	c.drag.slots[slot] = struct{}{}
	return nil
}

// EndDrag closes the gesture, distributes the carried stack evenly across
// the visited slots per the drag's button type, and increments the state
// id exactly once regardless of how many slots were touched.
func (s *Store) EndDrag(player PlayerRef, id int32, carried *model.ItemStack) (Result, *model.ItemStack, error) {
	c, ok := s.Get(id)
	if !ok {
		return Result{}, carried, fmt.Errorf("container: no such container %d", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.drag == nil {
		return Result{}, carried, ErrDragOutOfOrder
	}
	if c.drag.owner != player {
		return Result{}, carried, ErrDragConflict
	}
	drag := c.drag
	c.drag = nil

	if carried.Empty() || len(drag.slots) == 0 {
		return Result{StateID: c.stateID}, carried, nil
	}

	perSlot, _ := dragShare(drag.button, carried.Count, len(drag.slots))
	if perSlot == 0 {
		return Result{StateID: c.stateID}, carried, nil
	}

	changed := make([]int, 0, len(drag.slots))
	for slot := range drag.slots {
		target := c.slots[slot]
		give := perSlot
		if target.Empty() {
			c.slots[slot] = &model.ItemStack{ItemID: carried.ItemID, Count: give, NBT: carried.NBT}
		} else if model.SameType(target, carried) {
			room := uint8(64) - target.Count
			if give > room {
				give = room
			}
			target.Count += give
		} else {
			continue // vanilla silently skips slots that can't accept the item
		}
		carried.Count -= give
		changed = append(changed, slot)
	}
	// Whatever the loop did not hand out, the remainder included, is still on
	// the cursor.
	if carried.Count == 0 {
		carried = nil
	}

	c.stateID++
	return Result{StateID: c.stateID, Carried: carried, ChangedSlots: changed}, carried, nil
}

// dragShare splits total across slotCount slots per the vanilla drag-type
// rule: left-click (0) splits evenly, right-click (4) gives one each,
// middle-click (8, creative-only) fills every slot to a full stack.
func dragShare(button int8, total uint8, slotCount int) (perSlot, remainder uint8) {
	switch button {
	case 4:
		if int(total) < slotCount {
			return 1, 0
		}
		return 1, total - uint8(slotCount)
	case 8:
		return 64, 0
	default:
		per := int(total) / slotCount
		return uint8(per), uint8(int(total) - per*slotCount)
	}
}
