package container

import (
	"fmt"

	"github.com/pumpkinwire/mcserver/internal/model"
)

// Action enumerates the click modes a single Interact call can perform.
// Drag-paint is modeled separately via BeginDrag/AddDragSlot/EndDrag since
// it spans multiple packets.
type Action int

const (
	ActionPickup Action = iota
	ActionQuickMove
	ActionSwap
	ActionClone
	ActionThrow
	ActionPickupAll
)

// Click describes one non-drag interaction with a container.
type Click struct {
	ClaimedStateID uint32
	Slot           int // -1 means "outside inventory" (drop carried item)
	Button         int8
	Action         Action
}

// Result carries the container's state after a successful Interact, for
// the caller to broadcast as SetContainerContent or SetContainerSlot.
type Result struct {
	StateID uint32
	Carried *model.ItemStack
	// ChangedSlots lists indices that actually changed, for a targeted
	// SetContainerSlot broadcast; callers may ignore this and always send
	// a full snapshot instead.
	ChangedSlots []int
}

// Interact validates observer membership and state-id freshness, applies
// click semantics, and increments the state id exactly once.
func (s *Store) Interact(player PlayerRef, id int32, click Click, carried *model.ItemStack) (Result, *model.ItemStack, error) {
	c, ok := s.Get(id)
	if !ok {
		return Result{}, carried, fmt.Errorf("container: no such container %d", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, observing := c.observers[player]; !observing {
		return Result{}, carried, ErrNotObserving
	}
	if click.ClaimedStateID != c.stateID {
		return Result{StateID: c.stateID}, carried, ErrStateMismatch
	}

	before := c.totalItemCount() + carriedCount(carried)
	changed, newCarried := applyClick(c.slots, click, carried)
	after := c.totalItemCount() + carriedCount(newCarried)

	if isMoveOnly(click.Action) && before != after {
		return Result{StateID: c.stateID}, carried, fmt.Errorf("container: move-only action changed total item count %d -> %d", before, after)
	}

	c.stateID++
	return Result{StateID: c.stateID, Carried: newCarried, ChangedSlots: changed}, newCarried, nil
}

func isMoveOnly(a Action) bool {
	return a == ActionPickup || a == ActionQuickMove || a == ActionSwap || a == ActionPickupAll
}

func carriedCount(s *model.ItemStack) int {
	if s.Empty() {
		return 0
	}
	return int(s.Count)
}

// applyClick mutates slots in place per vanilla click semantics and returns
// the list of changed slot indices plus the resulting carried stack.
func applyClick(slots []*model.ItemStack, click Click, carried *model.ItemStack) ([]int, *model.ItemStack) {
	switch click.Action {
	case ActionThrow:
		if click.Slot < 0 || click.Slot >= len(slots) || slots[click.Slot].Empty() {
			return nil, carried
		}
		dropped := slots[click.Slot]
		if click.Button == 1 {
			// Drop entire stack.
			slots[click.Slot] = nil
			return []int{click.Slot}, carried
		}
		dropped.Count--
		if dropped.Count == 0 {
			slots[click.Slot] = nil
		}
		return []int{click.Slot}, carried

	case ActionClone:
		if click.Slot < 0 || click.Slot >= len(slots) {
			return nil, carried
		}
		return nil, slots[click.Slot].Clone()

	case ActionSwap:
		if click.Slot < 0 || click.Slot >= len(slots) {
			return nil, carried
		}
		slots[click.Slot], carried = carried, slots[click.Slot]
		return []int{click.Slot}, carried

	case ActionPickupAll:
		if carried.Empty() {
			return nil, carried
		}
		var changed []int
		for i, s := range slots {
			if carried.Count >= 64 {
				break
			}
			if model.SameType(s, carried) {
				take := uint8(64) - carried.Count
				if take > s.Count {
					take = s.Count
				}
				carried.Count += take
				s.Count -= take
				if s.Count == 0 {
					slots[i] = nil
				}
				changed = append(changed, i)
			}
		}
		return changed, carried

	default: // ActionPickup, ActionQuickMove: pickup/place semantics
		return applyPickupOrPlace(slots, click, carried)
	}
}

func applyPickupOrPlace(slots []*model.ItemStack, click Click, carried *model.ItemStack) ([]int, *model.ItemStack) {
	if click.Slot < 0 || click.Slot >= len(slots) {
		// Clicked outside the window: drop the entire carried stack.
		return nil, nil
	}
	target := slots[click.Slot]

	if carried.Empty() {
		if click.Button == 1 {
			// Right-click split: take half, rounded up, leave the rest.
			if target.Empty() {
				return nil, carried
			}
			half := (target.Count + 1) / 2
			newCarried := &model.ItemStack{ItemID: target.ItemID, Count: half, NBT: target.NBT}
			target.Count -= half
			if target.Count == 0 {
				slots[click.Slot] = nil
			}
			return []int{click.Slot}, newCarried
		}
		slots[click.Slot] = nil
		return []int{click.Slot}, target
	}

	if target.Empty() {
		if click.Button == 1 {
			one := &model.ItemStack{ItemID: carried.ItemID, Count: 1, NBT: carried.NBT}
			slots[click.Slot] = one
			carried.Count--
			if carried.Count == 0 {
				carried = nil
			}
			return []int{click.Slot}, carried
		}
		slots[click.Slot] = carried
		return []int{click.Slot}, nil
	}

	if model.SameType(target, carried) {
		space := uint8(64) - target.Count
		if space == 0 {
			slots[click.Slot], carried = carried, target
			return []int{click.Slot}, carried
		}
		move := carried.Count
		if click.Button == 1 {
			move = 1
		}
		if move > space {
			move = space
		}
		target.Count += move
		carried.Count -= move
		if carried.Count == 0 {
			carried = nil
		}
		return []int{click.Slot}, carried
	}

	// Different item types: swap.
	slots[click.Slot], carried = carried, target
	return []int{click.Slot}, carried
}
