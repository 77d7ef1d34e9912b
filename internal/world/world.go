// Package world owns the single piece of shared, long-lived game state:
// loaded chunks, connected players, and the open-container registry. Per
// the concurrency model, World takes its lock exclusively for the duration
// of a write (a tick, or one inbound Play packet) and shares it for reads;
// session.Connection never touches chunk/player/container state directly,
// it only ever hands World a decoded packet through the PlayJoiner
// handoff.
package world

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pumpkinwire/mcserver/internal/chunk"
	"github.com/pumpkinwire/mcserver/internal/container"
	"github.com/pumpkinwire/mcserver/internal/model"
	"github.com/pumpkinwire/mcserver/internal/protocol"
	"github.com/pumpkinwire/mcserver/internal/protocol/playpacket"
	"github.com/pumpkinwire/mcserver/internal/protoerr"
	"github.com/pumpkinwire/mcserver/internal/region"
	"github.com/pumpkinwire/mcserver/internal/session"
	"github.com/pumpkinwire/mcserver/internal/tick"
	"github.com/pumpkinwire/mcserver/internal/varint"
)

// Fixed dimension parameters. A full implementation would read these from
// the world's level data; supporting more than the overworld's section
// range is out of core scope.
const (
	MinSectionY   int32  = -4
	MaxSectionY   int32  = 19
	DimensionName string = "minecraft:overworld"
	ViewDistance  int32  = 10
)

// ChestBlockState is the block state id treated as a container a player can
// open with a use-item-on interaction. A full block registry mapping every
// state to its behavior is out of core scope; this is the one state the
// container-open path recognizes.
const ChestBlockState int32 = 3415

// chestWindowType is the clientbound OpenScreen window-type id for a
// 3-row generic container ("minecraft:generic_9x3").
const chestWindowType int32 = 2

// keepAlivePeriodTicks is how many ticks elapse between keep-alive sends,
// derived from the connection layer's 15s interval at the tick driver's
// fixed 50ms cadence.
const keepAlivePeriodTicks = int64(session.KeepAliveInterval / tick.Interval)

// ChunkSource produces a chunk for a position ChunkStore has no saved data
// for. World generation internals are out of core scope; this interface
// only lets a pluggable generator fill the gap a disk read couldn't.
type ChunkSource interface {
	Generate(pos model.ChunkPos) (*chunk.Chunk, error)
}

// EventHooks are called from the world-tick task (or a Play packet handler
// holding World's exclusive lock) with no container/player lock held
// beyond World's own, so implementations may safely call back into World.
// Command parsing, the WASM plugin host, and a real block/item registry
// behind these hooks are out of core scope; NopHooks is the default.
type EventHooks interface {
	OnPlayerJoin(p *model.Player)
	OnPlayerLeave(p *model.Player)
	OnChat(p *model.Player, message string)
	OnBlockPlace(p *model.Player, pos model.ChunkLocalBlockPos, blockState int32)
	OnBlockBreak(p *model.Player, pos model.ChunkLocalBlockPos)
}

// NopHooks implements EventHooks as no-ops, used when no plugin host is
// wired.
type NopHooks struct{}

func (NopHooks) OnPlayerJoin(*model.Player)                                  {}
func (NopHooks) OnPlayerLeave(*model.Player)                                 {}
func (NopHooks) OnChat(*model.Player, string)                                {}
func (NopHooks) OnBlockPlace(*model.Player, model.ChunkLocalBlockPos, int32) {}
func (NopHooks) OnBlockBreak(*model.Player, model.ChunkLocalBlockPos)        {}

// Tracker is the narrow supervisor surface World needs to register and
// deregister a Play connection for shutdown/broadcast fan-out. Satisfied
// structurally by *supervisor.Server, which World never imports directly.
type Tracker interface {
	Track(c *session.Connection)
	Untrack(c *session.Connection)
}

type chunkEntry struct {
	c          *chunk.Chunk
	lastAccess time.Time
}

// World is the single-writer/many-reader shared state for one dimension.
type World struct {
	mu sync.RWMutex

	chunks  map[model.ChunkPos]*chunkEntry
	players map[int32]*model.Player
	conns   map[int32]*session.Connection

	store      *region.Store
	source     ChunkSource
	containers *container.Store
	hooks      EventHooks
	tracker    Tracker

	nextEntityID atomic.Int32
	worldAge     atomic.Int64
	timeOfDay    atomic.Int64
}

// New creates a World backed by store for persistence, optionally
// generating missing chunks via source (nil leaves them empty/air),
// registering joined connections with tracker, and firing hooks (NopHooks
// if nil).
func New(store *region.Store, source ChunkSource, tracker Tracker, hooks EventHooks) *World {
	if hooks == nil {
		hooks = NopHooks{}
	}
	return &World{
		chunks:     make(map[model.ChunkPos]*chunkEntry),
		players:    make(map[int32]*model.Player),
		conns:      make(map[int32]*session.Connection),
		store:      store,
		source:     source,
		containers: container.NewStore(),
		hooks:      hooks,
		tracker:    tracker,
	}
}

// ContainerStore returns the world's shared open-container registry.
func (w *World) ContainerStore() *container.Store { return w.containers }

// PlayerCount returns the number of players currently joined.
func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// PlayerNames returns the profile name of every currently joined player, in
// no particular order.
func (w *World) PlayerNames() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	names := make([]string, 0, len(w.players))
	for _, p := range w.players {
		names = append(names, p.Profile.Name)
	}
	return names
}

// LoadChunk returns the chunk at pos, reading it from disk or generating it
// via ChunkSource on first access, and caching it for subsequent reads.
func (w *World) LoadChunk(pos model.ChunkPos) (*chunk.Chunk, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadChunkLocked(pos)
}

func (w *World) loadChunkLocked(pos model.ChunkPos) (*chunk.Chunk, error) {
	if e, ok := w.chunks[pos]; ok {
		e.lastAccess = time.Now()
		return e.c, nil
	}

	data, err := w.store.ReadChunk(pos)
	if err != nil {
		return nil, fmt.Errorf("world: loading chunk %s: %w", pos, err)
	}

	var c *chunk.Chunk
	switch {
	case data != nil:
		c, err = chunk.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("world: decoding chunk %s: %w", pos, err)
		}
	case w.source != nil:
		c, err = w.source.Generate(pos)
		if err != nil {
			return nil, fmt.Errorf("world: generating chunk %s: %w", pos, err)
		}
	default:
		c = chunk.New(pos, MinSectionY, MaxSectionY, chunk.AirBlockState)
	}

	w.chunks[pos] = &chunkEntry{c: c, lastAccess: time.Now()}
	return c, nil
}

// Join implements session.PlayJoiner: it materializes a Player for c's
// negotiated profile, registers it in world state, sends LoginPlay and the
// spawn chunk, then owns c's Play-state packet loop until it closes.
func (w *World) Join(ctx context.Context, c *session.Connection) error {
	entityID := w.nextEntityID.Add(1)
	profile := c.Profile()
	p := model.NewPlayer(entityID, profile)

	spawnChunk, err := w.LoadChunk(model.ChunkPos{X: 0, Z: 0})
	if err != nil {
		return fmt.Errorf("world: loading spawn chunk for %s: %w", profile.Name, err)
	}

	w.mu.Lock()
	w.players[entityID] = p
	w.conns[entityID] = c
	w.mu.Unlock()

	c.BindPlayer(p)
	if w.tracker != nil {
		w.tracker.Track(c)
	}
	w.hooks.OnPlayerJoin(p)

	loginPlay := playpacket.LoginPlay{
		EntityID:      entityID,
		GameMode:      p.GameMode,
		ViewDistance:  ViewDistance,
		DimensionName: DimensionName,
	}
	if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "login_play", loginPlay.Encode()); err != nil {
		w.leave(entityID)
		return fmt.Errorf("world: sending login play to %s: %w", profile.Name, err)
	}

	if err := w.sendChunk(c, spawnChunk); err != nil {
		slog.Warn("world: sending spawn chunk failed", "player", profile.Name, "error", err)
	}

	loopErr := w.playLoop(ctx, c, p)
	w.leave(entityID)
	return loopErr
}

func (w *World) leave(entityID int32) {
	w.mu.Lock()
	p, hadPlayer := w.players[entityID]
	c, hadConn := w.conns[entityID]
	delete(w.players, entityID)
	delete(w.conns, entityID)
	w.mu.Unlock()

	if hadConn && w.tracker != nil {
		w.tracker.Untrack(c)
	}
	if hadPlayer {
		if id := p.OpenContainerID(); id != 0 {
			w.containers.Close(container.PlayerRef(entityID), id)
		}
		w.hooks.OnPlayerLeave(p)
	}
}

func (w *World) sendChunk(c *session.Connection, ch *chunk.Chunk) error {
	data, err := chunk.Encode(ch)
	if err != nil {
		return fmt.Errorf("world: encoding chunk %s: %w", ch.Pos, err)
	}
	payload := playpacket.ChunkDataAndLight{ChunkX: ch.Pos.X, ChunkZ: ch.Pos.Z, NBTData: data}.Encode()
	return c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "chunk_data_and_light", payload)
}

// playLoop reads and dispatches serverbound Play packets until ctx is
// canceled or the connection errors out. It is the only place Player
// position/rotation and container membership are mutated on the inbound
// side of a connection.
func (w *World) playLoop(ctx context.Context, c *session.Connection, p *model.Player) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		id, payload, err := c.Codec().ReadPacket(c.Reader())
		if err != nil {
			return fmt.Errorf("world: reading play packet: %w", err)
		}
		name, ok := protocol.Name(protocol.StatePlay, protocol.ServerBound, id)
		if !ok {
			return fmt.Errorf("world: unknown play packet id %d", id)
		}
		br := bufio.NewReader(bytes.NewReader(payload))

		switch name {
		case "confirm_teleportation":
			if _, err := playpacket.DecodeConfirmTeleportation(br); err != nil {
				return err
			}

		case "set_player_position":
			mv, err := playpacket.DecodeSetPlayerPosition(br)
			if err != nil {
				return err
			}
			w.applyMovement(p, mv)

		case "set_player_position_and_rotation":
			mv, err := playpacket.DecodeSetPlayerPositionAndRotation(br)
			if err != nil {
				return err
			}
			w.applyMovement(p, mv)

		case "set_player_rotation":
			mv, err := playpacket.DecodeSetPlayerRotation(br)
			if err != nil {
				return err
			}
			w.applyMovement(p, mv)

		case "player_action":
			pa, err := playpacket.DecodePlayerAction(br)
			if err != nil {
				return err
			}
			w.handlePlayerAction(p, pa)

		case "keep_alive_serverbound":
			ka, err := playpacket.DecodeKeepAlive(br)
			if err != nil {
				return err
			}
			if err := c.AcknowledgeKeepAlive(ka.ID); err != nil {
				return fmt.Errorf("world: %w", err)
			}

		case "chat_message":
			msg, err := playpacket.DecodeChatMessage(br)
			if err != nil {
				return err
			}
			w.broadcastChat(p, msg.Message)

		case "click_container":
			click, err := playpacket.DecodeClickContainer(br)
			if err != nil {
				return err
			}
			if err := w.handleClickContainer(c, p, click); err != nil {
				slog.Debug("world: click container rejected", "player", p.Profile.Name, "error", err)
			}

		case "close_container_serverbound":
			cc, err := playpacket.DecodeCloseContainer(br)
			if err != nil {
				return err
			}
			w.closeContainer(p, int32(cc.ContainerID))

		case "use_item_on":
			use, err := playpacket.DecodeUseItemOn(br)
			if err != nil {
				return err
			}
			if err := w.handleUseItemOn(c, p, use); err != nil {
				slog.Debug("world: use item on rejected", "player", p.Profile.Name, "error", err)
			}

		default:
			return fmt.Errorf("world: unhandled play packet %q", name)
		}
	}
}

func (w *World) applyMovement(p *model.Player, mv playpacket.PlayerMovement) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if mv.HasPosition {
		p.X, p.Y, p.Z = mv.X, mv.Y, mv.Z
	}
	if mv.HasRotation {
		p.Yaw, p.Pitch = mv.Yaw, mv.Pitch
	}
}

func (w *World) handlePlayerAction(p *model.Player, pa playpacket.PlayerAction) {
	if pa.Action != playpacket.PlayerActionFinishDigging {
		return
	}
	x, y, z := varint.UnpackBlockPos(pa.Position)
	local := model.ChunkLocalBlockPos{X: mod16(x), Y: y, Z: mod16(z)}
	w.hooks.OnBlockBreak(p, local)
}

func mod16(v int32) int32 {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}

func (w *World) broadcastChat(p *model.Player, message string) {
	w.hooks.OnChat(p, message)

	payload := playpacket.SystemChatMessage{
		JSON: fmt.Sprintf(`{"text":"<%s> %s"}`, p.Profile.Name, message),
	}.Encode()

	w.mu.RLock()
	targets := make([]*session.Connection, 0, len(w.conns))
	for _, c := range w.conns {
		targets = append(targets, c)
	}
	w.mu.RUnlock()

	for _, c := range targets {
		if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "system_chat_message", payload); err != nil {
			slog.Warn("world: chat broadcast failed", "conn", c.ID, "error", err)
		}
	}
}

func (w *World) handleClickContainer(c *session.Connection, p *model.Player, click playpacket.ClickContainer) error {
	containerID := int32(click.ContainerID)
	if containerID == 0 {
		// The player's own inventory isn't a shared OpenContainer; nothing
		// to validate against the registry.
		return nil
	}

	if click.Action == playpacket.ClickQuickCraft {
		return w.handleDragPaint(c, p, containerID, click)
	}

	ref := container.PlayerRef(p.EntityID)
	cc := container.Click{
		ClaimedStateID: uint32(click.StateID),
		Slot:           int(click.Slot),
		Button:         click.Button,
		Action:         toContainerAction(click.Action),
	}

	result, _, err := w.containers.Interact(ref, containerID, cc, click.CarriedItem)
	if err != nil {
		if errors.Is(err, container.ErrStateMismatch) {
			w.sendContainerRefresh(c, click.ContainerID, containerID)
		}
		return err
	}
	return w.sendContainerResult(c, click.ContainerID, containerID, result)
}

func (w *World) handleDragPaint(c *session.Connection, p *model.Player, containerID int32, click playpacket.ClickContainer) error {
	ref := container.PlayerRef(p.EntityID)
	phase := click.Button % 4
	dragType := click.Button - phase

	switch phase {
	case 0:
		return w.containers.BeginDrag(ref, containerID, dragType)
	case 1:
		return w.containers.AddDragSlot(ref, containerID, int(click.Slot))
	case 2:
		result, _, err := w.containers.EndDrag(ref, containerID, click.CarriedItem)
		if err != nil {
			return err
		}
		return w.sendContainerResult(c, click.ContainerID, containerID, result)
	default:
		return fmt.Errorf("world: invalid drag phase %d", phase)
	}
}

func toContainerAction(a playpacket.ClickAction) container.Action {
	switch a {
	case playpacket.ClickQuickMove:
		return container.ActionQuickMove
	case playpacket.ClickSwap:
		return container.ActionSwap
	case playpacket.ClickClone:
		return container.ActionClone
	case playpacket.ClickThrow:
		return container.ActionThrow
	case playpacket.ClickPickupAll:
		return container.ActionPickupAll
	default:
		return container.ActionPickup
	}
}

func (w *World) sendContainerResult(c *session.Connection, wireID int8, containerID int32, result container.Result) error {
	oc, ok := w.containers.Get(containerID)
	if !ok {
		return nil
	}
	return c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "set_container_content", playpacket.SetContainerContent{
		ContainerID: wireID,
		StateID:     int32(result.StateID),
		Slots:       oc.Snapshot(),
		CarriedItem: result.Carried,
	}.Encode())
}

func (w *World) sendContainerRefresh(c *session.Connection, wireID int8, containerID int32) {
	oc, ok := w.containers.Get(containerID)
	if !ok {
		return
	}
	payload := playpacket.SetContainerContent{
		ContainerID: wireID,
		StateID:     int32(oc.StateID()),
		Slots:       oc.Snapshot(),
	}.Encode()
	if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "set_container_content", payload); err != nil {
		slog.Warn("world: container refresh send failed", "conn", c.ID, "error", err)
	}
}

// handleUseItemOn opens a shared container when the targeted block is a
// recognized container block, joining an already-open container at that
// location if one exists.
func (w *World) handleUseItemOn(c *session.Connection, p *model.Player, use playpacket.UseItemOn) error {
	x, y, z := varint.UnpackBlockPos(use.Position)
	chunkPos := model.ChunkPos{X: floorDiv16(x), Z: floorDiv16(z)}
	local := model.ChunkLocalBlockPos{X: mod16(x), Y: y, Z: mod16(z)}

	ch, err := w.LoadChunk(chunkPos)
	if err != nil {
		return fmt.Errorf("world: loading chunk for use item on: %w", err)
	}
	section := ch.SectionAt(y)
	if section == nil || section.Get(int(local.X), int(y&15), int(local.Z)) != ChestBlockState {
		return nil
	}

	ref := container.PlayerRef(p.EntityID)
	oc := w.containers.Open(ref, container.KindGeneric9x3, &local)
	p.SetOpenContainerID(oc.ID)

	if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "open_screen", playpacket.OpenScreen{
		ContainerID: oc.ID,
		WindowType:  chestWindowType,
		Title:       `{"translate":"container.chest"}`,
	}.Encode()); err != nil {
		return fmt.Errorf("world: sending open screen: %w", err)
	}

	return c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "set_container_content", playpacket.SetContainerContent{
		ContainerID: int8(oc.ID),
		StateID:     int32(oc.StateID()),
		Slots:       oc.Snapshot(),
	}.Encode())
}

func floorDiv16(v int32) int32 {
	if v >= 0 {
		return v >> 4
	}
	return -(((-v) + 15) >> 4)
}

func (w *World) closeContainer(p *model.Player, containerID int32) {
	if containerID == 0 {
		return
	}
	w.containers.Close(container.PlayerRef(p.EntityID), containerID)
	p.SetOpenContainerID(0)
}

// Tick implements tick.World: it advances world age and time of day,
// broadcasts UpdateTime on schedule, sends/evaluates keep-alives, and
// flushes idle chunks back to disk. Tick is the only writer that holds
// World's lock for an entire logical step rather than one packet.
func (w *World) Tick(now time.Time) tick.TickReport {
	w.mu.Lock()
	defer w.mu.Unlock()

	age := w.worldAge.Add(1)
	tod := w.timeOfDay.Add(1) % 24000

	report := tick.TickReport{PlayersTicked: len(w.players)}

	if tick.IsTimeBroadcastTick(age) {
		payload := playpacket.UpdateTime{WorldAge: age, TimeOfDay: tod}.Encode()
		for _, c := range w.conns {
			if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "update_time", payload); err != nil {
				slog.Warn("world: update_time broadcast failed", "conn", c.ID, "error", err)
			}
		}
	}

	for _, c := range w.conns {
		if c.KeepAliveOverdue(now) {
			c.Close(fmt.Errorf("world: %w", protoerr.Timeout))
			report.KeepAliveTimeouts++
			continue
		}
		if age%keepAlivePeriodTicks == 0 {
			c.ArmKeepAlive(age)
			if err := c.EnqueuePacket(protocol.StatePlay, protocol.ClientBound, "keep_alive_clientbound", playpacket.KeepAlive{ID: age}.Encode()); err != nil {
				slog.Warn("world: keep alive send failed", "conn", c.ID, "error", err)
			}
		}
	}

	cutoff := now.Add(-tick.ChunkUnloadIdle)
	for pos, e := range w.chunks {
		if e.lastAccess.After(cutoff) {
			continue
		}
		data, err := chunk.Encode(e.c)
		if err != nil {
			slog.Error("world: encoding chunk for unload", "pos", pos, "error", err)
			continue
		}
		if err := w.store.WriteChunk(pos, data); err != nil {
			slog.Error("world: persisting chunk on unload", "pos", pos, "error", err)
			continue
		}
		delete(w.chunks, pos)
		report.ChunksUnloaded++
	}

	return report
}
