package chunk

import (
	"fmt"

	"github.com/Tnze/go-mc/nbt"

	"github.com/pumpkinwire/mcserver/internal/model"
)

// nbtSection mirrors one entry of the "sections" list-tag in the vanilla
// Anvil schema.
type nbtSection struct {
	Y            int8    `nbt:"Y"`
	Palette      []int32 `nbt:"block_states_palette"`
	BlockStates  []int64 `nbt:"block_states_data,omitempty"`
	BitsPerEntry int8    `nbt:"bits_per_entry"`
}

type nbtBlockEntity struct {
	X    int32  `nbt:"x"`
	Y    int32  `nbt:"y"`
	Z    int32  `nbt:"z"`
	Data []byte `nbt:"data"`
}

// nbtChunk is the top-level compound Encode/Decode (de)serializes. Field
// names follow the vanilla Anvil schema closely enough for this core's
// purposes; the real schema carries many more fields (biome arrays,
// carving masks, ...) that a full world-gen backend would also persist.
type nbtChunk struct {
	XPos          int32              `nbt:"xPos"`
	ZPos          int32              `nbt:"zPos"`
	Status        string             `nbt:"Status"`
	LastModified  int64              `nbt:"LastUpdate"`
	Sections      []nbtSection       `nbt:"sections"`
	Heightmaps    map[string][]int64 `nbt:"Heightmaps"`
	BlockEntities []nbtBlockEntity   `nbt:"block_entities"`
}

// Encode serializes a Chunk to its NBT byte representation, ready for
// region.Store.WriteChunk.
func Encode(c *Chunk) ([]byte, error) {
	out := nbtChunk{
		XPos:         c.Pos.X,
		ZPos:         c.Pos.Z,
		Status:       string(c.Status),
		LastModified: c.LastModified,
		Heightmaps:   c.Heightmaps,
	}

	for _, s := range c.Sections {
		out.Sections = append(out.Sections, nbtSection{
			Y:            int8(s.Y),
			Palette:      s.Palette,
			BlockStates:  packedWordsToInt64(s.BlockStates),
			BitsPerEntry: int8(s.BitsPerEntry),
		})
	}

	for pos, data := range c.BlockEntities {
		out.BlockEntities = append(out.BlockEntities, nbtBlockEntity{
			X: pos.X, Y: pos.Y, Z: pos.Z, Data: data,
		})
	}

	buf, err := nbt.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("chunk: encoding nbt: %w", err)
	}
	return buf, nil
}

// Decode parses the NBT byte representation back into a Chunk.
func Decode(data []byte) (*Chunk, error) {
	var in nbtChunk
	if err := nbt.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("chunk: decoding nbt: %w", err)
	}

	c := &Chunk{
		Pos:           model.ChunkPos{X: in.XPos, Z: in.ZPos},
		Status:        Status(in.Status),
		Heightmaps:    in.Heightmaps,
		LastModified:  in.LastModified,
		BlockEntities: make(map[model.ChunkLocalBlockPos][]byte, len(in.BlockEntities)),
	}
	if c.Heightmaps == nil {
		c.Heightmaps = make(Heightmaps)
	}

	for _, s := range in.Sections {
		section := &Section{
			Y:            int32(s.Y),
			Palette:      s.Palette,
			BlockStates:  int64WordsToPacked(s.BlockStates),
			BitsPerEntry: int(s.BitsPerEntry),
		}
		c.Sections = append(c.Sections, section)
	}

	for _, be := range in.BlockEntities {
		c.BlockEntities[model.ChunkLocalBlockPos{X: be.X, Y: be.Y, Z: be.Z}] = be.Data
	}

	return c, nil
}

func packedWordsToInt64(words []uint64) []int64 {
	if words == nil {
		return nil
	}
	out := make([]int64, len(words))
	for i, w := range words {
		out[i] = int64(w)
	}
	return out
}

func int64WordsToPacked(words []int64) []uint64 {
	if words == nil {
		return nil
	}
	out := make([]uint64, len(words))
	for i, w := range words {
		out[i] = uint64(w)
	}
	return out
}
