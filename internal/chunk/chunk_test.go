package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/model"
)

const airState = int32(0)

func TestSection_SetGetSingleBlock(t *testing.T) {
	s := NewSection(4, airState)
	s.Set(1, 0, 1, 55)
	assert.Equal(t, int32(55), s.Get(1, 0, 1))
	assert.Equal(t, airState, s.Get(2, 0, 1))
}

func TestSection_PaletteGrowthRepacksExistingEntries(t *testing.T) {
	s := NewSection(0, airState)
	for i := 0; i < 20; i++ {
		s.Set(i%16, 0, i/16, int32(100+i))
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, int32(100+i), s.Get(i%16, 0, i/16), "index %d", i)
	}
}

func TestChunk_NewIsAllAir(t *testing.T) {
	c := New(model.ChunkPos{X: 0, Z: 0}, -4, 19, airState)
	require.Len(t, c.Sections, 24)
	for _, s := range c.Sections {
		assert.Equal(t, airState, s.Get(0, 0, 0))
	}
}

func TestChunk_SectionAt(t *testing.T) {
	c := New(model.ChunkPos{X: 0, Z: 0}, -4, 19, airState)
	s := c.SectionAt(64)
	require.NotNil(t, s)
	assert.Equal(t, int32(4), s.Y)
}

func TestChunk_EncodeDecodeRoundTrip(t *testing.T) {
	c := New(model.ChunkPos{X: 5, Z: -2}, -4, 19, airState)
	section := c.SectionAt(64)
	section.Set(1, 0, 1, 1) // stone at (1,64,1)
	c.BlockEntities[model.ChunkLocalBlockPos{X: 1, Y: 64, Z: 1}] = []byte{0x0a, 0x00}
	c.LastModified = 42

	encoded, err := Encode(c)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, c.Pos, decoded.Pos)
	assert.Equal(t, c.LastModified, decoded.LastModified)

	decodedSection := decoded.SectionAt(64)
	require.NotNil(t, decodedSection)
	assert.Equal(t, int32(1), decodedSection.Get(1, 0, 1))
	assert.Equal(t, airState, decodedSection.Get(0, 0, 0))

	assert.Equal(t, []byte{0x0a, 0x00}, decoded.BlockEntities[model.ChunkLocalBlockPos{X: 1, Y: 64, Z: 1}])
}
