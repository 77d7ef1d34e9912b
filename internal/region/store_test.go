package region

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pumpkinwire/mcserver/internal/model"
)

func TestStore_WriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "region"), 0o755))

	s := NewStore(root)
	defer s.Close()

	pos := model.ChunkPos{X: 40, Z: -3}
	data := []byte("chunk bytes")
	require.NoError(t, s.WriteChunk(pos, data))

	got, err := s.ReadChunk(pos)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStore_ConcurrentReadsAreDeduplicated(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "region"), 0o755))

	s := NewStore(root)
	defer s.Close()

	pos := model.ChunkPos{X: 1, Z: 1}
	require.NoError(t, s.WriteChunk(pos, []byte("payload")))

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := s.ReadChunk(pos)
			require.NoError(t, err)
			results[i] = data
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, []byte("payload"), r)
	}
}

func TestStore_AbsentChunkAcrossRegionsReturnsNil(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "region"), 0o755))

	s := NewStore(root)
	defer s.Close()

	got, err := s.ReadChunk(model.ChunkPos{X: 100, Z: 100})
	require.NoError(t, err)
	assert.Nil(t, got)
}
