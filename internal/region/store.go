package region

import (
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pumpkinwire/mcserver/internal/model"
)

// Store maps chunk positions to their containing Anvil region file,
// opening files lazily and keeping them cached for the world root's
// lifetime. Concurrent loads of the same chunk are deduplicated with
// singleflight, keyed on the chunk position.
type Store struct {
	root string

	mu    sync.Mutex
	files map[[2]int32]*File

	group singleflight.Group
}

// NewStore creates a Store rooted at the world's "region" directory.
func NewStore(worldRoot string) *Store {
	return &Store{
		root:  filepath.Join(worldRoot, "region"),
		files: make(map[[2]int32]*File),
	}
}

func (s *Store) regionFile(rx, rz int32) (*File, error) {
	key := [2]int32{rx, rz}

	s.mu.Lock()
	if f, ok := s.files[key]; ok {
		s.mu.Unlock()
		return f, nil
	}
	s.mu.Unlock()

	path := filepath.Join(s.root, fmt.Sprintf("r.%d.%d.mca", rx, rz))
	f, err := Open(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.files[key]; ok {
		// Lost the race opening the same file twice; keep the winner and
		// close our duplicate handle.
		s.mu.Unlock()
		f.Close()
		return existing, nil
	}
	s.files[key] = f
	s.mu.Unlock()
	return f, nil
}

// ReadChunk loads the raw decompressed chunk NBT for pos, or nil if absent.
// Concurrent calls for the same pos share one disk read.
func (s *Store) ReadChunk(pos model.ChunkPos) ([]byte, error) {
	rx, rz := pos.RegionCoords()
	v, err, _ := s.group.Do(pos.String(), func() (any, error) {
		f, err := s.regionFile(rx, rz)
		if err != nil {
			return nil, err
		}
		return f.Read(pos.X, pos.Z)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// WriteChunk persists nbtData for pos, compressing and placing it per the
// containing region file's allocation policy.
func (s *Store) WriteChunk(pos model.ChunkPos, nbtData []byte) error {
	rx, rz := pos.RegionCoords()
	f, err := s.regionFile(rx, rz)
	if err != nil {
		return err
	}
	return f.Write(pos.X, pos.Z, nbtData)
}

// Close closes every region file opened by this store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
