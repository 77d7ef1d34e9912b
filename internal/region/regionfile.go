// Package region implements Anvil (.mca) region file reading and writing,
// plus the process-wide world session lock.
package region

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/pumpkinwire/mcserver/internal/protoerr"
)

const (
	sectorSize  = 4096
	headerSlots = 1024
	headerBytes = headerSlots * 4 * 2 // location table + timestamp table
	chunkPrefix = 5                   // 4-byte length + 1-byte scheme

	schemeGZip         = 1
	schemeZlib         = 2
	schemeUncompressed = 3
)

// File is a single Anvil region file (up to 32x32 chunks). All reads and
// writes to it are serialized by mu.
type File struct {
	mu         sync.Mutex
	f          *os.File
	offsets    [headerSlots]uint32 // sector offset, 0 = absent
	counts     [headerSlots]uint8  // sector count
	timestamps [headerSlots]uint32
}

// Open opens (creating if absent) the region file at path and loads its
// header.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", protoerr.RegionIO, path, err)
	}

	rf := &File{f: f}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", protoerr.RegionIO, path, err)
	}

	if info.Size() < headerBytes {
		if err := rf.writeFreshHeader(); err != nil {
			f.Close()
			return nil, err
		}
		return rf, nil
	}

	if err := rf.loadHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return rf, nil
}

func (rf *File) writeFreshHeader() error {
	buf := make([]byte, headerBytes)
	if _, err := rf.f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("%w: writing fresh header: %v", protoerr.RegionIO, err)
	}
	return nil
}

func (rf *File) loadHeader() error {
	buf := make([]byte, headerBytes)
	if _, err := io.ReadFull(io.NewSectionReader(rf.f, 0, headerBytes), buf); err != nil {
		return fmt.Errorf("%w: reading header: %v", protoerr.RegionIO, err)
	}

	for i := 0; i < headerSlots; i++ {
		loc := binary.BigEndian.Uint32(buf[i*4 : i*4+4])
		rf.offsets[i] = loc >> 8
		rf.counts[i] = uint8(loc & 0xFF)
	}
	tsBase := headerSlots * 4
	for i := 0; i < headerSlots; i++ {
		rf.timestamps[i] = binary.BigEndian.Uint32(buf[tsBase+i*4 : tsBase+i*4+4])
	}
	return nil
}

// slotIndex returns the in-header slot for chunk coordinates local to this
// region (0..31 each).
func slotIndex(localX, localZ int32) int {
	return int((localX & 31) + (localZ&31)*32)
}

// Read returns the raw, decompressed chunk NBT bytes for the chunk at
// (localX, localZ) within this region, or nil if the slot is absent.
func (rf *File) Read(localX, localZ int32) ([]byte, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	slot := slotIndex(localX, localZ)
	offset := rf.offsets[slot]
	if offset == 0 {
		return nil, nil
	}

	fileInfo, err := rf.f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat during read: %v", protoerr.RegionIO, err)
	}
	byteOffset := int64(offset) * sectorSize
	if byteOffset+chunkPrefix > fileInfo.Size() {
		// Slot points past end of file: treat as absent rather than fatal.
		return nil, nil
	}

	prefix := make([]byte, chunkPrefix)
	if _, err := rf.f.ReadAt(prefix, byteOffset); err != nil {
		return nil, fmt.Errorf("%w: reading chunk prefix: %v", protoerr.RegionIO, err)
	}
	length := binary.BigEndian.Uint32(prefix[:4])
	scheme := prefix[4]

	if length == 0 {
		return nil, nil
	}
	payload := make([]byte, length-1)
	if _, err := rf.f.ReadAt(payload, byteOffset+chunkPrefix); err != nil {
		return nil, fmt.Errorf("%w: reading chunk payload: %v", protoerr.RegionIO, err)
	}

	return decompress(scheme, payload)
}

func decompress(scheme byte, payload []byte) ([]byte, error) {
	switch scheme {
	case schemeUncompressed:
		return payload, nil
	case schemeGZip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: opening gzip reader: %v", protoerr.RegionIO, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	case schemeZlib:
		zr, err := zlib.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: opening zlib reader: %v", protoerr.RegionIO, err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	default:
		return nil, fmt.Errorf("%w: unknown compression scheme %d", protoerr.RegionIO, scheme)
	}
}

// Write compresses nbtData with zlib and stores it at (localX, localZ),
// reusing the existing slot if it already has enough sectors, else
// appending past the current end of file. The header slot and timestamp are
// updated, and the file fsynced, only after the payload write succeeds. An
// appended write leaves the previous chunk's sectors untouched until the
// header points at the new ones; a write that reuses the slot overwrites the
// previous payload in place.
func (rf *File) Write(localX, localZ int32, nbtData []byte) error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(nbtData); err != nil {
		return fmt.Errorf("%w: compressing chunk: %v", protoerr.RegionIO, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: closing zlib writer: %v", protoerr.RegionIO, err)
	}

	payload := compressed.Bytes()
	totalLen := chunkPrefix + len(payload) // prefix includes the scheme byte counted in length
	neededSectors := (totalLen + sectorSize - 1) / sectorSize

	slot := slotIndex(localX, localZ)
	offset := rf.offsets[slot]
	existingSectors := int(rf.counts[slot])

	if offset == 0 || existingSectors < neededSectors {
		var err error
		offset, err = rf.allocateAtEnd(neededSectors)
		if err != nil {
			return err
		}
	}

	header := make([]byte, chunkPrefix)
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)+1))
	header[4] = schemeZlib

	writeAt := int64(offset) * sectorSize
	if _, err := rf.f.WriteAt(header, writeAt); err != nil {
		return fmt.Errorf("%w: writing chunk header: %v", protoerr.RegionIO, err)
	}
	if _, err := rf.f.WriteAt(payload, writeAt+chunkPrefix); err != nil {
		return fmt.Errorf("%w: writing chunk payload: %v", protoerr.RegionIO, err)
	}

	rf.offsets[slot] = offset
	rf.counts[slot] = uint8(neededSectors)
	rf.timestamps[slot] = uint32(time.Now().Unix())

	if err := rf.flushHeaderSlot(slot); err != nil {
		return err
	}
	return rf.f.Sync()
}

// allocateAtEnd reserves neededSectors sectors past the current end of
// file, rounding the file length up to a sector boundary first.
func (rf *File) allocateAtEnd(neededSectors int) (uint32, error) {
	info, err := rf.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat during allocate: %v", protoerr.RegionIO, err)
	}
	currentSectors := (info.Size() + sectorSize - 1) / sectorSize
	if currentSectors < headerBytes/sectorSize {
		currentSectors = headerBytes / sectorSize
	}
	return uint32(currentSectors), nil
}

func (rf *File) flushHeaderSlot(slot int) error {
	locBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(locBuf, rf.offsets[slot]<<8|uint32(rf.counts[slot]))
	if _, err := rf.f.WriteAt(locBuf, int64(slot*4)); err != nil {
		return fmt.Errorf("%w: writing location header: %v", protoerr.RegionIO, err)
	}

	tsBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(tsBuf, rf.timestamps[slot])
	if _, err := rf.f.WriteAt(tsBuf, int64(headerSlots*4+slot*4)); err != nil {
		return fmt.Errorf("%w: writing timestamp header: %v", protoerr.RegionIO, err)
	}
	return nil
}

// Close releases the underlying file handle.
func (rf *File) Close() error {
	return rf.f.Close()
}
