// Package varint implements the wire primitives shared by every packet:
// VarInt/VarLong, length-prefixed strings, UUIDs, BitSets and the signed
// packed block position.
package varint

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const (
	// MaxVarIntLen is the largest number of bytes a VarInt may occupy.
	MaxVarIntLen = 5
	// MaxVarLongLen is the largest number of bytes a VarLong may occupy.
	MaxVarLongLen = 10

	segmentBits = 0x7F
	continueBit = 0x80
)

// ErrMalformed is returned when a VarInt/VarLong does not terminate within
// its maximum byte length.
var ErrMalformed = fmt.Errorf("varint: malformed (too many continuation bytes)")

// ReadVarInt reads a VarInt-encoded int32 from r.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var value int32
	var position uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("varint: reading byte: %w", err)
		}

		value |= int32(b&segmentBits) << position
		if b&continueBit == 0 {
			return value, nil
		}

		position += 7
		if position >= MaxVarIntLen*7 {
			return 0, ErrMalformed
		}
	}
}

// WriteVarInt writes v as a VarInt to w and returns the number of bytes
// written.
func WriteVarInt(w io.Writer, v int32) (int, error) {
	buf := AppendVarInt(make([]byte, 0, MaxVarIntLen), v)
	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("varint: writing: %w", err)
	}
	return n, nil
}

// AppendVarInt appends the VarInt encoding of v to dst and returns the
// extended slice.
func AppendVarInt(dst []byte, v int32) []byte {
	u := uint32(v)
	for {
		if u&^segmentBits == 0 {
			return append(dst, byte(u))
		}
		dst = append(dst, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
}

// SizeVarInt returns the number of bytes WriteVarInt would emit for v.
func SizeVarInt(v int32) int {
	u := uint32(v)
	n := 1
	for u&^segmentBits != 0 {
		u >>= 7
		n++
	}
	return n
}

// ReadVarLong reads a VarLong-encoded int64 from r.
func ReadVarLong(r io.ByteReader) (int64, error) {
	var value int64
	var position uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("varlong: reading byte: %w", err)
		}

		value |= int64(b&segmentBits) << position
		if b&continueBit == 0 {
			return value, nil
		}

		position += 7
		if position >= MaxVarLongLen*7 {
			return 0, ErrMalformed
		}
	}
}

// WriteVarLong writes v as a VarLong to w.
func WriteVarLong(w io.Writer, v int64) (int, error) {
	buf := AppendVarLong(make([]byte, 0, MaxVarLongLen), v)
	n, err := w.Write(buf)
	if err != nil {
		return n, fmt.Errorf("varlong: writing: %w", err)
	}
	return n, nil
}

// AppendVarLong appends the VarLong encoding of v to dst.
func AppendVarLong(dst []byte, v int64) []byte {
	u := uint64(v)
	for {
		if u&^uint64(segmentBits) == 0 {
			return append(dst, byte(u))
		}
		dst = append(dst, byte(u&segmentBits)|continueBit)
		u >>= 7
	}
}

// DefaultStringMax is the default maximum character length for strings
// whose field does not declare a tighter bound (e.g. chat messages).
const DefaultStringMax = 32767

// ReadString reads a VarInt-length-prefixed UTF-8 string, rejecting
// strings longer than maxChars runes.
func ReadString(r *bufio.Reader, maxChars int) (string, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return "", fmt.Errorf("string: reading length: %w", err)
	}
	if n < 0 || int(n) > maxChars*4 {
		return "", fmt.Errorf("string: declared byte length %d exceeds bound", n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("string: reading body: %w", err)
	}

	s := string(buf)
	if runeLen := len([]rune(s)); runeLen > maxChars {
		return "", fmt.Errorf("string: %d characters exceeds max %d", runeLen, maxChars)
	}
	return s, nil
}

// WriteString writes s as a VarInt-length-prefixed UTF-8 string.
func WriteString(w io.Writer, s string, maxChars int) error {
	if runeLen := len([]rune(s)); runeLen > maxChars {
		return fmt.Errorf("string: %d characters exceeds max %d", runeLen, maxChars)
	}
	if _, err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("string: writing body: %w", err)
	}
	return nil
}

// ReadUUID reads the 16 raw bytes of a UUID.
func ReadUUID(r io.Reader) (uuid.UUID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return uuid.UUID{}, fmt.Errorf("uuid: reading: %w", err)
	}
	return uuid.UUID(buf), nil
}

// WriteUUID writes the 16 raw bytes of a UUID.
func WriteUUID(w io.Writer, id uuid.UUID) error {
	if _, err := w.Write(id[:]); err != nil {
		return fmt.Errorf("uuid: writing: %w", err)
	}
	return nil
}

// ReadBitSet reads a VarInt-length-prefixed array of int64 words (used for
// chunk section/light presence masks).
func ReadBitSet(r *bufio.Reader) ([]uint64, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("bitset: reading length: %w", err)
	}
	if n < 0 {
		return nil, fmt.Errorf("bitset: negative length %d", n)
	}

	words := make([]uint64, n)
	var buf [8]byte
	for i := range words {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, fmt.Errorf("bitset: reading word %d: %w", i, err)
		}
		words[i] = beUint64(buf[:])
	}
	return words, nil
}

// WriteBitSet writes a VarInt-length-prefixed array of int64 words.
func WriteBitSet(w io.Writer, words []uint64) error {
	if _, err := WriteVarInt(w, int32(len(words))); err != nil {
		return err
	}
	var buf [8]byte
	for _, word := range words {
		putBeUint64(buf[:], word)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("bitset: writing word: %w", err)
		}
	}
	return nil
}

func beUint64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}

func putBeUint64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
