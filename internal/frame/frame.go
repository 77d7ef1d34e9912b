// Package frame implements the packet framing layer described in the wire
// protocol: an outer VarInt length prefix, an optional zlib compression
// envelope once a threshold is negotiated, and an AES/CFB-8 encryption
// layer that sits between the socket and the framer.
package frame

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/pumpkinwire/mcserver/internal/crypto"
	"github.com/pumpkinwire/mcserver/internal/varint"
)

// MaxPacketLen is the largest permitted total frame length (2^21 - 1), per
// the wire protocol.
const MaxPacketLen = 2097151

// ErrTooLarge is returned when a frame's declared length exceeds MaxPacketLen.
var ErrTooLarge = fmt.Errorf("frame: declared length exceeds %d", MaxPacketLen)

// ErrAbusiveCompression is returned when a compressed frame's dataLen falls
// strictly between 0 and the negotiated threshold — a payload that claims
// compression was applied but shouldn't have been.
var ErrAbusiveCompression = fmt.Errorf("frame: dataLen below compression threshold")

// Codec holds the decode/encode halves of a single connection's framing
// state: the negotiated compression threshold (-1 disables compression) and
// the optional encryption cipher, enabled once during Login and irreversible
// thereafter.
type Codec struct {
	threshold int32
	cipher    *crypto.StreamCipher
}

// NewCodec creates a Codec with compression disabled and no encryption.
func NewCodec() *Codec {
	return &Codec{threshold: -1}
}

// EnableCompression sets the negotiated threshold. Per the handshake, this
// must happen before LoginSuccess and is irreversible for the connection's
// lifetime once set to a non-negative value.
func (c *Codec) EnableCompression(threshold int32) {
	c.threshold = threshold
}

// CompressionEnabled reports whether compressed framing is active.
func (c *Codec) CompressionEnabled() bool {
	return c.threshold >= 0
}

// EnableEncryption activates AES/CFB-8 encryption using key as both the key
// and the initial feedback register. Encryption can only be enabled once;
// calling it twice is a programmer error.
func (c *Codec) EnableEncryption(key []byte) error {
	if c.cipher != nil {
		return fmt.Errorf("frame: encryption already enabled")
	}
	sc, err := crypto.NewStreamCipher(key)
	if err != nil {
		return fmt.Errorf("frame: enabling encryption: %w", err)
	}
	c.cipher = sc
	return nil
}

// EncryptionEnabled reports whether the stream cipher is active.
func (c *Codec) EncryptionEnabled() bool {
	return c.cipher != nil
}

// decryptReader wraps a *bufio.Reader so every byte read from the socket is
// decrypted exactly once, in order, before the VarInt/packet decoders see it.
type decryptReader struct {
	r      *bufio.Reader
	cipher *crypto.StreamCipher
}

func (d *decryptReader) ReadByte() (byte, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return 0, err
	}
	if d.cipher != nil {
		buf := [1]byte{b}
		d.cipher.Decrypt(buf[:])
		b = buf[0]
	}
	return b, nil
}

func (d *decryptReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(d.r, p)
	if n > 0 && d.cipher != nil {
		d.cipher.Decrypt(p[:n])
	}
	return n, err
}

// ReadPacket reads one frame from r, decrypting and decompressing as
// negotiated, and returns the packet id plus the raw payload bytes
// (everything after the id).
func (c *Codec) ReadPacket(r *bufio.Reader) (id int32, payload []byte, err error) {
	dr := &decryptReader{r: r, cipher: c.cipher}

	totalLen, err := varint.ReadVarInt(dr)
	if err != nil {
		return 0, nil, fmt.Errorf("frame: reading length: %w", err)
	}
	if totalLen < 0 || totalLen > MaxPacketLen {
		return 0, nil, ErrTooLarge
	}

	body := make([]byte, totalLen)
	if _, err := io.ReadFull(dr, body); err != nil {
		return 0, nil, fmt.Errorf("frame: reading body: %w", err)
	}

	if c.CompressionEnabled() {
		body, err = c.decompressBody(body)
		if err != nil {
			return 0, nil, err
		}
	}

	br := bufio.NewReader(bytes.NewReader(body))
	id, err = varint.ReadVarInt(br)
	if err != nil {
		return 0, nil, fmt.Errorf("frame: reading packet id: %w", err)
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return 0, nil, fmt.Errorf("frame: reading payload: %w", err)
	}
	return id, rest, nil
}

func (c *Codec) decompressBody(body []byte) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(body))
	dataLen, err := varint.ReadVarInt(br)
	if err != nil {
		return nil, fmt.Errorf("frame: reading dataLen: %w", err)
	}

	rest, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("frame: reading compressed payload: %w", err)
	}

	if dataLen == 0 {
		return rest, nil
	}
	if dataLen < c.threshold {
		return nil, ErrAbusiveCompression
	}

	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, fmt.Errorf("frame: opening zlib reader: %w", err)
	}
	defer zr.Close()

	out := make([]byte, 0, dataLen)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, zr); err != nil {
		return nil, fmt.Errorf("frame: inflating: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeFrame frames id+payload, compressing and encrypting per the
// negotiated state, and returns the ready-to-write bytes. Connections queue
// these on their outbound channel so the writer goroutine can batch several
// frames into one writev call.
func (c *Codec) EncodeFrame(id int32, payload []byte) ([]byte, error) {
	packetBody := varint.AppendVarInt(make([]byte, 0, 5+len(payload)), id)
	packetBody = append(packetBody, payload...)

	var frame []byte
	if c.CompressionEnabled() {
		frame = c.compressFrame(packetBody)
	} else {
		frame = varint.AppendVarInt(make([]byte, 0, 5+len(packetBody)), int32(len(packetBody)))
		frame = append(frame, packetBody...)
	}

	if len(frame) > MaxPacketLen {
		return nil, ErrTooLarge
	}

	if c.cipher != nil {
		c.cipher.Encrypt(frame)
	}
	return frame, nil
}

// WritePacket frames id+payload and writes the result directly to w. Used
// for Status/Login-state replies that precede the writer goroutine's
// startup.
func (c *Codec) WritePacket(w io.Writer, id int32, payload []byte) error {
	frame, err := c.EncodeFrame(id, payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("frame: writing: %w", err)
	}
	return nil
}

func (c *Codec) compressFrame(packetBody []byte) []byte {
	var inner []byte
	var dataLen int32

	if len(packetBody) >= int(c.threshold) {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		_, _ = zw.Write(packetBody)
		_ = zw.Close()
		inner = compressed.Bytes()
		dataLen = int32(len(packetBody))
	} else {
		inner = packetBody
		dataLen = 0
	}

	prefixed := varint.AppendVarInt(make([]byte, 0, 5+len(inner)), dataLen)
	prefixed = append(prefixed, inner...)

	frame := varint.AppendVarInt(make([]byte, 0, 5+len(prefixed)), int32(len(prefixed)))
	frame = append(frame, prefixed...)
	return frame
}
