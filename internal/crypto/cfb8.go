// Package crypto implements the cryptographic primitives used during the
// login handshake: AES/CFB-8 stream encryption and the RSA key exchange.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// StreamCipher is the bidirectional AES/CFB-8 cipher used once encryption
// is enabled on a connection. The same 16-byte key is reused as the IV, as
// required by the wire protocol.
//
// CFB-8 feeds back one ciphertext byte at a time rather than a full block,
// so stdlib's cipher.NewCFBEncrypter (segment size == block size) cannot be
// used directly; the block cipher is driven by hand, one byte per call.
type StreamCipher struct {
	block      cipher.Block
	encryptReg [aes.BlockSize]byte
	decryptReg [aes.BlockSize]byte
}

// NewStreamCipher creates a StreamCipher from a 16-byte AES key, using the
// key itself as the initial feedback register for both directions.
func NewStreamCipher(key []byte) (*StreamCipher, error) {
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("aes/cfb8: key must be %d bytes, got %d", aes.BlockSize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes/cfb8: creating block cipher: %w", err)
	}
	sc := &StreamCipher{block: block}
	copy(sc.encryptReg[:], key)
	copy(sc.decryptReg[:], key)
	return sc, nil
}

// Encrypt encrypts data in-place.
func (sc *StreamCipher) Encrypt(data []byte) {
	var scratch [aes.BlockSize]byte
	for i, b := range data {
		sc.block.Encrypt(scratch[:], sc.encryptReg[:])
		ct := b ^ scratch[0]
		data[i] = ct
		copy(sc.encryptReg[:aes.BlockSize-1], sc.encryptReg[1:])
		sc.encryptReg[aes.BlockSize-1] = ct
	}
}

// Decrypt decrypts data in-place.
func (sc *StreamCipher) Decrypt(data []byte) {
	var scratch [aes.BlockSize]byte
	for i, ct := range data {
		sc.block.Encrypt(scratch[:], sc.decryptReg[:])
		pt := ct ^ scratch[0]
		data[i] = pt
		copy(sc.decryptReg[:aes.BlockSize-1], sc.decryptReg[1:])
		sc.decryptReg[aes.BlockSize-1] = ct
	}
}
