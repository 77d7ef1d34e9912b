package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// KeySizeBits is the RSA key size used for the Login encryption request,
// per the wire protocol's EncryptionRequest packet.
const KeySizeBits = 1024

// KeyPair holds the server's login-time RSA key pair plus its DER-encoded
// public key, precomputed once at startup and reused for every connection.
type KeyPair struct {
	Private   *rsa.PrivateKey
	PublicDER []byte
}

// GenerateKeyPair generates a fresh RSA key pair and pre-computes the CRT
// parameters used by crypto/rsa's PKCS#1 v1.5 decrypt path.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeySizeBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}
	priv.Precompute()

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("marshaling RSA public key: %w", err)
	}

	return &KeyPair{Private: priv, PublicDER: der}, nil
}

// DecryptPKCS1v15 decrypts ciphertext produced by the client with PKCS#1 v1.5
// padding, as mandated by the login encryption handshake.
func (kp *KeyPair) DecryptPKCS1v15(ciphertext []byte) ([]byte, error) {
	out, err := rsa.DecryptPKCS1v15(rand.Reader, kp.Private, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("RSA PKCS1v15 decrypt: %w", err)
	}
	return out, nil
}
