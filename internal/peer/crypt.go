package peer

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealing errors.
var (
	ErrSecretTooShort = errors.New("peer: shared secret too short (minimum 16 bytes)")
	ErrOpenFailed     = errors.New("peer: frame decryption failed - wrong secret or corrupted data")
)

// hkdfInfo domain-separates the derived key from any other use of the
// same secret.
var hkdfInfo = []byte("aggmesh peer frame v1")

// Sealer provides authenticated encryption of frame bodies between
// peers sharing one configured secret. The key is derived with
// HKDF-SHA256; frames are sealed with ChaCha20-Poly1305 and carry
// their random nonce as a prefix.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the frame key from secret and returns a sealer.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, ErrSecretTooShort
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("peer: derive frame key: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("peer: init cipher: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plain and returns nonce||ciphertext.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("peer: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plain, nil), nil
}

// Open decrypts nonce||ciphertext produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < s.aead.NonceSize() {
		return nil, ErrOpenFailed
	}
	nonce, ciphertext := sealed[:s.aead.NonceSize()], sealed[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plain, nil
}
