// Package crypto seals parameter snapshots with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const KeySize = 32

var (
	ErrInvalidKey         = errors.New("key must be 32 bytes (AES-256)")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// ParseKey decodes a hex-encoded AES-256 key.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	return key, nil
}

// Sealer encrypts and decrypts with one fixed key.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Sealer{aead: gcm}, nil
}

// Seal returns nonce||ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:ns], sealed[ns:]

	return s.aead.Open(nil, nonce, ciphertext, nil)
}
