package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecrypt is returned for any ciphertext that cannot be opened: wrong key,
// tampered payload, or truncated data. Callers must not distinguish the
// cases to the outside.
var ErrDecrypt = errors.New("secrets: cannot decrypt value")

// Box encrypts and decrypts small secrets (API keys) for storage at rest.
// The cipher key is derived from the deployment's secret key string, so
// rotating SECRET_KEY invalidates every stored ciphertext.
type Box struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from secretKey and returns a ready Box.
func New(secretKey string) (*Box, error) {
	if secretKey == "" {
		return nil, errors.New("secrets: secret key is empty")
	}
	sum := sha256.Sum256([]byte(secretKey))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Encrypt seals plaintext and returns a base64 string safe for a text column.
// The nonce is prepended to the ciphertext before encoding.
func (b *Box) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any failure is ErrDecrypt.
func (b *Box) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecrypt
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrDecrypt
	}
	plaintext, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
