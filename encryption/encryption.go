// Package encryption seals preference slots at rest with AES-256-GCM.
// The key material comes from the SUITEPREFS_ENCRYPTION_KEY environment variable
// and is stretched to 32 bytes with SHA-256.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// MinKeyLength is the minimum accepted length of the key material in bytes.
	MinKeyLength = 32
	// EnvKeyName is the environment variable holding the key material.
	EnvKeyName = "SUITEPREFS_ENCRYPTION_KEY"

	// formatPrefix tags sealed payloads so a future format can be told apart.
	formatPrefix = "v1:"
)

var (
	ErrInvalidKeyLength  = errors.New("encryption key must be at least 32 bytes")
	ErrKeyNotFound       = errors.New("encryption key not found in environment variable " + EnvKeyName)
	ErrEncryptionFailed  = errors.New("encryption operation failed")
	ErrDecryptionFailed  = errors.New("decryption operation failed")
	ErrInvalidCiphertext = errors.New("invalid ciphertext: too short or malformed")
)

// Manager seals and opens slot payloads.
type Manager struct {
	key  []byte
	aead cipher.AEAD
}

// NewManager reads the key material from EnvKeyName.
func NewManager() (*Manager, error) {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return nil, ErrKeyNotFound
	}
	return NewManagerWithKey([]byte(keyStr))
}

// NewManagerWithKey builds a Manager from explicit key material.
func NewManagerWithKey(material []byte) (*Manager, error) {
	if len(material) < MinKeyLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidKeyLength, len(material), MinKeyLength)
	}

	sum := sha256.Sum256(material)
	key := sum[:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create cipher: %v", ErrEncryptionFailed, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GCM: %v", ErrEncryptionFailed, err)
	}

	return &Manager{key: key, aead: aead}, nil
}

// KeyID returns a short fingerprint of the derived key. It is safe to store
// next to ciphertext and tells payloads sealed under different keys apart.
func (m *Manager) KeyID() string {
	sum := sha256.Sum256(m.key)
	return hex.EncodeToString(sum[:4])
}

// Encrypt seals plaintext and returns "v1:" followed by base64(nonce || ciphertext).
func (m *Manager) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, m.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: failed to generate nonce: %v", ErrEncryptionFailed, err)
	}

	sealed := m.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return formatPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a payload produced by Encrypt.
func (m *Manager) Decrypt(payload string) (string, error) {
	encoded, ok := strings.CutPrefix(payload, formatPrefix)
	if !ok {
		return "", ErrInvalidCiphertext
	}

	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecryptionFailed, err)
	}

	nonceSize := m.aead.NonceSize()
	if len(sealed) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := m.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

// ValidateKey checks the environment key material without building a Manager.
// Call it at startup to fail fast.
func ValidateKey() error {
	keyStr := os.Getenv(EnvKeyName)
	if keyStr == "" {
		return ErrKeyNotFound
	}
	if len(keyStr) < MinKeyLength {
		return fmt.Errorf("%w: got %d bytes, need at least %d", ErrInvalidKeyLength, len(keyStr), MinKeyLength)
	}
	return nil
}
