// Package suiteprefs defines interfaces for storage, caching, and encryption used by the preference store.
package suiteprefs

import (
	"context"
	"time"
)

// Backend defines the methods required for a storage backend.
// Records are addressed by namespace and key. Load returns ErrNotFound for a missing key.
type Backend interface {
	Load(ctx context.Context, namespace, key string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, namespace, key string) error
	List(ctx context.Context, namespace string) (map[string]*Record, error)
	Close() error
}

// Cache defines the methods required for a caching backend.
// Get returns ErrNotFound on a miss or an expired entry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Encryptor encrypts slot payloads at rest.
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
