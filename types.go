// Package suiteprefs defines the core types used by the preference store.
package suiteprefs

import (
	"time"
)

// Record is a single persisted preference slot as stored and retrieved by a Backend.
type Record struct {
	// Namespace scopes the slot, so several installations can share one database.
	Namespace string `json:"namespace" bson:"namespace"`
	// Key is the slot name, e.g. "theme_mode".
	Key string `json:"key" bson:"key"`
	// Value is the JSON-encoded payload, possibly encrypted.
	Value string `json:"value" bson:"value"`
	// Encrypted reports whether Value went through the configured Encryptor.
	Encrypted bool `json:"encrypted" bson:"encrypted"`
	// UpdatedAt records the last write.
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DefaultNamespace is used when no namespace option is given.
const DefaultNamespace = "default"

// DefaultCacheTTL bounds how long a cached slot is trusted.
const DefaultCacheTTL = 24 * time.Hour

// Config holds the internal configuration for a Store instance.
// It is populated by applying functional Options when a Store is created with NewStore.
type Config struct {
	backend   Backend
	cache     Cache
	logger    Logger
	encryptor Encryptor
	namespace string
	cacheTTL  time.Duration
}

// Option defines the signature for a functional option that configures a Store.
type Option func(*Config)

// WithBackend sets the Backend used for persistence.
// Without it the Store keeps slots in process memory only.
func WithBackend(b Backend) Option {
	return func(c *Config) {
		c.backend = b
	}
}

// WithCache sets an optional read-through Cache in front of the Backend.
func WithCache(cache Cache) Option {
	return func(c *Config) {
		c.cache = cache
	}
}

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.cacheTTL = ttl
	}
}

// WithLogger sets the Logger used by the Store.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		c.logger = l
	}
}

// WithEncryption encrypts every slot payload before it reaches the Backend.
func WithEncryption(e Encryptor) Option {
	return func(c *Config) {
		c.encryptor = e
	}
}

// WithNamespace scopes all slots of the Store.
func WithNamespace(ns string) Option {
	return func(c *Config) {
		c.namespace = ns
	}
}
