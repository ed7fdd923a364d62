// store.go
package suiteprefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Store is the persistent key-value adapter shared by every preference service.
// Values are JSON encoded. Reads are fail-safe: a missing, unreadable or malformed
// slot yields the caller's default, never an error.
type Store struct {
	config *Config
}

// NewStore creates a Store. Without WithBackend, slots live in process memory.
func NewStore(opts ...Option) *Store {
	cfg := &Config{
		logger:    NewDefaultLogger(),
		namespace: DefaultNamespace,
		cacheTTL:  DefaultCacheTTL,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.backend == nil {
		cfg.backend = newMemoryBackend()
	}

	return &Store{
		config: cfg,
	}
}

// Logger returns the logger the Store was configured with.
func (s *Store) Logger() Logger {
	return s.config.logger
}

// Namespace returns the namespace all slots of this Store live in.
func (s *Store) Namespace() string {
	return s.config.namespace
}

// Get decodes the slot at key into a T, or returns def.
func Get[T any](ctx context.Context, s *Store, key string, def T) T {
	raw, ok := s.load(ctx, key)
	if !ok {
		return def
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.config.logger.Warn("Discarding malformed preference value", "key", key, "error", err)
		return def
	}
	return v
}

// Set encodes value as JSON and writes it to the slot at key.
// Failures are logged and returned; callers treat persistence as best effort.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.config.logger.Error("Failed to marshal preference", "key", key, "error", err)
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}

	rec := &Record{
		Namespace: s.config.namespace,
		Key:       key,
		Value:     string(data),
		UpdatedAt: time.Now(),
	}

	if s.config.encryptor != nil {
		enc, err := s.config.encryptor.Encrypt(rec.Value)
		if err != nil {
			s.config.logger.Error("Failed to encrypt preference", "key", key, "error", err)
			return err
		}
		rec.Value = enc
		rec.Encrypted = true
	}

	if err := s.config.backend.Save(ctx, rec); err != nil {
		s.config.logger.Error("Failed to persist preference", "key", key, "error", err)
		return err
	}

	if s.config.cache != nil {
		s.setToCache(ctx, rec)
	}

	return nil
}

// Remove deletes the slot at key. Removing a missing slot is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := s.config.backend.Delete(ctx, s.config.namespace, key); err != nil && !errors.Is(err, ErrNotFound) {
		s.config.logger.Error("Failed to delete preference", "key", key, "error", err)
		return err
	}

	if s.config.cache != nil {
		s.deleteFromCache(ctx, key)
	}

	return nil
}

// Keys lists the slot names in the Store's namespace, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	recs, err := s.config.backend.List(ctx, s.config.namespace)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot returns every readable slot in the namespace as raw JSON.
// Unreadable slots are skipped.
func (s *Store) Snapshot(ctx context.Context) (map[string]json.RawMessage, error) {
	recs, err := s.config.backend.List(ctx, s.config.namespace)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(recs))
	for k, rec := range recs {
		raw, ok := s.decode(rec)
		if !ok || !json.Valid([]byte(raw)) {
			continue
		}
		out[k] = json.RawMessage(raw)
	}
	return out, nil
}

// keyRotator is implemented by encryptors that can tell a payload sealed
// under a retired key. EncryptionAdapter is one.
type keyRotator interface {
	NeedsRotation(payload string) bool
}

// Reseal re-encrypts every slot in the namespace that was sealed under a key
// other than the encryptor's active one, and returns how many it rewrote.
// Slots that cannot be opened are left alone and logged. Without a rotating
// encryptor it does nothing.
func (s *Store) Reseal(ctx context.Context) (int, error) {
	rot, ok := s.config.encryptor.(keyRotator)
	if !ok {
		return 0, nil
	}
	recs, err := s.config.backend.List(ctx, s.config.namespace)
	if err != nil {
		return 0, err
	}

	n := 0
	for key, rec := range recs {
		if !rec.Encrypted || !rot.NeedsRotation(rec.Value) {
			continue
		}
		plain, ok := s.decode(rec)
		if !ok {
			continue
		}
		if err := s.Set(ctx, key, json.RawMessage(plain)); err != nil {
			return n, fmt.Errorf("reseal %s: %w", key, err)
		}
		n++
	}
	if n > 0 {
		s.config.logger.Info("Resealed preferences under the active key", "count", n)
	}
	return n, nil
}

// Close releases the backend and the cache.
func (s *Store) Close() error {
	var errs []error
	if err := s.config.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.config.cache != nil {
		if err := s.config.cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) load(ctx context.Context, key string) (string, bool) {
	if err := validateKey(key); err != nil {
		s.config.logger.Warn("Rejected preference key", "key", key, "error", err)
		return "", false
	}

	if s.config.cache != nil {
		if rec, err := s.getFromCache(ctx, key); err == nil {
			return s.decode(rec)
		}
	}

	rec, err := s.config.backend.Load(ctx, s.config.namespace, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.config.logger.Warn("Failed to load preference, using default", "key", key, "error", err)
		}
		return "", false
	}

	if s.config.cache != nil {
		s.setToCache(ctx, rec)
	}

	return s.decode(rec)
}

func (s *Store) decode(rec *Record) (string, bool) {
	if !rec.Encrypted {
		return rec.Value, true
	}
	if s.config.encryptor == nil {
		s.config.logger.Warn("Encrypted preference found but no encryptor configured", "key", rec.Key)
		return "", false
	}
	plain, err := s.config.encryptor.Decrypt(rec.Value)
	if err != nil {
		s.config.logger.Warn("Failed to decrypt preference, using default", "key", rec.Key, "error", err)
		return "", false
	}
	return plain, true
}

func (s *Store) cacheKey(key string) string {
	return fmt.Sprintf("slot:%s:%s", s.config.namespace, key)
}

func (s *Store) getFromCache(ctx context.Context, key string) (*Record, error) {
	data, err := s.config.cache.Get(ctx, s.cacheKey(key))
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (s *Store) setToCache(ctx context.Context, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.config.logger.Error("Failed to marshal preference for cache", "error", err)
		return
	}

	if err := s.config.cache.Set(ctx, s.cacheKey(rec.Key), data, s.config.cacheTTL); err != nil {
		s.config.logger.Error("Failed to cache preference", "error", err)
	}
}

func (s *Store) deleteFromCache(ctx context.Context, key string) {
	if err := s.config.cache.Delete(ctx, s.cacheKey(key)); err != nil && !errors.Is(err, ErrNotFound) {
		s.config.logger.Error("Failed to delete preference from cache", "error", err)
	}
}

// memoryBackend is the Store's fallback Backend when none is configured.
type memoryBackend struct {
	mu   sync.RWMutex
	recs map[string]map[string]Record
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{recs: make(map[string]map[string]Record)}
}

func (m *memoryBackend) Load(_ context.Context, namespace, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[namespace][key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *memoryBackend) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[rec.Namespace]; !ok {
		m.recs[rec.Namespace] = make(map[string]Record)
	}
	m.recs[rec.Namespace][rec.Key] = *rec
	return nil
}

func (m *memoryBackend) Delete(_ context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs[namespace], key)
	return nil
}

func (m *memoryBackend) List(_ context.Context, namespace string) (map[string]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*Record, len(m.recs[namespace]))
	for k, rec := range m.recs[namespace] {
		rec := rec
		out[k] = &rec
	}
	return out, nil
}

func (m *memoryBackend) Close() error {
	return nil
}
