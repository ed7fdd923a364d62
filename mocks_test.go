package suiteprefs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockBackend implements the Backend interface for testing.
type MockBackend struct {
	mu      sync.RWMutex
	data    map[string]map[string]Record
	closed  bool
	loadErr error
	saves   int
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		data: make(map[string]map[string]Record),
	}
}

func (m *MockBackend) Load(ctx context.Context, namespace, key string) (*Record, error) {
	_, _ = ctx.Deadline()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageUnavailable
	}
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if rec, ok := m.data[namespace][key]; ok {
		return &rec, nil
	}
	return nil, ErrNotFound
}

func (m *MockBackend) Save(ctx context.Context, rec *Record) error {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageUnavailable
	}
	if _, ok := m.data[rec.Namespace]; !ok {
		m.data[rec.Namespace] = make(map[string]Record)
	}
	m.data[rec.Namespace][rec.Key] = *rec
	m.saves++
	return nil
}

func (m *MockBackend) Delete(ctx context.Context, namespace, key string) error {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageUnavailable
	}
	if _, ok := m.data[namespace][key]; !ok {
		return ErrNotFound
	}
	delete(m.data[namespace], key)
	return nil
}

func (m *MockBackend) List(ctx context.Context, namespace string) (map[string]*Record, error) {
	_, _ = ctx.Deadline()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageUnavailable
	}
	out := make(map[string]*Record)
	for k, rec := range m.data[namespace] {
		rec := rec
		out[k] = &rec
	}
	return out, nil
}

func (m *MockBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// putRaw writes a slot bypassing the Store, the way a hand-edited database would.
func (m *MockBackend) putRaw(namespace, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[namespace]; !ok {
		m.data[namespace] = make(map[string]Record)
	}
	m.data[namespace][key] = Record{Namespace: namespace, Key: key, Value: value, UpdatedAt: time.Now()}
}

func (m *MockBackend) saveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// MockCache implements the Cache interface for testing.
type MockCache struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, _ = ctx.Deadline()
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrCacheUnavailable
	}
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ErrNotFound
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, _ = ctx.Deadline()
	_ = ttl
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCacheUnavailable
	}
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	_, _ = ctx.Deadline()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrCacheUnavailable
	}
	delete(m.data, key)
	return nil
}

func (m *MockCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	level LogLevel
	msg   string
	args  []any
}

func (l *recordingLogger) log(level LogLevel, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log(LogLevelDebug, msg, args...) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log(LogLevelInfo, msg, args...) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log(LogLevelWarn, msg, args...) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log(LogLevelError, msg, args...) }
func (l *recordingLogger) SetLevel(LogLevel)             {}

func (l *recordingLogger) count(level LogLevel) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *recordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.entries)
}
