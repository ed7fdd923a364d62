package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CreativeUnicorns/suiteprefs"
)

// MockRedisClient is a mock implementation of redisClient
type MockRedisClient struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		data: make(map[string]string),
		ttls: make(map[string]time.Duration),
	}
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	_, _ = ctx.Deadline()
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	val, exists := m.data[key]
	if !exists {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	_, _ = ctx.Deadline()
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	_, _ = ctx.Deadline()
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	count := 0
	for _, key := range keys {
		if _, exists := m.data[key]; exists {
			delete(m.data, key)
			count++
		}
	}
	return redis.NewIntResult(int64(count), nil)
}

func (m *MockRedisClient) Close() error {
	return nil
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	mockClient := NewMockRedisClient()
	redisCache := &RedisCache{client: mockClient}

	key := "slot:default:app_language"
	value := []byte(`{"key":"app_language","value":"\"es\""}`)

	if err := redisCache.Set(ctx, key, value, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if mockClient.ttls[key] != time.Minute {
		t.Errorf("TTL not forwarded, got %v", mockClient.ttls[key])
	}

	got, err := redisCache.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Retrieved value mismatch: got %s, want %s", got, value)
	}

	if err := redisCache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err = redisCache.Get(ctx, key)
	if !errors.Is(err, suiteprefs.ErrNotFound) {
		t.Errorf("Expected ErrNotFound error, got: %v", err)
	}
}

func TestRedisCache_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")
	mockClient := NewMockRedisClient()
	mockClient.err = boom
	redisCache := &RedisCache{client: mockClient}

	if _, err := redisCache.Get(ctx, "k"); !errors.Is(err, boom) || errors.Is(err, suiteprefs.ErrNotFound) {
		t.Errorf("Get should wrap the client error, got: %v", err)
	}
	if err := redisCache.Set(ctx, "k", []byte("v"), 0); !errors.Is(err, boom) {
		t.Errorf("Set should wrap the client error, got: %v", err)
	}
	if err := redisCache.Delete(ctx, "k"); !errors.Is(err, boom) {
		t.Errorf("Delete should wrap the client error, got: %v", err)
	}
}

func TestRedisCache_Close(t *testing.T) {
	redisCache := &RedisCache{client: NewMockRedisClient()}
	if err := redisCache.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
