package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/CreativeUnicorns/suiteprefs"
)

// fakeCollection is an in-memory slotCollection that evaluates equality filters.
type fakeCollection struct {
	mu   sync.Mutex
	docs []suiteprefs.Record
	err  error
}

func matches(rec suiteprefs.Record, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "namespace":
			if rec.Namespace != e.Value {
				return false
			}
		case "key":
			if rec.Key != e.Value {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (f *fakeCollection) FindOne(_ context.Context, filter bson.D) (*suiteprefs.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.docs {
		if matches(d, filter) {
			d := d
			return &d, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeCollection) Upsert(_ context.Context, filter bson.D, rec *suiteprefs.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for i, d := range f.docs {
		if matches(d, filter) {
			f.docs[i] = *rec
			return nil
		}
	}
	f.docs = append(f.docs, *rec)
	return nil
}

func (f *fakeCollection) DeleteOne(_ context.Context, filter bson.D) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	for i, d := range f.docs {
		if matches(d, filter) {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeCollection) Find(_ context.Context, filter bson.D) ([]*suiteprefs.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []*suiteprefs.Record
	for _, d := range f.docs {
		if matches(d, filter) {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func TestMongoStorage_CRUD(t *testing.T) {
	coll := &fakeCollection{}
	storage := &MongoStorage{collection: coll}
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, storage.Save(ctx, &suiteprefs.Record{Namespace: "default", Key: "theme_mode", Value: `"dark"`, UpdatedAt: now}))
	require.NoError(t, storage.Save(ctx, &suiteprefs.Record{Namespace: "default", Key: "theme_mode", Value: `"light"`, UpdatedAt: now}))
	require.NoError(t, storage.Save(ctx, &suiteprefs.Record{Namespace: "other", Key: "theme_mode", Value: `"custom"`, UpdatedAt: now}))
	assert.Len(t, coll.docs, 2, "upsert must replace, not append")

	rec, err := storage.Load(ctx, "default", "theme_mode")
	require.NoError(t, err)
	assert.Equal(t, `"light"`, rec.Value)

	_, err = storage.Load(ctx, "default", "missing")
	assert.True(t, errors.Is(err, suiteprefs.ErrNotFound))

	all, err := storage.List(ctx, "default")
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "theme_mode")

	require.NoError(t, storage.Delete(ctx, "default", "theme_mode"))
	assert.True(t, errors.Is(storage.Delete(ctx, "default", "theme_mode"), suiteprefs.ErrNotFound))

	assert.NoError(t, storage.Close())
}

func TestMongoStorage_DriverErrors(t *testing.T) {
	boom := errors.New("connection reset")
	storage := &MongoStorage{collection: &fakeCollection{err: boom}}
	ctx := context.Background()

	_, err := storage.Load(ctx, "default", "theme_mode")
	assert.True(t, errors.Is(err, boom))
	assert.False(t, errors.Is(err, suiteprefs.ErrNotFound))

	err = storage.Save(ctx, &suiteprefs.Record{Namespace: "default", Key: "theme_mode"})
	assert.ErrorContains(t, err, "mongo: failed to save slot 'default/theme_mode'")

	err = storage.Delete(ctx, "default", "theme_mode")
	assert.True(t, errors.Is(err, boom))

	_, err = storage.List(ctx, "default")
	assert.True(t, errors.Is(err, boom))
}

func TestSlotFilter(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "namespace", Value: "ns"}, {Key: "key", Value: "k"}}, slotFilter("ns", "k"))
}
