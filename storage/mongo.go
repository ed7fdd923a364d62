package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/CreativeUnicorns/suiteprefs"
)

const (
	// DefaultMongoDatabase is the database used by Open for the mongo driver.
	DefaultMongoDatabase = "suiteprefs"
	// DefaultMongoCollection holds one document per slot.
	DefaultMongoCollection = "preference_slots"

	mongoConnectTimeout = 10 * time.Second
)

// slotCollection is the subset of collection behaviour MongoStorage relies on.
type slotCollection interface {
	FindOne(ctx context.Context, filter bson.D) (*suiteprefs.Record, error)
	Upsert(ctx context.Context, filter bson.D, rec *suiteprefs.Record) error
	DeleteOne(ctx context.Context, filter bson.D) (int64, error)
	Find(ctx context.Context, filter bson.D) ([]*suiteprefs.Record, error)
}

// MongoStorage implements suiteprefs.Backend using a MongoDB collection.
type MongoStorage struct {
	client     *mongo.Client
	collection slotCollection
}

// NewMongoStorage connects to uri, verifies the connection and ensures the slot index.
func NewMongoStorage(uri, database string) (*MongoStorage, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: mongo: failed to ping: %v", suiteprefs.ErrStorageUnavailable, err)
	}

	coll := client.Database(database).Collection(DefaultMongoCollection)
	if err := initializeIndexes(ctx, coll); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return &MongoStorage{client: client, collection: &mongoCollection{coll: coll}}, nil
}

// initializeIndexes makes (namespace, key) unique.
func initializeIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "namespace", Value: 1},
			{Key: "key", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: failed to create slot index: %w", err)
	}
	return nil
}

func slotFilter(namespace, key string) bson.D {
	return bson.D{{Key: "namespace", Value: namespace}, {Key: "key", Value: key}}
}

// Load retrieves a slot by namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *MongoStorage) Load(ctx context.Context, namespace, key string) (*suiteprefs.Record, error) {
	rec, err := s.collection.FindOne(ctx, slotFilter(namespace, key))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, suiteprefs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to load slot '%s/%s': %w", namespace, key, err)
	}
	return rec, nil
}

// Save stores or replaces a slot.
func (s *MongoStorage) Save(ctx context.Context, rec *suiteprefs.Record) error {
	if err := s.collection.Upsert(ctx, slotFilter(rec.Namespace, rec.Key), rec); err != nil {
		return fmt.Errorf("mongo: failed to save slot '%s/%s': %w", rec.Namespace, rec.Key, err)
	}
	return nil
}

// Delete removes a slot. It returns suiteprefs.ErrNotFound if nothing was deleted.
func (s *MongoStorage) Delete(ctx context.Context, namespace, key string) error {
	n, err := s.collection.DeleteOne(ctx, slotFilter(namespace, key))
	if err != nil {
		return fmt.Errorf("mongo: failed to delete slot '%s/%s': %w", namespace, key, err)
	}
	if n == 0 {
		return suiteprefs.ErrNotFound
	}
	return nil
}

// List retrieves every slot in a namespace.
func (s *MongoStorage) List(ctx context.Context, namespace string) (map[string]*suiteprefs.Record, error) {
	recs, err := s.collection.Find(ctx, bson.D{{Key: "namespace", Value: namespace}})
	if err != nil {
		return nil, fmt.Errorf("mongo: failed to list namespace '%s': %w", namespace, err)
	}

	out := make(map[string]*suiteprefs.Record, len(recs))
	for _, rec := range recs {
		out[rec.Key] = rec
	}
	return out, nil
}

// Close disconnects the client.
func (s *MongoStorage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoCollection adapts *mongo.Collection to slotCollection.
type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.D) (*suiteprefs.Record, error) {
	var rec suiteprefs.Record
	if err := c.coll.FindOne(ctx, filter).Decode(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *mongoCollection) Upsert(ctx context.Context, filter bson.D, rec *suiteprefs.Record) error {
	_, err := c.coll.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	return err
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter bson.D) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.D) ([]*suiteprefs.Record, error) {
	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var recs []*suiteprefs.Record
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
