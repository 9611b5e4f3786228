package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore is the primary document-store backend. The connection handle is
// process-wide shared state owned by this struct, with an explicit
// disconnected/connecting/connected lifecycle; operations after Disconnect
// re-establish it transparently via Connect.
type MongoStore struct {
	clientOpts *options.ClientOptions
	database   string
	collection string

	mu     sync.Mutex
	state  connState
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore builds a store over the given database/collection. opts is
// the pass-through mongo client configuration (URI, timeouts, pool size);
// socket and server-selection timeouts are the store's own, not reimplemented
// here.
func NewMongoStore(opts *options.ClientOptions, database, collection string) *MongoStore {
	return &MongoStore{clientOpts: opts, database: database, collection: collection}
}

// Connect establishes the client and ensures the compound (session, _id)
// index needed for efficient namespace sweeps. Idempotent: when already
// connected it only pings, and reconnects if the ping fails.
func (s *MongoStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateConnected {
		if err := s.client.Ping(ctx, readpref.Primary()); err == nil {
			return nil
		}
		_ = s.client.Disconnect(ctx)
		s.state = stateDisconnected
	}

	s.state = stateConnecting
	client, err := mongo.Connect(ctx, s.clientOpts)
	if err != nil {
		s.state = stateDisconnected
		return fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		s.state = stateDisconnected
		return fmt.Errorf("mongo: ping: %w", err)
	}

	coll := client.Database(s.database).Collection(s.collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		s.state = stateDisconnected
		return fmt.Errorf("mongo: ensure index: %w", err)
	}

	s.client = client
	s.coll = coll
	s.state = stateConnected
	return nil
}

// Disconnect tears the client down. Subsequent operations reconnect.
func (s *MongoStore) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return nil
	}
	err := s.client.Disconnect(ctx)
	s.client = nil
	s.coll = nil
	s.state = stateDisconnected
	return err
}

func (s *MongoStore) activeColl() (*mongo.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateConnected {
		return nil, errors.New("mongo: not connected")
	}
	return s.coll, nil
}

func (s *MongoStore) Read(ctx context.Context, key string) (*Record, error) {
	coll, err := s.activeColl()
	if err != nil {
		return nil, err
	}
	var rec Record
	err = coll.FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo: read: %w", err)
	}
	return &rec, nil
}

func (s *MongoStore) Write(ctx context.Context, key, session string, value []byte) error {
	coll, err := s.activeColl()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{
			"$set":         bson.M{"value": value, "session": session, "updatedAt": now},
			"$setOnInsert": bson.M{"createdAt": now},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo: write: %w", err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	coll, err := s.activeColl()
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo: delete: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteNamespace(ctx context.Context, session string, excludeKeys []string) error {
	coll, err := s.activeColl()
	if err != nil {
		return err
	}
	filter := bson.M{"session": session}
	if len(excludeKeys) > 0 {
		filter["_id"] = bson.M{"$nin": excludeKeys}
	}
	if _, err := coll.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("mongo: delete namespace: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteAllNamespace(ctx context.Context, session string) error {
	return s.DeleteNamespace(ctx, session, nil)
}
